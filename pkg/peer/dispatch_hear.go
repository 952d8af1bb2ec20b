package peer

import (
	"fmt"
	"time"

	"ames/pkg/crypto/agree"
	"ames/pkg/packet"
	"ames/pkg/sink"
	"ames/pkg/wire"
)

// handleHear processes one raw inbound packet: the comet self-
// attestation path (open packets, S5), forwarding for packets not
// addressed to us (S6), and the full encrypted shut-packet path for
// everything else. Any decode or verification failure is a protocol
// error: the packet is silently dropped, with an optional trace log.
func (t *Transport) handleHear(task Task) []Effect {
	if task.PriorFailure != "" {
		return []Effect{logEffect("hear: upstream failure: " + task.PriorFailure)}
	}

	h, _, err := packet.Decode(task.Blob)
	if err != nil {
		return t.dropf("hear: bad header: %v", err)
	}

	if h.Open {
		return t.handleOpen(task, h)
	}
	if !h.Receiver.Equal(t.OurShip) {
		return t.handleForward(task, h)
	}
	return t.handleShut(task, h)
}

func (t *Transport) dropf(format string, args ...any) []Effect {
	return []Effect{logEffect(fmt.Sprintf(format, args...))}
}

// handleOpen validates a comet's self-attestation (signature verified
// inside DecodeOpen) and installs it as a known peer with a route to
// the arrival lane, marked indirect, per S5.
func (t *Transport) handleOpen(task Task, h *packet.Header) []Effect {
	_, body, err := packet.DecodeOpen(task.Blob)
	if err != nil {
		return t.dropf("hear: open packet rejected: %v", err)
	}
	if !h.Receiver.Equal(t.OurShip) {
		return t.handleForward(task, h)
	}

	p := t.PeerFor(h.Sender)
	symKey, err := agree.SymmetricKey(t.AgreeKey, body.PublicKey)
	if err != nil {
		return t.dropf("hear: comet agreement failed: %v", err)
	}

	var effects []Effect
	if !p.Known {
		agenda := p.Promote(1, body.PublicKey, symKey, p.Sponsor, p.HasSponsor)
		p.Route = Route{Known: true, Direct: false, Lane: task.Lane}
		effects = append(effects, t.drainAgenda(p, agenda, task.Now)...)
	} else {
		p.Rekey(1, body.PublicKey, symKey)
	}
	p.TouchContact(task.Now)
	effects = append(effects, logEffect(fmt.Sprintf("comet %s installed via self-attestation", h.Sender)))
	return effects
}

// handleForward re-transmits a packet not addressed to us, per S6.
// Forwarding never requires any peer state for the destination; only
// the origin breadcrumb is stamped before re-routing.
func (t *Transport) handleForward(task Task, h *packet.Header) []Effect {
	originSet := len(h.Origin) > 0
	_, hLen, err := packet.Decode(task.Blob)
	if err != nil {
		return t.dropf("hear: forward re-decode failed: %v", err)
	}
	rest := task.Blob[hLen:]

	_, effects, err := t.Forward(h.Receiver, h.Sender, task.Lane, originSet, func(origin []byte) ([]byte, error) {
		h2 := *h
		if len(origin) > 0 {
			h2.Origin = origin
		}
		hb, err := h2.Encode()
		if err != nil {
			return nil, err
		}
		return append(hb, rest...), nil
	})
	if err != nil {
		return t.dropf("hear: forward re-encode failed: %v", err)
	}
	return effects
}

func (t *Transport) handleShut(task Task, h *packet.Header) []Effect {
	p, known := t.Peers[h.Sender]
	if !known || !p.Known {
		return t.dropf("hear: shut packet from unknown peer %s", h.Sender)
	}
	ch, err := NewChannel(t, p)
	if err != nil {
		return t.dropf("hear: channel derivation failed: %v", err)
	}
	sp, err := packet.DecodeShut(task.Blob, ch.SymmetricKey, uint32(ch.OurLife), uint32(p.Life))
	if err != nil {
		return t.dropf("hear: shut packet rejected: %v", err)
	}

	transitioned := p.TouchContact(task.Now)
	var effects []Effect
	if transitioned {
		effects = append(effects, logEffect(fmt.Sprintf("%s live", p.Ship)))
	}

	bone := sp.Payload.Bone
	switch sp.Payload.Kind {
	case packet.MeatFragment:
		effects = append(effects, t.handleFragment(p, ch, bone, sp.Payload, task.Now)...)

	case packet.MeatFragmentAck:
		snd := p.Flows.sndFor(bone)
		sends := snd.HearFragmentAck(sp.Payload.MessageNum, sp.Payload.FragmentNum, task.Now)
		effects = append(effects, t.emitSends(p, ch, bone, sends)...)
		effects = append(effects, t.pumpTimerEffect(p.Ship, bone, snd))

	case packet.MeatMessageAck:
		snd := p.Flows.sndFor(bone)
		sends, dones := snd.HearMessageAck(sp.Payload.MessageNum, sp.Payload.Ok, task.Now)
		effects = append(effects, t.emitSends(p, ch, bone, sends)...)
		duct, _ := p.Ossuary.DuctFor(bone)
		for _, d := range dones {
			effects = append(effects, doneEffect(duct, d.MessageNum, d.Err))
		}
		effects = append(effects, t.pumpTimerEffect(p.Ship, bone, snd))

	default:
		panic(fmt.Sprintf("peer: unrecognized meat kind %d", sp.Payload.Kind))
	}

	if qos := t.checkClog(p); qos != nil {
		effects = append(effects, *qos)
	}
	return effects
}

// handleFragment delivers one fragment-meat packet to the receiving
// sink for bone, sends back any resulting ack, and routes a completed
// message either to naxplanation handling (nack-trace bones) or to the
// local consumer.
func (t *Transport) handleFragment(p *State, ch Channel, bone uint32, payload packet.ShutPayload, now time.Time) []Effect {
	rcv, exists := p.Flows.Rcv[bone]
	if !exists {
		rcv = p.Flows.rcvFor(bone)
		if IsForward(bone) {
			p.Ossuary.BindBone(bone, Duct(fmt.Sprintf("remote:%d", bone)))
		}
	}

	ack, delivery, err := rcv.HearFragment(payload.MessageNum, payload.NumFragments, payload.FragmentNum, payload.FragmentData)
	if err != nil {
		return t.dropf("hear: sink protocol violation on bone %d: %v", bone, err)
	}

	var effects []Effect
	if ack != nil {
		a := *ack
		if a.FragmentAck {
			a.MessageNum = payload.MessageNum
		}
		effects = append(effects, t.emitAck(p, ch, bone, a)...)
	}
	if delivery != nil {
		effects = append(effects, t.routeDelivery(p, bone, delivery)...)
	}
	return effects
}

func (t *Transport) emitAck(p *State, ch Channel, bone uint32, a sink.Ack) []Effect {
	payload := packet.ShutPayload{Bone: bone}
	switch {
	case a.FragmentAck:
		payload.Kind = packet.MeatFragmentAck
		payload.MessageNum = a.MessageNum
		payload.FragmentNum = a.FragmentNum
	case a.MessageAck:
		payload.Kind = packet.MeatMessageAck
		payload.MessageNum = a.MessageNum
		payload.Ok = a.OK
	default:
		return nil
	}
	blob, err := t.encodeShutFor(p, ch, false, payload)
	if err != nil {
		return t.dropf("emitAck: encode failed: %v", err)
	}
	return t.routeSend(p.Ship, blob, false)
}

// routeDelivery decides what a fully reassembled message means: a
// naxplanation arriving on a nack-trace bone feeds the original
// sending pump's Near(); anything else is handed to the local
// consumer via a boon effect, binding a synthesized duct for messages
// that arrived without one (a plea this side never sent).
func (t *Transport) routeDelivery(p *State, bone uint32, delivery *sink.Delivery) []Effect {
	if IsNackTrace(bone) {
		var body naxplanationBody
		if err := wire.Cue(delivery.Blob, &body); err != nil {
			return t.dropf("routeDelivery: bad naxplanation body: %v", err)
		}
		origBone := PairedNackTrace(bone)
		snd := p.Flows.sndFor(origBone)
		dones := snd.Near(body.MessageNum, body.Error)
		duct, _ := p.Ossuary.DuctFor(origBone)
		var effects []Effect
		for _, d := range dones {
			effects = append(effects, doneEffect(duct, d.MessageNum, d.Err))
		}
		effects = append(effects, t.pumpTimerEffect(p.Ship, origBone, snd))
		return effects
	}
	return t.deliverToConsumer(p, bone, delivery)
}

func (t *Transport) deliverToConsumer(p *State, bone uint32, delivery *sink.Delivery) []Effect {
	duct, ok := p.Ossuary.DuctFor(bone)
	if !ok {
		duct, _ = p.Ossuary.DuctFor(BaseBone(bone))
	}
	return []Effect{boonEffect(duct, delivery.Blob)}
}

// sendNaxplanation composes and sends a naxplanation message on bone's
// paired nack-trace bone, per S3: a consumer nack additionally carries
// the error across as a full, authoritative message rather than a bare
// negative ack.
func (t *Transport) sendNaxplanation(p *State, ch Channel, bone uint32, now time.Time, messageNum uint32, errText string) []Effect {
	body := naxplanationBody{MessageNum: messageNum, Error: errText}
	blob, err := wire.Jam(body)
	if err != nil {
		return t.dropf("sendNaxplanation: jam failed: %v", err)
	}
	traceBone := PairedNackTrace(bone)
	snd := p.Flows.sndFor(traceBone)
	sends := snd.Memo(blob, now)
	effects := t.emitSends(p, ch, traceBone, sends)
	effects = append(effects, t.pumpTimerEffect(p.Ship, traceBone, snd))
	return effects
}

// checkClog runs §4.5's clog detection: it returns a clog effect when p
// is dead or unborn and its backward flows are clogged, and nil for a
// live peer.
func (t *Transport) checkClog(p *State) *Effect {
	if p.QoS == Dead || p.QoS == Unborn {
		if p.Clogged() {
			e := clogEffect(p.Ship)
			return &e
		}
	}
	return nil
}
