package peer

import (
	"fmt"
	"time"

	"ames/pkg/crypto/agree"
	"ames/pkg/packet"
	"ames/pkg/pki"
	"ames/pkg/pump"
)

// naxplanationBody is the application-level content of a naxplanation
// message: the nacked message-num and its error, carried as an
// ordinary message on the paired nack-trace bone.
type naxplanationBody struct {
	MessageNum uint32 `cbor:"1,keyasint"`
	Error      string `cbor:"2,keyasint"`
}

func (t *Transport) handlePlea(task Task) []Effect {
	p := t.PeerFor(task.PleaTo)
	if !p.Known {
		p.Alien.QueuePlea(QueuedPlea{Duct: task.PleaDuct, Subsystem: task.Subsystem, Payload: task.Payload})
		if task.PleaTo.IsComet() {
			return []Effect{logEffect(fmt.Sprintf("plea to comet %s queued pending self-attestation", task.PleaTo))}
		}
		return t.requestKeys(p)
	}
	return t.sendPlea(p, task.PleaDuct, task.Payload, task.Now)
}

func (t *Transport) requestKeys(p *State) []Effect {
	if p.PKIRequested {
		return nil
	}
	p.PKIRequested = true
	if t.Oracle != nil {
		t.Oracle.RequestKeys(p.Ship)
	}
	return []Effect{logEffect(fmt.Sprintf("pki lookup requested for %s", p.Ship))}
}

func (t *Transport) sendPlea(p *State, duct Duct, payload []byte, now time.Time) []Effect {
	ch, err := NewChannel(t, p)
	if err != nil {
		return []Effect{logEffect(err.Error())}
	}
	bone := p.Ossuary.BoneFor(duct)
	snd := p.Flows.sndFor(bone)
	sends := snd.Memo(payload, now)
	effects := t.emitSends(p, ch, bone, sends)
	effects = append(effects, t.pumpTimerEffect(p.Ship, bone, snd))
	return effects
}

func (t *Transport) emitSends(p *State, ch Channel, bone uint32, sends []pump.Send) []Effect {
	var effects []Effect
	for _, sd := range sends {
		payload := packet.ShutPayload{
			Bone:         bone,
			MessageNum:   sd.MessageNum,
			Kind:         packet.MeatFragment,
			NumFragments: sd.NumFragments,
			FragmentNum:  sd.FragmentNum,
			FragmentData: sd.Bytes,
		}
		blob, err := t.encodeShutFor(p, ch, true, payload)
		if err != nil {
			effects = append(effects, logEffect(err.Error()))
			continue
		}
		effects = append(effects, t.routeSend(p.Ship, blob, false)...)
	}
	return effects
}

func (t *Transport) encodeShutFor(p *State, ch Channel, request bool, payload packet.ShutPayload) ([]byte, error) {
	h := packet.Header{Sender: t.OurShip, Receiver: p.Ship, Request: request, Sample: true}
	return packet.EncodeShut(h, ch.SymmetricKey, uint32(ch.OurLife), uint32(ch.HerLife), payload)
}

// handlePKIResult processes one PKI oracle notification: a full
// snapshot or per-ship rekey promotes an Alien peer or rotates a
// Known one's keys; sponsor/rift changes update a single field;
// breach discards all flow state.
func (t *Transport) handlePKIResult(task Task) []Effect {
	res := task.PKI
	p := t.PeerFor(res.Ship)

	switch res.Kind {
	case pki.KindSnapshot, pki.KindRekey:
		symKey, err := agree.SymmetricKey(t.AgreeKey, res.PublicKey)
		if err != nil {
			return []Effect{logEffect(err.Error())}
		}
		if !p.Known {
			agenda := p.Promote(res.Life, res.PublicKey, symKey, res.Sponsor, true)
			return t.drainAgenda(p, agenda, task.Now)
		}
		p.Rekey(res.Life, res.PublicKey, symKey)
		return []Effect{logEffect(fmt.Sprintf("rekeyed %s to life %d", p.Ship, res.Life))}

	case pki.KindSponsorChange:
		p.SponsorChange(res.Sponsor)
		return nil

	case pki.KindRiftChange:
		p.Rift = res.Rift
		return nil

	case pki.KindBreach:
		p.Rift = res.Rift
		wires := p.Breach()
		effects := make([]Effect, 0, len(wires)+1)
		for _, w := range wires {
			effects = append(effects, restEffect(w))
		}
		effects = append(effects, logEffect(fmt.Sprintf("continuity breach: %s", p.Ship)))
		return effects

	default:
		panic(fmt.Sprintf("peer: unrecognized pki result kind %d", res.Kind))
	}
}

func (t *Transport) drainAgenda(p *State, agenda Agenda, now time.Time) []Effect {
	var effects []Effect
	for _, h := range agenda.Heeds {
		p.Heeds[h.Subscriber] = true
	}
	for _, pkt := range agenda.Packets {
		effects = append(effects, t.routeSend(p.Ship, pkt.Bytes, false)...)
	}
	for _, pl := range agenda.Pleas {
		effects = append(effects, t.sendPlea(p, pl.Duct, pl.Payload, now)...)
	}
	for _, sc := range agenda.Scries {
		effects = append(effects, boonEffect("", sc.Payload))
	}
	return effects
}

// handleConsumerDone completes §4.4's consumer handshake: the local
// consumer's disposition on the message most recently offered to it.
// A negative disposition additionally emits a naxplanation message on
// the flow's paired nack-trace bone, per S3.
func (t *Transport) handleConsumerDone(task Task) []Effect {
	p, ok := t.Peers[task.DoneShip]
	if !ok {
		return nil
	}
	rcv, ok := p.Flows.Rcv[task.DoneBone]
	if !ok {
		return nil
	}
	ack := rcv.ConsumerDone(task.DoneOK)
	var effects []Effect
	ch, err := NewChannel(t, p)
	if err != nil {
		return []Effect{logEffect(err.Error())}
	}
	if ack != nil {
		effects = append(effects, t.emitAck(p, ch, task.DoneBone, *ack)...)
	}
	if !task.DoneOK && ack != nil {
		effects = append(effects, t.sendNaxplanation(p, ch, task.DoneBone, task.Now, ack.MessageNum, task.DoneErr)...)
	}
	if next := rcv.NextDelivery(); next != nil {
		effects = append(effects, t.deliverToConsumer(p, task.DoneBone, next)...)
	}
	return effects
}
