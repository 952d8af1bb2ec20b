package peer

// QueuedPlea is an outbound request message queued while its target
// peer has no keys yet.
type QueuedPlea struct {
	Duct    Duct
	Subsystem string
	Payload []byte
}

// QueuedPacket is a raw outbound packet blob queued for an alien peer,
// e.g. a keys-request sent to a comet before its self-attestation
// arrives.
type QueuedPacket struct {
	Bytes []byte
}

// QueuedHeed is a liveness-subscription registration queued while the
// peer is still alien.
type QueuedHeed struct {
	Subscriber string
}

// QueuedScry is a remote-scry request queued while the peer is still
// alien; the transport carries it opaquely and hands it back to the
// remote-scry subsystem once drained.
type QueuedScry struct {
	Payload []byte
}

// AlienQueue holds everything queued against a peer that has no keys
// yet: outbound messages, raw packets, heed registrations, and
// remote-scry requests, each FIFO.
type AlienQueue struct {
	Pleas   []QueuedPlea
	Packets []QueuedPacket
	Heeds   []QueuedHeed
	Scries  []QueuedScry
}

func newAlienQueue() *AlienQueue { return &AlienQueue{} }

func (a *AlienQueue) QueuePlea(q QueuedPlea)     { a.Pleas = append(a.Pleas, q) }
func (a *AlienQueue) QueuePacket(q QueuedPacket) { a.Packets = append(a.Packets, q) }
func (a *AlienQueue) QueueHeed(q QueuedHeed)     { a.Heeds = append(a.Heeds, q) }
func (a *AlienQueue) QueueScry(q QueuedScry)     { a.Scries = append(a.Scries, q) }

// Agenda is the alien queue's contents, handed back to the caller on
// promotion for FIFO re-dispatch onto the now-known peer.
type Agenda struct {
	Pleas   []QueuedPlea
	Packets []QueuedPacket
	Heeds   []QueuedHeed
	Scries  []QueuedScry
}

func (a *AlienQueue) drain() Agenda {
	return Agenda{Pleas: a.Pleas, Packets: a.Packets, Heeds: a.Heeds, Scries: a.Scries}
}
