// Package pump implements the message pump: per-flow outbound
// fragmentation, retransmission via the packet pump, and in-order
// ack/nack/naxplanation delivery to the local caller.
package pump

import (
	"time"

	"ames/pkg/congestion"
	"ames/pkg/wire"
)

// AckStatus is the terminal disposition of a sent message once its
// queued-message-ack is resolved.
type AckStatus int

const (
	Pending AckStatus = iota
	OK
	Nack
	Naxplanation
)

type queuedAck struct {
	status AckStatus
	err    string
}

// Done is emitted to the local caller exactly once per message, in
// strict message-num order.
type Done struct {
	MessageNum uint32
	Err        string // empty unless Status was Nack or Naxplanation
}

// State is one flow's outbound pump: fragmentation, the embedded packet
// pump, and the ordered ack ledger.
type State struct {
	Current uint32
	Next    uint32

	unsentMessages [][]byte

	curMsgNum      uint32
	curBlob        []byte
	curNumFrags    int
	curNextFragIdx int
	haveCur        bool

	queuedAcks map[uint32]*queuedAck
	fragsByMsg map[uint32]uint32

	Congestion *congestion.State
}

// New returns a fresh, empty message pump.
func New() *State {
	return &State{
		Congestion: congestion.New(),
		queuedAcks: make(map[uint32]*queuedAck),
		fragsByMsg: make(map[uint32]uint32),
	}
}

// Send is an outbound fragment-meat the message pump wants encrypted
// and transmitted on this flow's bone.
type Send struct {
	MessageNum   uint32
	NumFragments uint32
	FragmentNum  uint32
	Bytes        []byte
}

// Memo appends blob to unsent-messages, then feeds fragments into the
// packet pump until the congestion window is full.
func (s *State) Memo(blob []byte, now time.Time) []Send {
	s.unsentMessages = append(s.unsentMessages, blob)
	return s.feedMore(now)
}

func (s *State) feedMore(now time.Time) []Send {
	var out []Send
	for {
		slots := int(s.Congestion.Cwnd) - s.Congestion.NumLive
		if slots <= 0 {
			break
		}
		if !s.haveCur {
			if len(s.unsentMessages) == 0 {
				break
			}
			blob := s.unsentMessages[0]
			s.unsentMessages = s.unsentMessages[1:]
			s.curMsgNum = s.Next
			s.Next++
			s.curBlob = blob
			s.curNumFrags = wire.NumFragments(len(blob))
			s.curNextFragIdx = 0
			s.haveCur = true
			s.queuedAcks[s.curMsgNum] = &queuedAck{status: Pending}
			s.fragsByMsg[s.curMsgNum] = uint32(s.curNumFrags)
		}

		var frags []congestion.Fragment
		for s.curNextFragIdx < s.curNumFrags && len(frags) < slots {
			idx := s.curNextFragIdx
			frags = append(frags, congestion.Fragment{
				Key:   congestion.Key{MessageNum: s.curMsgNum, FragmentNum: uint32(idx)},
				Bytes: wire.FragmentBytes(s.curBlob, idx),
			})
			s.curNextFragIdx++
		}
		if len(frags) == 0 {
			break
		}
		toSend, unsent := s.Congestion.Feed(frags, now)
		s.curNextFragIdx -= len(unsent)
		for _, f := range toSend {
			out = append(out, Send{
				MessageNum:   f.Key.MessageNum,
				NumFragments: uint32(s.curNumFrags),
				FragmentNum:  f.Key.FragmentNum,
				Bytes:        f.Bytes,
			})
		}
		if s.curNextFragIdx >= s.curNumFrags {
			s.haveCur = false
		}
		if len(unsent) > 0 {
			break
		}
	}
	return out
}

// resendsToSends converts congestion-layer retransmissions back into
// wire-ready Send values; num-fragments for a given message never
// changes once assigned, so the pump can recover it from fragsByMsg even
// for a message it has moved on from fragmenting.
func (s *State) resendsToSends(frags []congestion.Fragment) []Send {
	out := make([]Send, 0, len(frags))
	for _, f := range frags {
		out = append(out, Send{
			MessageNum:   f.Key.MessageNum,
			NumFragments: s.fragsByMsg[f.Key.MessageNum],
			FragmentNum:  f.Key.FragmentNum,
			Bytes:        f.Bytes,
		})
	}
	return out
}

// HearFragmentAck delivers a fragment ack to the packet pump and drains
// any resulting fast retransmits. Out-of-range acks (already-consumed
// message nums) are ignored.
func (s *State) HearFragmentAck(messageNum, fragmentNum uint32, now time.Time) []Send {
	if messageNum < s.Current {
		return nil
	}
	s.Congestion.AckFragment(congestion.Key{MessageNum: messageNum, FragmentNum: fragmentNum}, now)
	resends := s.Congestion.PopResends()
	more := s.feedMore(now)
	return append(s.resendsToSends(resends), more...)
}

// HearMessageAck queues the ack at message-num, then drains
// queued-message-acks from Current upward, returning Done events in
// strict order alongside any fast retransmits the acks below it
// triggered.
func (s *State) HearMessageAck(messageNum uint32, ok bool, now time.Time) ([]Send, []Done) {
	if messageNum < s.Current {
		return nil, nil
	}
	q, exists := s.queuedAcks[messageNum]
	if !exists {
		q = &queuedAck{}
		s.queuedAcks[messageNum] = q
	}
	if q.status != Naxplanation {
		if ok {
			q.status = OK
		} else {
			q.status = Nack
		}
	}
	// A message-ack resolves every fragment of the message at once, not
	// just fragment 0 — whichever fragment actually completed reassembly
	// on the far side still needs clearing from the live queue here, or
	// it retransmits forever.
	numFrags := s.fragsByMsg[messageNum]
	var resends []congestion.Fragment
	for i := uint32(0); i < numFrags; i++ {
		s.Congestion.AckFragment(congestion.Key{MessageNum: messageNum, FragmentNum: i}, now)
		resends = append(resends, s.Congestion.PopResends()...)
	}
	more := s.feedMore(now)
	sends := append(s.resendsToSends(resends), more...)
	return sends, s.drain()
}

// Near is a naxplanation landing on the paired forward bone: it
// supersedes a prior bare nack and, once drained, surfaces err to the
// caller instead of a bare failure.
func (s *State) Near(messageNum uint32, errText string) []Done {
	q, exists := s.queuedAcks[messageNum]
	if !exists {
		q = &queuedAck{}
		s.queuedAcks[messageNum] = q
	}
	q.status = Naxplanation
	q.err = errText
	return s.drain()
}

func (s *State) drain() []Done {
	var out []Done
	for {
		q, ok := s.queuedAcks[s.Current]
		if !ok || q.status == Pending {
			break
		}
		d := Done{MessageNum: s.Current}
		if q.status == Nack || q.status == Naxplanation {
			if q.err == "" {
				d.Err = "nacked"
			} else {
				d.Err = q.err
			}
		}
		out = append(out, d)
		delete(s.queuedAcks, s.Current)
		delete(s.fragsByMsg, s.Current)
		s.Current++
	}
	return out
}

// Prod resets congestion for this flow, per the host's `prod` task.
func (s *State) Prod() {
	fresh := congestion.New()
	s.Congestion = fresh
}

// Wake is the packet-pump timer firing: on a genuine (non-spurious)
// wake it resends the head of the queue.
func (s *State) Wake(now time.Time) *Send {
	if !s.Congestion.Wake(now) {
		return nil
	}
	f := s.Congestion.Timeout(now)
	if f == nil {
		return nil
	}
	return &Send{
		MessageNum:   f.Key.MessageNum,
		NumFragments: s.fragsByMsg[f.Key.MessageNum],
		FragmentNum:  f.Key.FragmentNum,
		Bytes:        f.Bytes,
	}
}

// InFlightAndUnsent reports the total of in-flight plus unsent work on
// this flow, used by clog detection on backward flows.
func (s *State) InFlightAndUnsent() int {
	pending := 0
	if s.haveCur {
		pending += s.curNumFrags - s.curNextFragIdx
	}
	for _, m := range s.unsentMessages {
		pending += wire.NumFragments(len(m))
	}
	return s.Congestion.NumLive + pending
}
