// Package sink implements the message sink: per-flow inbound
// reassembly, duplicate suppression, and ack scheduling.
package sink

import (
	"fmt"

	"ames/pkg/wire"
)

// windowSize bounds how many messages past last-acked may be in flight
// inbound at once.
const windowSize = 10

type partial struct {
	numFragments uint32
	received     map[uint32][]byte
}

// Ack is an outbound acknowledgement the sink wants sent back on this
// flow's bone (a fragment-ack or a message-ack).
type Ack struct {
	FragmentAck bool
	FragmentNum uint32
	MessageAck  bool
	MessageNum  uint32
	OK          bool
}

// Delivery is a fully reassembled message offered to the local
// consumer; at most one is outstanding at a time.
type Delivery struct {
	MessageNum uint32
	Blob       []byte
}

// State is one flow's inbound sink.
type State struct {
	// NextAcked is the smallest message-num the consumer has not yet
	// dispositioned: every messageNum < NextAcked has already been
	// ConsumerDone'd. Starts at 0, meaning "nothing acked yet" — unlike
	// an inclusive "last acked" watermark, this never aliases the
	// legitimate first message-num (0).
	NextAcked uint32
	// NextHeard is the smallest message-num that has not yet finished
	// reassembly. Same exclusive convention as NextAcked.
	NextHeard uint32

	live map[uint32]*partial
	nax  map[uint32]bool

	// cachedOK retains message-ack dispositions at or below last-acked so
	// a duplicate final fragment gets a consistent cached reply instead
	// of being reprocessed.
	cachedOK map[uint32]bool

	pendingBlobs   map[uint32][]byte // reassembled, not yet offered or in flight with the consumer
	pendingVaneAck []uint32          // FIFO of completed message nums awaiting consumer response
	awaiting       bool              // true while a Delivery is outstanding with the consumer
}

// New returns a fresh, empty message sink.
func New() *State {
	return &State{
		live:         make(map[uint32]*partial),
		nax:          make(map[uint32]bool),
		cachedOK:     make(map[uint32]bool),
		pendingBlobs: make(map[uint32][]byte),
	}
}

// HearFragment processes one inbound fragment. It returns any ack to
// send immediately and, if this fragment completes its message and the
// consumer is free, a Delivery to offer right away.
func (s *State) HearFragment(messageNum, numFragments, fragmentNum uint32, data []byte) (*Ack, *Delivery, error) {
	isFinal := fragmentNum == numFragments-1

	if messageNum >= s.NextAcked+windowSize {
		return nil, nil, nil // silently rejected: outside the inbound window
	}

	if messageNum < s.NextAcked {
		if isFinal {
			ok, known := s.cachedOK[messageNum]
			if !known {
				ok = !s.nax[messageNum]
			}
			return &Ack{MessageAck: true, MessageNum: messageNum, OK: ok}, nil, nil
		}
		return &Ack{FragmentAck: true, FragmentNum: fragmentNum}, nil, nil
	}

	if messageNum < s.NextHeard {
		if isFinal {
			return nil, nil, nil // dropped: no commitment before the consumer responds
		}
		return &Ack{FragmentAck: true, FragmentNum: fragmentNum}, nil, nil
	}

	p, exists := s.live[messageNum]
	if !exists {
		p = &partial{numFragments: numFragments, received: make(map[uint32][]byte)}
		s.live[messageNum] = p
	} else if p.numFragments != numFragments {
		return nil, nil, fmt.Errorf("sink: num-fragments mismatch for message %d: %d vs %d", messageNum, p.numFragments, numFragments)
	}
	p.received[fragmentNum] = data

	// Withhold the fragment-ack only from whichever fragment actually
	// completes reassembly, not whichever happens to carry the highest
	// index — a message's trailing fragment can arrive before earlier
	// ones and still needs its own fragment-ack.
	completes := uint32(len(p.received)) == p.numFragments

	var ack *Ack
	if !completes {
		ack = &Ack{FragmentAck: true, FragmentNum: fragmentNum}
	}

	if !completes {
		return ack, nil, nil
	}

	ordered := make([][]byte, p.numFragments)
	for i := uint32(0); i < p.numFragments; i++ {
		ordered[i] = p.received[i]
	}
	blob := wire.Reassemble(ordered)
	delete(s.live, messageNum)
	s.NextHeard = messageNum + 1

	s.pendingVaneAck = append(s.pendingVaneAck, messageNum)
	s.pendingBlobs[messageNum] = blob
	if !s.awaiting {
		s.awaiting = true
		return ack, &Delivery{MessageNum: messageNum, Blob: blob}, nil
	}
	return ack, nil, nil
}

// ConsumerDone is the local consumer's response to the message it was
// last offered: it pops pending-vane-ack, advances last-acked, records
// the disposition for future dedup, and emits the outbound message-ack.
// Call NextDelivery afterward to see whether another message is ready.
func (s *State) ConsumerDone(ok bool) *Ack {
	if len(s.pendingVaneAck) == 0 {
		return nil
	}
	msgNum := s.pendingVaneAck[0]
	s.pendingVaneAck = s.pendingVaneAck[1:]
	delete(s.pendingBlobs, msgNum)
	s.NextAcked = msgNum + 1
	if !ok {
		s.nax[msgNum] = true
	}
	s.cachedOK[msgNum] = ok
	s.awaiting = false
	return &Ack{MessageAck: true, MessageNum: msgNum, OK: ok}
}

// Drop removes messageNum from nax, per the host's drop task.
func (s *State) Drop(messageNum uint32) { delete(s.nax, messageNum) }

// NextDelivery offers the next completed message to the consumer, if
// one is queued and the consumer is currently free.
func (s *State) NextDelivery() *Delivery {
	if s.awaiting || len(s.pendingVaneAck) == 0 {
		return nil
	}
	msgNum := s.pendingVaneAck[0]
	s.awaiting = true
	return &Delivery{MessageNum: msgNum, Blob: s.pendingBlobs[msgNum]}
}
