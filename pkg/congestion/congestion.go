// Package congestion implements the packet pump: Ames's TCP-Reno-like
// retransmit queue and congestion controller for in-flight fragments.
package congestion

import (
	"sort"
	"time"
)

const (
	minRTO = 200 * time.Millisecond
	maxRTO = 5 * time.Second
)

// Key identifies a live packet by (message-num, fragment-num).
type Key struct {
	MessageNum  uint32
	FragmentNum uint32
}

func (k Key) Less(o Key) bool {
	if k.MessageNum != o.MessageNum {
		return k.MessageNum < o.MessageNum
	}
	return k.FragmentNum < o.FragmentNum
}

// Fragment is the static payload a live packet resends unchanged.
type Fragment struct {
	Key   Key
	Bytes []byte
}

type live struct {
	frag     Fragment
	lastSent time.Time
	tries    int
	skips    int
}

// State is the packet pump's congestion state, owned by value by the
// message pump that embeds it.
type State struct {
	Cwnd     float64
	Ssthresh float64
	RTT      time.Duration
	RTTVar   time.Duration
	RTO      time.Duration
	NumLive  int
	Counter  uint64

	queue      []*live // sorted by Key
	nextWake   time.Time
	timerArmed bool
	resendList []Fragment
}

// New returns a freshly initialized packet pump.
func New() *State {
	return &State{
		Cwnd:     1,
		Ssthresh: 1 << 30,
		RTO:      minRTO,
	}
}

func clampRTO(d time.Duration) time.Duration {
	if d < minRTO {
		return minRTO
	}
	if d > maxRTO {
		return maxRTO
	}
	return d
}

// InSlowStart reports whether the pump is still below its threshold.
func (s *State) InSlowStart() bool { return s.Cwnd < s.Ssthresh }

// InRecovery reports whether more packets are live than the window
// currently allows.
func (s *State) InRecovery() bool { return float64(s.NumLive) > s.Cwnd }

func (s *State) insertSorted(l *live) {
	i := sort.Search(len(s.queue), func(i int) bool { return l.frag.Key.Less(s.queue[i].frag.Key) })
	s.queue = append(s.queue, nil)
	copy(s.queue[i+1:], s.queue[i:])
	s.queue[i] = l
}

func (s *State) find(k Key) (int, *live) {
	for i, l := range s.queue {
		if l.frag.Key == k {
			return i, l
		}
	}
	return -1, nil
}

func (s *State) removeAt(i int) {
	s.queue = append(s.queue[:i], s.queue[i+1:]...)
}

// Feed takes the first num-slots = max(0, cwnd - num-live) fragments,
// enqueues and emits them as sends, and returns the unsent tail so the
// message pump can keep them queued for the next feed.
func (s *State) Feed(frags []Fragment, now time.Time) (toSend []Fragment, unsent []Fragment) {
	slots := int(s.Cwnd) - s.NumLive
	if slots < 0 {
		slots = 0
	}
	if slots > len(frags) {
		slots = len(frags)
	}
	toSend = frags[:slots]
	unsent = frags[slots:]
	for _, f := range toSend {
		s.insertSorted(&live{frag: f, lastSent: now, tries: 1})
	}
	s.NumLive += len(toSend)
	s.rearm(now)
	return toSend, unsent
}

// mugMod is the deterministic pseudo-random predicate the spec requires
// in place of a real RNG: mug(now) mod cwnd == 0.
func mugMod(now time.Time, mod int) bool {
	if mod <= 0 {
		return true
	}
	mug := uint64(now.UnixNano())
	mug ^= mug >> 33
	mug *= 0xff51afd7ed558ccd
	mug ^= mug >> 33
	return int(mug%uint64(mod)) == 0
}

// AckResult tells the message pump what happened to the acked key so it
// can decide whether to deliver a done() upward.
type AckResult struct {
	Found bool
	Tries int
}

// AckFragment processes an ack for key: removes it if live, updates
// congestion and RTT state, and fast-retransmits any earlier fragment
// whose RTO has already elapsed.
func (s *State) AckFragment(key Key, now time.Time) AckResult {
	i, l := s.find(key)
	if l == nil {
		return AckResult{Found: false}
	}
	s.removeAt(i)
	s.NumLive--
	s.Counter++

	if s.InSlowStart() {
		s.Cwnd++
	} else if mugMod(now, int(s.Cwnd)) {
		s.Cwnd++
	}

	tries := l.tries
	if tries == 1 {
		sample := now.Sub(l.lastSent)
		if s.RTT == 0 {
			s.RTT = sample
			s.RTTVar = sample / 2
		} else {
			s.RTT = (sample + 7*s.RTT) / 8
			diff := sample - s.RTT
			if diff < 0 {
				diff = -diff
			}
			s.RTTVar = (diff + 7*s.RTTVar) / 8
		}
		s.RTO = clampRTO(s.RTT + 4*s.RTTVar)
	}

	// Every still-live fragment strictly preceding the one just acked is
	// resent at once if its RTO has already elapsed. Otherwise it has
	// been passed over, so its skip count advances; three skips (or an
	// ack while already in recovery) earns it an immediate resend.
	var toResend []Fragment
	for _, other := range s.queue {
		if !other.frag.Key.Less(key) {
			continue
		}
		if !now.Before(other.lastSent.Add(s.RTO)) {
			other.lastSent = now
			other.tries++
			toResend = append(toResend, other.frag)
			continue
		}
		if f := s.registerSkip(other, now); f != nil {
			toResend = append(toResend, *f)
		}
	}
	s.resendList = toResend
	s.rearm(now)
	return AckResult{Found: true, Tries: tries}
}

// PopResends drains the fragments the most recent Ack* call decided to
// resend immediately.
func (s *State) PopResends() []Fragment {
	out := s.resendList
	s.resendList = nil
	return out
}

// registerSkip increments l's skip count and, when the skip/retry
// conditions of §4.3 are met, marks it resent and returns its fragment.
func (s *State) registerSkip(l *live, now time.Time) (resend *Fragment) {
	l.skips++
	inRecovery := s.InRecovery()
	shouldResend := l.tries <= 1 && (inRecovery || l.skips >= 3)
	if !inRecovery {
		s.Cwnd /= 2
		if s.Cwnd < 2 {
			s.Cwnd = 2
		}
	}
	if !shouldResend {
		return nil
	}
	l.lastSent = now
	l.tries++
	frag := l.frag
	return &frag
}

// Timeout fires when the RTO timer expires: it halves the window,
// resets cwnd, doubles the RTO, and resends the head of the queue.
func (s *State) Timeout(now time.Time) *Fragment {
	if len(s.queue) == 0 {
		return nil
	}
	s.Ssthresh = s.Cwnd / 2
	if s.Ssthresh < 1 {
		s.Ssthresh = 1
	}
	s.Cwnd = 1
	s.RTO = clampRTO(s.RTO * 2)

	head := s.queue[0]
	head.lastSent = now
	head.tries++
	s.rearm(now)
	frag := head.frag
	return &frag
}

// NextWake reports when the timer should next fire, and whether one is
// armed at all.
func (s *State) NextWake() (time.Time, bool) { return s.nextWake, s.timerArmed }

// Wake handles a timer fire: spurious early wakes (now < next-wake) are
// tolerated by rearming without action; otherwise the caller should call
// Timeout.
func (s *State) Wake(now time.Time) (fire bool) {
	if !s.timerArmed {
		return false
	}
	if now.Before(s.nextWake) {
		return false
	}
	return true
}

// Rest cancels the timer, called once the flow has no live packets left.
func (s *State) Rest() { s.timerArmed = false }

func (s *State) rearm(now time.Time) {
	if len(s.queue) == 0 {
		s.Rest()
		return
	}
	want := s.queue[0].lastSent.Add(s.RTO)
	if !s.timerArmed || !want.Equal(s.nextWake) {
		s.nextWake = want
		s.timerArmed = true
	}
}

// NumQueued reports the live-packet count for introspection/tests.
func (s *State) NumQueued() int { return len(s.queue) }
