package sink

import "testing"

// TestFirstMessageOnFreshSinkIsNotTreatedAsDuplicate guards against the
// zero value of NextAcked/NextHeard aliasing message-num 0: a brand new
// sink must treat the very first message as new, not as an
// already-acked duplicate.
func TestFirstMessageOnFreshSinkIsNotTreatedAsDuplicate(t *testing.T) {
    s := New()
    ack, del, err := s.HearFragment(0, 1, 0, []byte("a"))
    if err != nil { t.Fatalf("hear fragment: %v", err) }
    if del == nil {
        t.Fatalf("expected message 0 to be delivered on a fresh sink, got nil")
    }
    if string(del.Blob) != "a" {
        t.Fatalf("reassembled blob = %q, want %q", del.Blob, "a")
    }
    if ack != nil {
        t.Fatalf("single-fragment message should not get a separate fragment-ack, got %#v", ack)
    }

    done := s.ConsumerDone(true)
    if done == nil || done.MessageNum != 0 || !done.OK {
        t.Fatalf("expected a positive message-ack for message 0, got %#v", done)
    }
}

func TestHearFragmentDeliversOnLastFragment(t *testing.T) {
    s := New()
    _, _, err := s.HearFragment(0, 2, 0, []byte("a"))
    if err != nil { t.Fatalf("hear fragment 0: %v", err) }
    ack, del, err := s.HearFragment(0, 2, 1, []byte("b"))
    if err != nil { t.Fatalf("hear fragment 1: %v", err) }
    if del == nil {
        t.Fatalf("expected a delivery once both fragments arrived")
    }
    if string(del.Blob) != "ab" {
        t.Fatalf("reassembled blob = %q, want %q", del.Blob, "ab")
    }
    if ack != nil {
        t.Fatalf("the completing fragment should get no fragment-ack, got %#v", ack)
    }
}

// TestOutOfOrderTrailingFragmentGetsFragmentAck covers the case where the
// positionally-last fragment of a message arrives before the message is
// actually complete: it must still get its own fragment-ack rather than
// being silently withheld, since withholding it would stall fast
// retransmit on the fragments that haven't arrived yet.
func TestOutOfOrderTrailingFragmentGetsFragmentAck(t *testing.T) {
    s := New()
    ack, del, err := s.HearFragment(0, 3, 2, []byte("c")) // trailing fragment arrives first
    if err != nil { t.Fatalf("hear fragment 2: %v", err) }
    if del != nil {
        t.Fatalf("message is not complete yet, should not deliver")
    }
    if ack == nil || !ack.FragmentAck || ack.FragmentNum != 2 {
        t.Fatalf("expected a fragment-ack for fragment 2, got %#v", ack)
    }

    if _, _, err := s.HearFragment(0, 3, 0, []byte("a")); err != nil { t.Fatalf("hear fragment 0: %v", err) }
    ack, del, err = s.HearFragment(0, 3, 1, []byte("b"))
    if err != nil { t.Fatalf("hear fragment 1: %v", err) }
    if del == nil {
        t.Fatalf("expected delivery once all three fragments arrived")
    }
    if string(del.Blob) != "abc" {
        t.Fatalf("reassembled blob = %q, want %q", del.Blob, "abc")
    }
}

func TestDuplicateFragmentBelowLastAckedIsCached(t *testing.T) {
    s := New()
    s.HearFragment(0, 1, 0, []byte("a"))
    ack := s.ConsumerDone(true)
    if ack == nil || ack.MessageNum != 0 {
        t.Fatalf("expected a message-ack for message 0")
    }

    dupAck, del, err := s.HearFragment(0, 1, 0, []byte("a"))
    if err != nil { t.Fatalf("duplicate fragment: %v", err) }
    if del != nil {
        t.Fatalf("no delivery expected for a duplicate final fragment")
    }
    if dupAck == nil || !dupAck.MessageAck || !dupAck.OK {
        t.Fatalf("expected a cached OK message-ack, got %#v", dupAck)
    }
}

func TestMessageOutsideWindowIsDropped(t *testing.T) {
    s := New()
    s.NextAcked = 100
    ack, del, err := s.HearFragment(100+windowSize, 1, 0, []byte("x"))
    if err != nil { t.Fatalf("hear fragment: %v", err) }
    if ack != nil || del != nil {
        t.Fatalf("fragment beyond the inbound window should be silently dropped")
    }
}

func TestConsumerDoneNackRecordsNax(t *testing.T) {
    s := New()
    s.HearFragment(0, 1, 0, []byte("a"))
    ack := s.ConsumerDone(false)
    if ack == nil || ack.OK {
        t.Fatalf("expected a nacked message-ack, got %#v", ack)
    }
    if !s.nax[0] {
        t.Fatalf("nacked message should be recorded in nax")
    }
}

func TestDropClearsNax(t *testing.T) {
    s := New()
    s.HearFragment(0, 1, 0, []byte("a"))
    s.ConsumerDone(false)
    if !s.nax[0] {
        t.Fatalf("expected message 0 to be recorded in nax before Drop")
    }
    s.Drop(0)
    if s.nax[0] {
        t.Fatalf("expected Drop to clear message 0 from nax")
    }
}

func TestNextDeliveryWaitsForConsumer(t *testing.T) {
    s := New()
    s.HearFragment(0, 1, 0, []byte("a")) // delivered immediately, consumer now awaiting
    s.HearFragment(1, 1, 0, []byte("b")) // completes but consumer still busy

    if d := s.NextDelivery(); d != nil {
        t.Fatalf("NextDelivery should return nil while a delivery is outstanding")
    }
    s.ConsumerDone(true)
    d := s.NextDelivery()
    if d == nil || d.MessageNum != 1 {
        t.Fatalf("expected message 1 to be offered next, got %#v", d)
    }
}
