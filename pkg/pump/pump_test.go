package pump

import (
    "testing"
    "time"
)

func TestMemoSendsUnderWindow(t *testing.T) {
    s := New()
    now := time.Now()
    blob := make([]byte, 10) // one fragment
    sends := s.Memo(blob, now)
    if len(sends) != 1 {
        t.Fatalf("Memo produced %d sends, want 1", len(sends))
    }
    if sends[0].MessageNum != 0 || sends[0].FragmentNum != 0 {
        t.Fatalf("unexpected send: %#v", sends[0])
    }
}

func TestHearFragmentAckFeedsMore(t *testing.T) {
    s := New()
    s.Congestion.Cwnd = 1
    now := time.Now()

    s.Memo(make([]byte, 10), now)  // message 0, sent immediately
    s.Memo(make([]byte, 10), now)  // message 1, held back by cwnd=1

    sends := s.HearFragmentAck(0, 0, now.Add(time.Millisecond))
    if len(sends) != 1 || sends[0].MessageNum != 1 {
        t.Fatalf("expected message 1 to be fed after acking message 0's fragment, got %#v", sends)
    }
}

// TestHearMessageAckClearsAllFragmentsOfMessage exercises the fix where a
// message-ack must resolve every fragment of that message in the packet
// pump's live queue, not just fragment 0 — otherwise whichever fragment
// actually completed reassembly on the far side keeps retransmitting
// forever.
func TestHearMessageAckClearsAllFragmentsOfMessage(t *testing.T) {
    s := New()
    s.Congestion.Cwnd = 10
    now := time.Now()

    blob := make([]byte, 2500) // three 1024-byte fragments
    s.Memo(blob, now)
    if s.Congestion.NumLive != 3 {
        t.Fatalf("expected 3 live fragments in flight, got %d", s.Congestion.NumLive)
    }

    _, dones := s.HearMessageAck(0, true, now.Add(time.Millisecond))
    if s.Congestion.NumLive != 0 {
        t.Fatalf("HearMessageAck should clear all 3 live fragments of the message, %d still live", s.Congestion.NumLive)
    }
    if len(dones) != 1 || dones[0].MessageNum != 0 || dones[0].Err != "" {
        t.Fatalf("expected a clean Done for message 0, got %#v", dones)
    }
}

func TestHearMessageAckNackSurfacesError(t *testing.T) {
    s := New()
    now := time.Now()
    s.Memo(make([]byte, 10), now)

    _, dones := s.HearMessageAck(0, false, now)
    if len(dones) != 1 || dones[0].Err == "" {
        t.Fatalf("expected a non-empty error for a nacked message, got %#v", dones)
    }
}

func TestDoneEventsDrainInOrder(t *testing.T) {
    s := New()
    s.Congestion.Cwnd = 10
    now := time.Now()
    s.Memo(make([]byte, 10), now) // message 0
    s.Memo(make([]byte, 10), now) // message 1

    // Ack message 1 first: it must not surface until message 0 drains.
    _, dones := s.HearMessageAck(1, true, now)
    if len(dones) != 0 {
        t.Fatalf("message 1 should not drain before message 0, got %#v", dones)
    }
    _, dones = s.HearMessageAck(0, true, now)
    if len(dones) != 2 || dones[0].MessageNum != 0 || dones[1].MessageNum != 1 {
        t.Fatalf("expected messages 0 then 1 to drain in order, got %#v", dones)
    }
}

func TestWakeResendsHeadOnTimeout(t *testing.T) {
    s := New()
    now := time.Now()
    s.Memo(make([]byte, 10), now)
    s.Congestion.RTO = time.Millisecond

    send := s.Wake(now.Add(time.Second))
    if send == nil {
        t.Fatalf("expected a resend on a genuine timeout wake")
    }
    if send.MessageNum != 0 || send.FragmentNum != 0 {
        t.Fatalf("unexpected resend: %#v", send)
    }
}

func TestWakeSpuriousIsNil(t *testing.T) {
    s := New()
    now := time.Now()
    s.Memo(make([]byte, 10), now)

    if send := s.Wake(now); send != nil {
        t.Fatalf("expected nil on a spurious wake before RTO elapses, got %#v", send)
    }
}
