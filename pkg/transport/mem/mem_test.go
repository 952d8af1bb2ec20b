package mem

import (
    "context"
    "testing"
    "time"

    "ames/pkg/peer"
)

func TestSendRecvRoundtrip(t *testing.T) {
    a, err := Listen("a")
    if err != nil { t.Fatalf("listen a: %v", err) }
    defer a.Close()
    b, err := Listen("b")
    if err != nil { t.Fatalf("listen b: %v", err) }
    defer b.Close()

    if err := a.Send(peer.Lane{Addr: "b"}, []byte("hello")); err != nil {
        t.Fatalf("send: %v", err)
    }

    ctx, cancel := context.WithTimeout(context.Background(), time.Second)
    defer cancel()
    from, blob, err := b.Recv(ctx)
    if err != nil { t.Fatalf("recv: %v", err) }
    if from.Addr != "a" {
        t.Fatalf("from = %q, want %q", from.Addr, "a")
    }
    if string(blob) != "hello" {
        t.Fatalf("blob = %q, want %q", blob, "hello")
    }
}

func TestSendToUnknownAddressErrors(t *testing.T) {
    a, err := Listen("c")
    if err != nil { t.Fatalf("listen: %v", err) }
    defer a.Close()

    if err := a.Send(peer.Lane{Addr: "nobody"}, []byte("x")); err == nil {
        t.Fatalf("expected an error sending to an unregistered address")
    }
}

func TestListenRejectsDuplicateAddress(t *testing.T) {
    a, err := Listen("d")
    if err != nil { t.Fatalf("listen: %v", err) }
    defer a.Close()

    if _, err := Listen("d"); err == nil {
        t.Fatalf("expected an error listening on an address already in use")
    }
}

func TestRecvUnblocksOnContextCancel(t *testing.T) {
    a, err := Listen("e")
    if err != nil { t.Fatalf("listen: %v", err) }
    defer a.Close()

    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    if _, _, err := a.Recv(ctx); err == nil {
        t.Fatalf("expected Recv to return an error for an already-cancelled context")
    }
}

func TestCloseUnblocksRecv(t *testing.T) {
    a, err := Listen("f")
    if err != nil { t.Fatalf("listen: %v", err) }

    done := make(chan error, 1)
    go func() {
        _, _, err := a.Recv(context.Background())
        done <- err
    }()
    a.Close()

    select {
    case err := <-done:
        if err == nil {
            t.Fatalf("expected Recv to return an error once the connection is closed")
        }
    case <-time.After(time.Second):
        t.Fatalf("Recv did not unblock after Close")
    }
}

func TestLocalAddr(t *testing.T) {
    a, err := Listen("g")
    if err != nil { t.Fatalf("listen: %v", err) }
    defer a.Close()
    if a.LocalAddr() != "g" {
        t.Fatalf("LocalAddr() = %q, want %q", a.LocalAddr(), "g")
    }
}
