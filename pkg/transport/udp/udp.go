// Package udp implements transport.Conn over a raw UDP socket, the one
// link Ames actually runs over.
package udp

import (
	"context"
	"net"

	"ames/pkg/peer"
)

// Conn wraps a single UDP socket used both to listen and to send, the
// same one-socket-does-both shape ttmesh's own UDP transport used.
type Conn struct {
	sock *net.UDPConn
}

// Listen opens a UDP socket bound to address (":34343"-style) for both
// inbound and outbound traffic.
func Listen(address string) (*Conn, error) {
	laddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	sock, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &Conn{sock: sock}, nil
}

func (c *Conn) Send(lane peer.Lane, blob []byte) error {
	raddr, err := net.ResolveUDPAddr("udp", lane.Addr)
	if err != nil {
		return err
	}
	_, err = c.sock.WriteToUDP(blob, raddr)
	return err
}

// Recv blocks for the next datagram, abandoning the read if ctx is
// cancelled first.
func (c *Conn) Recv(ctx context.Context) (peer.Lane, []byte, error) {
	type result struct {
		lane peer.Lane
		blob []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		buf := make([]byte, 64*1024)
		n, raddr, err := c.sock.ReadFromUDP(buf)
		if err != nil {
			done <- result{err: err}
			return
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		done <- result{lane: peer.Lane{Addr: raddr.String()}, blob: pkt}
	}()
	select {
	case <-ctx.Done():
		return peer.Lane{}, nil, ctx.Err()
	case r := <-done:
		return r.lane, r.blob, r.err
	}
}

func (c *Conn) LocalAddr() string { return c.sock.LocalAddr().String() }

func (c *Conn) Close() error { return c.sock.Close() }
