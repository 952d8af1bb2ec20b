// Package mem implements transport.Conn over in-process channels, used by
// tests that need two or more Ames nodes exchanging packets without a
// real socket.
package mem

import (
	"context"
	"errors"
	"sync"

	"ames/pkg/peer"
)

// registry maps a name (this Conn's own address) to its inbox, so any
// other Conn in the same process can address it by name.
var (
	registryMu sync.Mutex
	registry   = map[string]*Conn{}
)

type datagram struct {
	from peer.Lane
	blob []byte
}

// Conn is one named endpoint in the in-process registry.
type Conn struct {
	name   string
	inbox  chan datagram
	closed chan struct{}
}

// Listen registers a new named endpoint. name doubles as the address
// other Conns dial with Send.
func Listen(name string) (*Conn, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		return nil, errors.New("mem: address already in use: " + name)
	}
	c := &Conn{name: name, inbox: make(chan datagram, 64), closed: make(chan struct{})}
	registry[name] = c
	return c, nil
}

func (c *Conn) Send(lane peer.Lane, blob []byte) error {
	registryMu.Lock()
	dst, ok := registry[lane.Addr]
	registryMu.Unlock()
	if !ok {
		return errors.New("mem: no such address: " + lane.Addr)
	}
	select {
	case dst.inbox <- datagram{from: peer.Lane{Addr: c.name}, blob: blob}:
		return nil
	case <-dst.closed:
		return errors.New("mem: destination closed")
	}
}

func (c *Conn) Recv(ctx context.Context) (peer.Lane, []byte, error) {
	select {
	case <-ctx.Done():
		return peer.Lane{}, nil, ctx.Err()
	case <-c.closed:
		return peer.Lane{}, nil, errors.New("mem: connection closed")
	case d := <-c.inbox:
		return d.from, d.blob, nil
	}
}

func (c *Conn) LocalAddr() string { return c.name }

func (c *Conn) Close() error {
	registryMu.Lock()
	delete(registry, c.name)
	registryMu.Unlock()
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}
