package transport

import (
	"context"

	"ames/pkg/peer"
)

// Conn is the datagram link the host event loop reads `hear` tasks from
// and writes `send` effects to. One Recv call yields exactly one packet
// blob and the lane it arrived on; one Send call transmits exactly one
// packet blob to a lane. There is no connection setup, ordering, or
// retry at this layer — that is the packet pump's job.
type Conn interface {
	Send(lane peer.Lane, blob []byte) error
	Recv(ctx context.Context) (peer.Lane, []byte, error)
	LocalAddr() string
	Close() error
}
