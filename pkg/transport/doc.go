// Package transport defines the datagram link Ames sends and receives
// packet blobs over: a Conn carries opaque bytes addressed by lane, with
// no sessions, streams, or multiplexing — Ames's own packet pump and
// congestion control already provide reliability above this layer.
package transport
