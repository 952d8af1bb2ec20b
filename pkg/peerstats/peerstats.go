// Package peerstats is a TTL'd read-model cache of per-peer liveness
// and link-quality figures observed while dispatching tasks: RTT,
// packet loss, and last-seen. It is a pure side-channel for monitoring
// and the admin CLI — nothing it holds feeds back into protocol
// decisions, which still live entirely in pkg/peer's own QoS state.
package peerstats

import (
	"time"

	"ames/pkg/congestion"
	"ames/pkg/memkv"
	"ames/pkg/ship"
	"ames/pkg/wire"
)

// ttl bounds how long a peer's entry survives without being refreshed;
// a peer that has gone quiet long enough to fall out of the cache is
// treated as absent by Get rather than stale.
const ttl = 5 * time.Minute

// Entry is the figures recorded for one peer, refreshed on every
// observation rather than averaged across the cache's own lifetime.
type Entry struct {
	Ship        ship.Ship
	LastSeen    time.Time
	RTT         time.Duration
	Cwnd        float64
	NumLive     int
	FragsSent   uint64
	FragsResent uint64
}

// Store is a memkv-backed cache keyed by the ship's string address.
type Store struct {
	kv *memkv.Store
}

// New returns a fresh, empty peer-stats cache.
func New() *Store {
	return &Store{kv: memkv.New(memkv.Options{})}
}

func (s *Store) Close() { s.kv.Close() }

func key(who ship.Ship) string { return who.String() }

// Observe records a fresh RTT/congestion sample for who, replacing
// whatever was cached and resetting its TTL.
func (s *Store) Observe(who ship.Ship, now time.Time, cong *congestion.State) {
	e, _ := s.Get(who)
	e.Ship = who
	e.LastSeen = now
	e.RTT = cong.RTT
	e.Cwnd = cong.Cwnd
	e.NumLive = cong.NumLive
	e.FragsSent++
	raw, err := wire.Jam(e)
	if err != nil {
		return
	}
	s.kv.Set(key(who), raw, ttl)
}

// ObserveResend increments the resend counter of who's existing entry
// without disturbing the other fields; a peer with no entry is left
// without one.
func (s *Store) ObserveResend(who ship.Ship) {
	s.kv.Update(key(who), func(old []byte) []byte {
		var e Entry
		if len(old) > 0 {
			_ = wire.Cue(old, &e)
		}
		e.Ship = who
		e.FragsResent++
		raw, err := wire.Jam(e)
		if err != nil {
			return old
		}
		return raw
	})
}

// Get returns who's cached entry, if one hasn't expired.
func (s *Store) Get(who ship.Ship) (Entry, bool) {
	raw, ok := s.kv.Get(key(who))
	if !ok {
		return Entry{}, false
	}
	var e Entry
	if err := wire.Cue(raw, &e); err != nil {
		return Entry{}, false
	}
	return e, true
}

// Forget drops who's cached entry, so a later Observe starts from a
// clean slate.
func (s *Store) Forget(who ship.Ship) { s.kv.Delete(key(who)) }
