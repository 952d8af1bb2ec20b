// Package persist implements a bbolt-backed snapshot store for the
// continuity-sensitive half of a peer's state: identity, keys, and
// sponsorship. Flow state (the message pump and sink queues) is
// deliberately left out of the snapshot — on restart a peer re-derives
// its flows from scratch the same way a freshly met peer would, while
// life, rift, and sponsor must survive a restart or every ship talking
// to us would see a spurious continuity breach.
package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"ames/pkg/ship"
	"ames/pkg/wire"
)

const bPeers = "peers"

const openTimeout = 2 * time.Second

// schemaVersion is the on-disk Snapshot encoding this build writes.
// Every Put stamps it; Get and LoadAll run it through migrate first so
// an older node's database still loads after an upgrade.
const schemaVersion = 1

// Snapshot is the continuity-relevant subset of a peer.State, the part
// that must outlive a process restart.
type Snapshot struct {
	Version      uint32
	Ship         ship.Ship
	Known        bool
	Life         ship.Life
	Rift         ship.Rift
	PublicKey    []byte
	SymmetricKey []byte
	HasSponsor   bool
	Sponsor      ship.Ship
	LastContact  time.Time
}

// migrations composes the raw jammed bytes of a snapshot written under
// an older schemaVersion up to schemaVersion, one transform per
// version. Keyed by the version a transform upgrades *from*.
var migrations = map[uint32]func(raw []byte) ([]byte, error){
	0: migrateV0toV1,
}

// migrateV0toV1 upgrades a snapshot written before Version existed.
// CBOR's missing-field default already decodes such a record into the
// current Snapshot shape with Version left at its zero value, so this
// transform only needs to stamp the version forward.
func migrateV0toV1(raw []byte) ([]byte, error) {
	var snap Snapshot
	if err := wire.Cue(raw, &snap); err != nil {
		return nil, err
	}
	snap.Version = 1
	return wire.Jam(snap)
}

// migrate walks raw forward one version transform at a time until it
// reaches schemaVersion.
func migrate(raw []byte) ([]byte, error) {
	var probe struct{ Version uint32 }
	if err := wire.Cue(raw, &probe); err != nil {
		return nil, err
	}
	version := probe.Version
	for version != schemaVersion {
		step, ok := migrations[version]
		if !ok {
			return nil, fmt.Errorf("persist: no migration from snapshot version %d", version)
		}
		next, err := step(raw)
		if err != nil {
			return nil, err
		}
		raw = next
		if err := wire.Cue(raw, &probe); err != nil {
			return nil, err
		}
		version = probe.Version
	}
	return raw, nil
}

// Store is a BoltDB-backed keeper of peer snapshots, one bucket keyed
// by the peer's 16-byte big-endian address.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the snapshot database at path for read-write
// use, held for as long as the owning node runs.
func Open(path string) (*Store, error) {
	return open(path, false)
}

// OpenReadOnly opens the snapshot database at path without taking the
// exclusive lock Open does, so an admin tool can inspect a database a
// live node is concurrently writing to.
func OpenReadOnly(path string) (*Store, error) {
	return open(path, true)
}

func open(path string, readOnly bool) (*Store, error) {
	if path == "" {
		return nil, errors.New("persist: empty db path")
	}
	if !readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout, ReadOnly: readOnly})
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if readOnly {
		return s, nil
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bPeers))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Put writes snap, overwriting whatever was stored for that ship.
func (s *Store) Put(snap Snapshot) error {
	snap.Version = schemaVersion
	val, err := wire.Jam(snap)
	if err != nil {
		return err
	}
	key := snap.Ship.Bytes()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bPeers)).Put(key[:], val)
	})
}

// Get loads the snapshot stored for who, if any.
func (s *Store) Get(who ship.Ship) (Snapshot, bool, error) {
	var snap Snapshot
	found := false
	key := who.Bytes()
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bPeers))
		if b == nil {
			return nil
		}
		raw := b.Get(key[:])
		if raw == nil {
			return nil
		}
		found = true
		migrated, err := migrate(raw)
		if err != nil {
			return err
		}
		return wire.Cue(migrated, &snap)
	})
	return snap, found, err
}

// LoadAll visits every stored snapshot, in bucket (address) order.
func (s *Store) LoadAll(fn func(Snapshot) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bPeers))
		if b == nil {
			return nil // nothing written yet
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			migrated, err := migrate(v)
			if err != nil {
				continue // corrupt or unmigratable record: skip rather than fail the whole load
			}
			var snap Snapshot
			if err := wire.Cue(migrated, &snap); err != nil {
				continue
			}
			if err := fn(snap); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes who's snapshot, if any.
func (s *Store) Delete(who ship.Ship) error {
	key := who.Bytes()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bPeers)).Delete(key[:])
	})
}
