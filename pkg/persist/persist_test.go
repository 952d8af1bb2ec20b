package persist

import (
    "path/filepath"
    "testing"
    "time"

    bolt "go.etcd.io/bbolt"

    "ames/pkg/ship"
    "ames/pkg/wire"
)

func TestPutGetRoundtrip(t *testing.T) {
    path := filepath.Join(t.TempDir(), "peers.db")
    store, err := Open(path)
    if err != nil { t.Fatalf("open: %v", err) }
    defer store.Close()

    who := ship.FromUint64(42)
    snap := Snapshot{
        Ship:        who,
        Known:       true,
        Life:        3,
        Rift:        1,
        PublicKey:   []byte("pub"),
        HasSponsor:  true,
        Sponsor:     ship.FromUint64(256),
        LastContact: time.Now().Truncate(time.Second),
    }
    if err := store.Put(snap); err != nil { t.Fatalf("put: %v", err) }

    got, found, err := store.Get(who)
    if err != nil { t.Fatalf("get: %v", err) }
    if !found {
        t.Fatalf("expected to find a snapshot for %v", who)
    }
    if got.Life != snap.Life || got.Rift != snap.Rift || !got.Sponsor.Equal(snap.Sponsor) {
        t.Fatalf("roundtrip mismatch: %#v vs %#v", got, snap)
    }
}

func TestGetMissingReturnsNotFound(t *testing.T) {
    path := filepath.Join(t.TempDir(), "peers.db")
    store, err := Open(path)
    if err != nil { t.Fatalf("open: %v", err) }
    defer store.Close()

    _, found, err := store.Get(ship.FromUint64(9))
    if err != nil { t.Fatalf("get: %v", err) }
    if found {
        t.Fatalf("expected no snapshot for an address that was never stored")
    }
}

func TestLoadAllVisitsEveryEntry(t *testing.T) {
    path := filepath.Join(t.TempDir(), "peers.db")
    store, err := Open(path)
    if err != nil { t.Fatalf("open: %v", err) }
    defer store.Close()

    ships := []ship.Ship{ship.FromUint64(1), ship.FromUint64(2), ship.FromUint64(3)}
    for _, s := range ships {
        if err := store.Put(Snapshot{Ship: s, Known: true}); err != nil { t.Fatalf("put %v: %v", s, err) }
    }

    seen := map[string]bool{}
    if err := store.LoadAll(func(s Snapshot) error {
        seen[s.Ship.String()] = true
        return nil
    }); err != nil { t.Fatalf("load all: %v", err) }

    for _, s := range ships {
        if !seen[s.String()] {
            t.Fatalf("LoadAll missed %v", s)
        }
    }
}

func TestDelete(t *testing.T) {
    path := filepath.Join(t.TempDir(), "peers.db")
    store, err := Open(path)
    if err != nil { t.Fatalf("open: %v", err) }
    defer store.Close()

    who := ship.FromUint64(7)
    store.Put(Snapshot{Ship: who, Known: true})
    if err := store.Delete(who); err != nil { t.Fatalf("delete: %v", err) }

    _, found, err := store.Get(who)
    if err != nil { t.Fatalf("get: %v", err) }
    if found {
        t.Fatalf("expected the snapshot to be gone after Delete")
    }
}

func TestOpenReadOnlyOnFreshFile(t *testing.T) {
    path := filepath.Join(t.TempDir(), "peers.db")
    rw, err := Open(path)
    if err != nil { t.Fatalf("open: %v", err) }
    rw.Close()

    ro, err := OpenReadOnly(path)
    if err != nil { t.Fatalf("open read-only: %v", err) }
    defer ro.Close()

    var count int
    if err := ro.LoadAll(func(Snapshot) error { count++; return nil }); err != nil {
        t.Fatalf("load all on empty store: %v", err)
    }
    if count != 0 {
        t.Fatalf("expected no snapshots in a fresh store, got %d", count)
    }
}

func TestOpenRejectsEmptyPath(t *testing.T) {
    if _, err := Open(""); err == nil {
        t.Fatalf("expected an error opening an empty path")
    }
}

func TestPutStampsCurrentVersion(t *testing.T) {
    path := filepath.Join(t.TempDir(), "peers.db")
    store, err := Open(path)
    if err != nil { t.Fatalf("open: %v", err) }
    defer store.Close()

    who := ship.FromUint64(11)
    if err := store.Put(Snapshot{Ship: who, Known: true}); err != nil { t.Fatalf("put: %v", err) }

    got, found, err := store.Get(who)
    if err != nil { t.Fatalf("get: %v", err) }
    if !found { t.Fatalf("expected to find a snapshot") }
    if got.Version != schemaVersion {
        t.Fatalf("Version = %d, want %d", got.Version, schemaVersion)
    }
}

// TestGetMigratesUnversionedRecord simulates a snapshot written before
// the Version field existed: a bare Snapshot with no Version key at
// all, decoded by CBOR's missing-field default as Version 0. Get must
// run it through migrateV0toV1 rather than surfacing it as version 0.
func TestGetMigratesUnversionedRecord(t *testing.T) {
    path := filepath.Join(t.TempDir(), "peers.db")
    store, err := Open(path)
    if err != nil { t.Fatalf("open: %v", err) }
    defer store.Close()

    type unversionedSnapshot struct {
        Ship        ship.Ship
        Known       bool
        Life        ship.Life
        LastContact time.Time
    }
    who := ship.FromUint64(12)
    legacy := unversionedSnapshot{Ship: who, Known: true, Life: 5, LastContact: time.Now().Truncate(time.Second)}
    raw, err := wire.Jam(legacy)
    if err != nil { t.Fatalf("jam legacy record: %v", err) }

    key := who.Bytes()
    if err := store.db.Update(func(tx *bolt.Tx) error {
        return tx.Bucket([]byte(bPeers)).Put(key[:], raw)
    }); err != nil { t.Fatalf("write legacy record: %v", err) }

    got, found, err := store.Get(who)
    if err != nil { t.Fatalf("get: %v", err) }
    if !found { t.Fatalf("expected to find the migrated legacy snapshot") }
    if got.Version != schemaVersion {
        t.Fatalf("Version after migration = %d, want %d", got.Version, schemaVersion)
    }
    if got.Life != legacy.Life || !got.Ship.Equal(legacy.Ship) {
        t.Fatalf("migrated snapshot lost fields: %#v", got)
    }
}
