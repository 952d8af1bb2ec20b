package main

import (
	"encoding/base64"
	"fmt"
	"time"

	"ames/pkg/config"
	"ames/pkg/peer"
	"ames/pkg/pki"
	"ames/pkg/ship"
)

// buildDirectory turns the configured static peer list into the
// directory a pki.MockOracle answers RequestKeys from. Resolving a real
// Azimuth-backed oracle is out of scope; a configured directory is the
// stand-in the host supplies instead.
func buildDirectory(peers []config.PeerConfig) (map[ship.Ship]pki.Result, error) {
	dir := make(map[ship.Ship]pki.Result, len(peers))
	for _, pc := range peers {
		who, err := parseShip(pc.Ship)
		if err != nil {
			return nil, err
		}
		pub, err := base64.RawURLEncoding.DecodeString(pc.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("identity: bad public key for %s: %w", pc.Ship, err)
		}
		suite := pc.Suite
		if suite == "" {
			suite = "ed25519"
		}
		dir[who] = pki.Result{
			Kind:      pki.KindSnapshot,
			Ship:      who,
			Life:      ship.Life(pc.Life),
			Suite:     suite,
			PublicKey: pub,
		}
	}
	return dir, nil
}

// pumpOracleResults drains the oracle's asynchronous answers into the
// host's task queue until stop is closed.
func pumpOracleResults(oracle *pki.MockOracle, tasks chan<- peer.Task, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case r := <-oracle.Results:
			tasks <- peer.Task{Kind: peer.TaskPKIResult, Now: time.Now(), PKI: r}
		}
	}
}
