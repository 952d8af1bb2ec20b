package main

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"ames/pkg/config"
	"ames/pkg/crypto/agree"
	"ames/pkg/ship"
)

// parseShip reads a decimal Urbit point out of cfg and turns it into a
// ship.Ship, which only stores the raw 128-bit address.
func parseShip(s string) (ship.Ship, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "~")
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return ship.Ship{}, fmt.Errorf("identity: not a decimal ship address: %q", s)
	}
	return ship.FromBig(n), nil
}

// loadSigningKey resolves our ed25519 private key from config: an
// inline base64url seed, a seed file, or — failing both — a freshly
// generated seed persisted to dataDir so restarts keep the same
// identity instead of becoming a new ship every boot.
func loadSigningKey(cfg config.IdentityConfig, dataDir string) (ed25519.PrivateKey, error) {
	if cfg.PrivateKey != "" {
		return decodeSeed(cfg.PrivateKey)
	}
	if cfg.PrivateKeyFile != "" {
		raw, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("identity: read private_key_file: %w", err)
		}
		return decodeSeed(strings.TrimSpace(string(raw)))
	}

	path := filepath.Join(dataDir, "signing.key")
	if raw, err := os.ReadFile(path); err == nil {
		return decodeSeed(strings.TrimSpace(string(raw)))
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate signing key: %w", err)
	}
	seed := base64.RawURLEncoding.EncodeToString(priv.Seed())
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("identity: create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		return nil, fmt.Errorf("identity: persist signing key: %w", err)
	}
	return priv, nil
}

func decodeSeed(s string) (ed25519.PrivateKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("identity: bad seed encoding: %w", err)
	}
	if len(raw) != ed25519.SeedSize {
		return nil, fmt.Errorf("identity: seed must be %d bytes, got %d", ed25519.SeedSize, len(raw))
	}
	return ed25519.NewKeyFromSeed(raw), nil
}

// loadAgreeKey resolves our X25519 agreement key the same way as the
// signing key, persisting a freshly generated one under dataDir so the
// symmetric key we share with every peer also survives a restart.
func loadAgreeKey(dataDir string) (*ecdh.PrivateKey, error) {
	path := filepath.Join(dataDir, "agree.key")
	if raw, err := os.ReadFile(path); err == nil {
		seed, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("identity: bad agreement key encoding: %w", err)
		}
		return agree.ParsePrivateKey(seed)
	}

	priv, _, err := agree.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("identity: generate agreement key: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("identity: create data dir: %w", err)
	}
	enc := base64.RawURLEncoding.EncodeToString(priv.Bytes())
	if err := os.WriteFile(path, []byte(enc), 0o600); err != nil {
		return nil, fmt.Errorf("identity: persist agreement key: %w", err)
	}
	return priv, nil
}
