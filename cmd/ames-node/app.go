package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ames/pkg/config"
	"ames/pkg/observability"
	"ames/pkg/peer"
	"ames/pkg/peerstats"
	"ames/pkg/persist"
	"ames/pkg/pki"
	"ames/pkg/transport/udp"
)

const snapshotInterval = 30 * time.Second
const tickInterval = 5 * time.Second

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer logger.Sync()

	us, err := parseShip(cfg.Identity.Ship)
	if err != nil {
		return err
	}
	signingKey, err := loadSigningKey(cfg.Identity, cfg.DataDir)
	if err != nil {
		return err
	}
	agreeKey, err := loadAgreeKey(cfg.DataDir)
	if err != nil {
		return err
	}

	directory, err := buildDirectory(cfg.Net.Peers)
	if err != nil {
		return fmt.Errorf("build pki directory: %w", err)
	}
	oracle := pki.NewMockOracle(directory)

	store, err := persist.Open(filepath.Join(cfg.DataDir, "peers.db"))
	if err != nil {
		return fmt.Errorf("open persist store: %w", err)
	}
	defer store.Close()
	stats := peerstats.New()
	defer stats.Close()

	t := peer.NewTransport(us, 1, 1, signingKey, agreeKey, oracle)
	if err := restorePeers(t, store); err != nil {
		return fmt.Errorf("restore peers: %w", err)
	}

	conn, err := udp.Listen(cfg.Net.Listen)
	if err != nil {
		return fmt.Errorf("listen udp %s: %w", cfg.Net.Listen, err)
	}
	defer conn.Close()

	logger.Info("ames-node started", zap.String("ship", us.String()), zap.String("listen", conn.LocalAddr()))

	h := newHost(t, conn, store, stats, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopOracle := make(chan struct{})
	defer close(stopOracle)
	go pumpOracleResults(oracle, h.tasks, stopOracle)
	go h.recvLoop(ctx)
	go h.snapshotLoop(ctx, snapshotInterval)
	go h.tickLoop(ctx, tickInterval)

	if cfg.Net.SponsorShip != "" {
		if err := bootstrapSponsor(h, cfg.Net); err != nil {
			logger.Warn("sponsor bootstrap failed", zap.Error(err))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	h.run(ctx)
	h.snapshot(time.Now())
	return nil
}

// restorePeers installs every persisted snapshot into the transport's
// peer map before the host loop starts, so a restart doesn't look like
// a continuity breach to every peer that's talked to us before.
func restorePeers(t *peer.Transport, store *persist.Store) error {
	return store.LoadAll(func(snap persist.Snapshot) error {
		p := t.PeerFor(snap.Ship)
		p.Known = snap.Known
		p.Life = snap.Life
		p.Rift = snap.Rift
		p.PublicKey = snap.PublicKey
		p.SymmetricKey = snap.SymmetricKey
		p.HasSponsor = snap.HasSponsor
		p.Sponsor = snap.Sponsor
		p.LastContact = snap.LastContact
		return nil
	})
}

// bootstrapSponsor seeds the sponsor as a known peer with a direct
// lane from static config, letting a fresh node reach its sponsor
// before the PKI oracle has told it anything.
func bootstrapSponsor(h *host, net config.NetConfig) error {
	sponsor, err := parseShip(net.SponsorShip)
	if err != nil {
		return err
	}
	h.coreMu.Lock()
	p := h.transport.PeerFor(sponsor)
	if net.SponsorLane != "" {
		p.Route.Known = true
		p.Route.Direct = true
		p.Route.Lane.Addr = net.SponsorLane
	}
	h.coreMu.Unlock()
	if !p.Known {
		h.submit(peer.Task{Kind: peer.TaskPlea, Now: time.Now(), PleaTo: sponsor})
	}
	return nil
}
