// Command dalight runs the data-availability light client: it connects to a
// version-compatible full node, samples random cells of each new block, and
// verifies their KZG proofs to score the block's availability.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dalight/dalight/config"
	"github.com/dalight/dalight/light"
	"github.com/dalight/dalight/log"
	"github.com/dalight/dalight/proof"
	"github.com/dalight/dalight/rpc"
	"github.com/dalight/dalight/telemetry"
)

const pollInterval = 5 * time.Second

// expectedVersion is the full-node release this client speaks to. Patch
// level drift is tolerated by the prefix matching rule.
var expectedVersion = rpc.Version{
	Version:     "1.6",
	SpecName:    "data-avail",
	SpecVersion: 9,
}

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg := config.Default()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.SetDefault(log.New(level))
	lg := log.Default().Module("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := light.ModeFromAppID(cfg.AppID)
	lg.Info("starting light client",
		"mode", mode.String(),
		"confidence", cfg.Confidence,
		"nodes", len(cfg.FullNodeWS))

	verifier := proof.NewVerifier(proof.NewKZGBackend(), proof.VerifierConfig{})
	processor := light.NewProcessor(cfg.Confidence, verifier, telemetry.NewRecorder())

	if err := run(ctx, cfg, processor, lg); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("client stopped", "err", err)
		os.Exit(1)
	}
	lg.Info("shutting down")
}

// run polls the connected node for new blocks and scores each one.
// Connection-level failures trigger a reconnect to another candidate;
// running out of candidates is terminal.
func run(ctx context.Context, cfg config.Config, processor *light.Processor, lg *log.Logger) error {
	var (
		client        *rpc.Client
		lastUsed      string
		lastProcessed uint64
	)
	defer func() {
		if client != nil {
			client.Close()
		}
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if client == nil {
			c, used, err := rpc.Connect(ctx, cfg.FullNodeWS, lastUsed, expectedVersion)
			if err != nil {
				return err
			}
			client, lastUsed = c, used
		}

		header, err := client.LatestHeader(ctx)
		if err != nil {
			lg.Warn("latest header query failed, reconnecting", "err", err)
			client.Close()
			client = nil
			continue
		}

		if number := uint64(header.Number); number > lastProcessed {
			hash, err := client.BlockHash(ctx, number)
			if err != nil {
				lg.Warn("block hash query failed, reconnecting", "block", number, "err", err)
				client.Close()
				client = nil
				continue
			}

			outcome, err := processor.ProcessBlock(ctx, client, header, hash)
			if err != nil {
				// The block stays unscored; a fresh candidate may serve it
				// on the next round.
				lg.Error("block processing failed", "block", number, "err", err)
				client.Close()
				client = nil
				continue
			}
			lastProcessed = number
			lg.Info("block availability",
				"block", outcome.Block,
				"confidence", outcome.Confidence,
				"available", outcome.Available(cfg.Confidence))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
