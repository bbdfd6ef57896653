// Package maintenance runs the periodic housekeeping that follows each
// verified block: shrinking the Kademlia routing map and reporting DHT
// health metrics. The P2P layer itself is an external collaborator reached
// only through the P2P interface.
package maintenance

import (
	"context"
	"fmt"

	"github.com/multiformats/go-multiaddr"

	"github.com/dalight/dalight/log"
	"github.com/dalight/dalight/telemetry"
)

// P2P is the surface of the DHT client consumed by maintenance.
type P2P interface {
	// ShrinkKademliaMap compacts the Kademlia routing map.
	ShrinkKademliaMap(ctx context.Context) error

	// CountDHTEntries returns the current routing table size.
	CountDHTEntries(ctx context.Context) (int, error)

	// Multiaddress returns the node's current listen address.
	Multiaddress(ctx context.Context) (multiaddr.Multiaddr, error)
}

// ProcessBlock performs one round of housekeeping after a verified block.
func ProcessBlock(ctx context.Context, blockNumber uint32, p2p P2P, metrics telemetry.Metrics) error {
	lg := log.Default().Module("maintenance")

	if err := p2p.ShrinkKademliaMap(ctx); err != nil {
		return fmt.Errorf("maintenance: kademlia map shrink: %w", err)
	}

	if addr, err := p2p.Multiaddress(ctx); err == nil {
		lg.Debug("current multiaddress", "addr", addr.String())
	}

	peers, err := p2p.CountDHTEntries(ctx)
	if err != nil {
		return fmt.Errorf("maintenance: counting DHT entries: %w", err)
	}
	metrics.Record(telemetry.KadRoutingPeerNum, float64(peers))
	metrics.Record(telemetry.HealthCheck, 1)

	lg.Debug("maintenance completed", "block", blockNumber, "peers", peers)
	return nil
}

// Run consumes verified block numbers and performs housekeeping for each.
// It returns when the channel closes, the context is cancelled, or a
// housekeeping round fails; the caller decides whether a failure shuts the
// client down.
func Run(ctx context.Context, p2p P2P, metrics telemetry.Metrics, blocks <-chan uint32) error {
	log.Default().Module("maintenance").Info("starting maintenance")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case block, ok := <-blocks:
			if !ok {
				return nil
			}
			if err := ProcessBlock(ctx, block, p2p, metrics); err != nil {
				return err
			}
		}
	}
}
