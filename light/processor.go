// Package light orchestrates the per-block sampling pipeline: deriving the
// sample size from the configured confidence, drawing random positions,
// fetching cells with proofs from a full node, verifying them, and scoring
// the block's availability.
package light

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dalight/dalight/das"
	"github.com/dalight/dalight/log"
	"github.com/dalight/dalight/proof"
	"github.com/dalight/dalight/rpc"
	"github.com/dalight/dalight/telemetry"
)

// State tracks a block's progress through the pipeline.
type State int

// Pipeline states, in order. Terminal states are not retried here; the
// caller decides whether to re-run a failed block from another node.
const (
	StateSampling State = iota
	StateFetching
	StateVerifying
	StateScored
)

func (s State) String() string {
	switch s {
	case StateSampling:
		return "sampling"
	case StateFetching:
		return "fetching"
	case StateVerifying:
		return "verifying"
	case StateScored:
		return "scored"
	}
	return "unknown"
}

// Outcome is the result of one block's verification. It is created fresh
// per block and never merged across blocks.
type Outcome struct {
	// Block is the block number.
	Block uint64

	// Required is the number of cells the sampler requested.
	Required uint32

	// Fetched is the number of cells obtained from the node.
	Fetched int

	// Verified is the number of cells whose proofs verified.
	Verified int

	// Confidence is 100 * (1 - 0.5^Verified).
	Confidence float64

	// Complete is true only when every requested cell was fetched and
	// verified. A shortfall leaves Complete false and Confidence
	// materially lower than the target.
	Complete bool
}

// Available reports whether the block meets the target confidence by this
// client's standard: a complete batch at or above the target percentage.
func (o *Outcome) Available(target float64) bool {
	return o.Complete && o.Confidence >= target
}

// Processor runs the sampling pipeline for consecutive blocks.
type Processor struct {
	confidence float64
	verifier   *proof.Verifier
	metrics    telemetry.Metrics
}

// NewProcessor creates a Processor targeting the given confidence
// percentage. A nil metrics sink is replaced with a no-op one.
func NewProcessor(confidence float64, verifier *proof.Verifier, metrics telemetry.Metrics) *Processor {
	if metrics == nil {
		metrics = telemetry.Noop{}
	}
	return &Processor{confidence: confidence, verifier: verifier, metrics: metrics}
}

// ProcessBlock runs one block through Sampling, Fetching, Verifying, and
// Scored. Connection and decode failures return an error and leave the
// block unscored; verification shortfalls are scored with the lower
// confidence they imply and flagged through Outcome.Complete.
func (p *Processor) ProcessBlock(ctx context.Context, client *rpc.Client, header *rpc.Header, hash common.Hash) (*Outcome, error) {
	block := BlockFromHeader(header)
	lg := log.Default().Module("light").With("block", block.Number)

	lg.Debug("pipeline state", "state", StateSampling.String())
	count := das.CellCountForConfidence(p.confidence)
	positions := das.SamplePositions(block.Dimensions, count)
	required := uint32(len(positions))

	lg.Debug("pipeline state", "state", StateFetching.String(), "cells", required)
	cells, err := client.QueryProof(ctx, hash, positions)
	if err != nil {
		return nil, fmt.Errorf("light: fetching cells for block %d: %w", block.Number, err)
	}

	lg.Debug("pipeline state", "state", StateVerifying.String())
	verified, err := p.verifier.Verify(ctx, block.Number, block.Dimensions, block.Commitment, cells)
	if err != nil {
		if !errors.Is(err, proof.ErrIncompleteBatch) {
			return nil, fmt.Errorf("light: verifying block %d: %w", block.Number, err)
		}
		if ctx.Err() != nil {
			// Cancelled mid-batch: the low count reflects the shutdown,
			// not the node, so the block stays unscored.
			return nil, fmt.Errorf("light: verifying block %d: %w", block.Number, err)
		}
		lg.Warn("verification batch incomplete", "err", err)
	}

	outcome := &Outcome{
		Block:      block.Number,
		Required:   required,
		Fetched:    len(cells),
		Verified:   verified,
		Confidence: das.ConfidenceForCount(uint32(verified)),
		Complete:   err == nil && verified == int(required),
	}

	p.metrics.Record(telemetry.TotalCellCount, float64(outcome.Required))
	p.metrics.Record(telemetry.VerifiedCellCount, float64(outcome.Verified))
	p.metrics.Record(telemetry.BlockConfidence, outcome.Confidence)

	lg.Info("pipeline state", "state", StateScored.String(),
		"confidence", outcome.Confidence,
		"verified", outcome.Verified,
		"required", outcome.Required,
		"complete", outcome.Complete)
	return outcome, nil
}
