package proof

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/dalight/dalight/log"
	"github.com/dalight/dalight/matrix"
)

// ErrIncompleteBatch is returned together with the partial count when not
// every cell's result arrived before the collection barrier expired. The
// caller must treat the block as incompletely verified rather than silently
// scoring the undercount.
var ErrIncompleteBatch = errors.New("proof: verification batch incomplete")

// DefaultBatchTimeout bounds the wait for a full batch of results.
const DefaultBatchTimeout = 30 * time.Second

// VerifierConfig configures the proof verifier.
type VerifierConfig struct {
	// Workers is the worker pool size. Zero means one worker per available
	// processing unit.
	Workers int

	// BatchTimeout bounds the fan-in barrier. Zero means DefaultBatchTimeout.
	BatchTimeout time.Duration
}

// Verifier checks batches of sampled cells against a block's commitment.
type Verifier struct {
	backend Backend
	workers int
	timeout time.Duration
}

// NewVerifier creates a Verifier over the given backend.
func NewVerifier(backend Backend, cfg VerifierConfig) *Verifier {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	timeout := cfg.BatchTimeout
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}
	return &Verifier{backend: backend, workers: workers, timeout: timeout}
}

// Verify checks every cell's proof against the 48-byte commitment slice of
// its row and returns how many verified. Cells are processed concurrently
// by a pool bounded to the configured worker count; the call blocks until
// exactly len(cells) results arrive, the batch timeout expires, or the
// context is cancelled. Individual verification failures are logged and
// counted as invalid, never escalated: one bad cell cannot poison the
// batch. The commitment buffer is only read, so workers share it without
// locking.
func (v *Verifier) Verify(ctx context.Context, blockNumber uint64, dims matrix.Dimensions, commitment []byte, cells []matrix.Cell) (int, error) {
	if len(cells) == 0 {
		return 0, nil
	}

	// Buffered to the batch size so a worker's send can never fail or
	// block, even after the collector has given up.
	results := make(chan bool, len(cells))

	pool := workerpool.New(v.workers)
	for i := range cells {
		cell := cells[i]
		pool.Submit(func() {
			results <- v.verifyCell(blockNumber, dims, commitment, &cell)
		})
	}

	timer := time.NewTimer(v.timeout)
	defer timer.Stop()

	verified, received := 0, 0
	for received < len(cells) {
		select {
		case ok := <-results:
			received++
			if ok {
				verified++
			}
		case <-timer.C:
			go pool.Stop()
			return verified, fmt.Errorf("%w: %d of %d results within %s",
				ErrIncompleteBatch, received, len(cells), v.timeout)
		case <-ctx.Done():
			go pool.Stop()
			return verified, fmt.Errorf("%w: %w", ErrIncompleteBatch, ctx.Err())
		}
	}
	pool.StopWait()
	return verified, nil
}

func (v *Verifier) verifyCell(blockNumber uint64, dims matrix.Dimensions, commitment []byte, cell *matrix.Cell) bool {
	lg := log.Default().Module("proof").With(
		"block", blockNumber, "row", cell.Position.Row, "col", cell.Position.Col)

	start := int(cell.Position.Row) * matrix.CommitmentSize
	end := start + matrix.CommitmentSize
	if end > len(commitment) {
		lg.Error("no commitment for cell row", "commitment_bytes", len(commitment))
		return false
	}

	err := v.backend.VerifyCell(cell.Position.Col, cell.Content[:], commitment[start:end],
		dims.ExtendedRows(), dims.Cols)
	if err != nil {
		lg.Error("cell verification failed", "err", err)
		return false
	}
	lg.Trace("verified cell")
	return true
}
