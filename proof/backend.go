// Package proof verifies sampled cells against a block's per-row KZG
// commitments using a bounded worker pool, and reports how many of them
// passed.
package proof

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/kzg"

	"github.com/dalight/dalight/log"
	"github.com/dalight/dalight/matrix"
)

// Backend errors.
var (
	ErrBadCellSize       = errors.New("proof: cell content is not 80 bytes")
	ErrBadCommitmentSize = errors.New("proof: commitment slice is not 48 bytes")
	ErrColumnOutOfRange  = errors.New("proof: column index outside matrix")
)

// Backend is the cryptographic verification primitive. content is the full
// 80-byte cell (32-byte chunk plus 48-byte proof), commitment the 48-byte
// commitment of the cell's row, rows and cols the extended matrix
// dimensions. A nil return means the proof is valid; any error means the
// cell does not verify.
type Backend interface {
	VerifyCell(col uint16, content []byte, commitment []byte, rows uint32, cols uint16) error
}

// KZGBackend verifies cells as BLS12-381 KZG single-point openings: the
// chunk is the claimed evaluation of the row polynomial at the column's
// domain point, and the proof is the opening witness.
type KZGBackend struct{}

// NewKZGBackend returns the production verification backend.
func NewKZGBackend() *KZGBackend {
	return &KZGBackend{}
}

// VerifyCell implements Backend.
func (b *KZGBackend) VerifyCell(col uint16, content []byte, commitment []byte, rows uint32, cols uint16) error {
	if len(content) != matrix.CellWithProofSize {
		return fmt.Errorf("%w: %d", ErrBadCellSize, len(content))
	}
	if len(commitment) != matrix.CommitmentSize {
		return fmt.Errorf("%w: %d", ErrBadCommitmentSize, len(commitment))
	}
	if col >= cols {
		return fmt.Errorf("%w: col %d of %d", ErrColumnOutOfRange, col, cols)
	}

	pp, err := publicParams(cols)
	if err != nil {
		return err
	}

	var digest kzg.Digest
	if _, err := digest.SetBytes(commitment); err != nil {
		return fmt.Errorf("proof: bad commitment point: %w", err)
	}

	var opening kzg.OpeningProof
	if _, err := opening.H.SetBytes(content[matrix.ChunkSize:]); err != nil {
		return fmt.Errorf("proof: bad proof point: %w", err)
	}
	if err := opening.ClaimedValue.SetBytesCanonical(content[:matrix.ChunkSize]); err != nil {
		return fmt.Errorf("proof: bad cell chunk scalar: %w", err)
	}

	if err := kzg.Verify(&digest, &opening, pp.evaluationPoint(col), pp.srs.Vk); err != nil {
		return fmt.Errorf("proof: kzg verification failed: %w", err)
	}
	log.Default().Module("proof").Trace("public params", "cols", cols, "digest", pp.digest())
	return nil
}
