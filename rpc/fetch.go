package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dalight/dalight/matrix"
)

// ErrProofDecode indicates a kate_queryProof response whose length is not
// exactly 80 bytes per requested position. This is a protocol mismatch
// between client and node, not a transient failure, so it is never retried
// at this layer.
var ErrProofDecode = errors.New("rpc: proof response size mismatch")

// QueryProof fetches the cells at the given positions of a block, together
// with their KZG proofs, in a single batched call. The node returns a flat
// byte stream of 80-byte cells in request order; each chunk is zipped with
// its originating position.
func (c *Client) QueryProof(ctx context.Context, blockHash common.Hash, positions []matrix.Position) ([]matrix.Cell, error) {
	var response Bytes
	if err := c.conn.CallContext(ctx, &response, "kate_queryProof", positions, blockHash); err != nil {
		return nil, fmt.Errorf("rpc: kate_queryProof: %w", err)
	}
	if len(response) != matrix.CellWithProofSize*len(positions) {
		return nil, fmt.Errorf("%w: %d bytes for %d positions",
			ErrProofDecode, len(response), len(positions))
	}

	cells := make([]matrix.Cell, len(positions))
	for i, position := range positions {
		cells[i].Position = position
		copy(cells[i].Content[:], response[i*matrix.CellWithProofSize:(i+1)*matrix.CellWithProofSize])
	}
	return cells, nil
}

// QueryRows fetches the raw bytes of the given extended matrix rows of a
// block. The result holds one buffer per requested row, nil where the node
// does not have the row. Row content is not verified here; it feeds the
// reconstruction path.
func (c *Client) QueryRows(ctx context.Context, rows []uint32, blockHash common.Hash) ([][]byte, error) {
	var response []*Bytes
	if err := c.conn.CallContext(ctx, &response, "kate_queryRows", rows, blockHash); err != nil {
		return nil, fmt.Errorf("rpc: kate_queryRows: %w", err)
	}
	out := make([][]byte, len(response))
	for i, row := range response {
		if row != nil {
			out[i] = *row
		}
	}
	return out, nil
}
