// Package matrix defines the erasure-coded data matrix primitives shared by
// the sampling, fetching, and verification pipeline: matrix dimensions,
// cell positions, and cells carrying their KZG proofs.
package matrix

// Cell layout constants. A cell travels over RPC as a 32-byte data chunk
// immediately followed by its 48-byte KZG proof.
const (
	// ChunkSize is the byte size of one data chunk of a cell.
	ChunkSize = 32

	// ProofSize is the byte size of a single KZG proof.
	ProofSize = 48

	// CellWithProofSize is the wire size of one cell: chunk plus proof.
	CellWithProofSize = ChunkSize + ProofSize // 80

	// CommitmentSize is the byte size of one per-row KZG commitment.
	CommitmentSize = 48
)

// Dimensions holds the dimensions of a block's original data matrix, as
// published in the header. The erasure-coded extension doubles the row
// count; columns are unchanged.
type Dimensions struct {
	Rows uint16
	Cols uint16
}

// ExtendedRows returns the row count of the extended matrix.
func (d Dimensions) ExtendedRows() uint32 {
	return 2 * uint32(d.Rows)
}

// ExtendedSize returns the total number of cells in the extended matrix.
func (d Dimensions) ExtendedSize() uint32 {
	return d.ExtendedRows() * uint32(d.Cols)
}

// Contains reports whether the position falls inside the extended matrix.
func (d Dimensions) Contains(p Position) bool {
	return uint32(p.Row) < d.ExtendedRows() && p.Col < d.Cols
}

// Position identifies a single cell of the extended matrix.
type Position struct {
	Row uint16 `json:"row"`
	Col uint16 `json:"col"`
}

// Cell is one sampled unit of the extended matrix: a position together with
// its data chunk and proof as returned by the full node. Content is
// immutable once decoded from the RPC response.
type Cell struct {
	Position Position
	Content  [CellWithProofSize]byte
}

// Data returns the 32-byte data chunk of the cell.
func (c *Cell) Data() []byte {
	return c.Content[:ChunkSize]
}

// Proof returns the 48-byte KZG proof of the cell.
func (c *Cell) Proof() []byte {
	return c.Content[ChunkSize:]
}
