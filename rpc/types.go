package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/dalight/dalight/matrix"
)

// Header is the substrate block header consumed by the light client. Only
// the number and the extrinsics root (matrix dimensions plus the per-row
// KZG commitments) drive verification; the app-data lookup is carried
// through opaquely for the application client.
type Header struct {
	Number         hexutil.Uint64  `json:"number"`
	ParentHash     string          `json:"parentHash"`
	StateRoot      string          `json:"stateRoot"`
	ExtrinsicsRoot ExtrinsicsRoot  `json:"extrinsicsRoot"`
	Digest         json.RawMessage `json:"digest"`
	AppDataLookup  json.RawMessage `json:"appDataLookup"`
}

// Dimensions returns the original matrix dimensions published in the header.
func (h *Header) Dimensions() matrix.Dimensions {
	return matrix.Dimensions{
		Rows: h.ExtrinsicsRoot.Rows,
		Cols: h.ExtrinsicsRoot.Cols,
	}
}

// ExtrinsicsRoot carries the data matrix dimensions and the concatenated
// 48-byte KZG commitments, one per original matrix row.
type ExtrinsicsRoot struct {
	Rows       uint16 `json:"rows"`
	Cols       uint16 `json:"cols"`
	Hash       string `json:"hash"`
	Commitment Bytes  `json:"commitment"`
}

// RuntimeVersion is the subset of state_getRuntimeVersion needed for
// endpoint compatibility checks.
type RuntimeVersion struct {
	SpecName    string `json:"specName"`
	SpecVersion uint32 `json:"specVersion"`
}

// Bytes is a byte buffer that decodes the two encodings substrate nodes
// emit: a JSON array of numbers (serde Vec<u8>) or a 0x-prefixed hex
// string. It marshals back to the array form.
type Bytes []byte

func (b *Bytes) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		decoded, err := hexutil.Decode(s)
		if err != nil {
			return fmt.Errorf("rpc: bad hex byte buffer: %w", err)
		}
		*b = decoded
		return nil
	}
	var nums []uint16
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		if n > 0xff {
			return fmt.Errorf("rpc: byte buffer element %d out of range", n)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}

func (b Bytes) MarshalJSON() ([]byte, error) {
	nums := make([]uint16, len(b))
	for i, v := range b {
		nums[i] = uint16(v)
	}
	return json.Marshal(nums)
}
