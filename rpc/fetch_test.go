package rpc

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dalight/dalight/matrix"
)

// numberArray renders bytes as the JSON number array a substrate node emits.
func numberArray(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.Itoa(int(v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestQueryProof(t *testing.T) {
	positions := []matrix.Position{{Row: 0, Col: 1}, {Row: 3, Col: 2}}
	response := make([]byte, matrix.CellWithProofSize*len(positions))
	for i := range response {
		response[i] = byte(i)
	}
	conn := &fakeConn{responses: map[string]string{"kate_queryProof": numberArray(response)}}
	client := NewClient(conn, "ws://node")

	cells, err := client.QueryProof(context.Background(), common.Hash{0x01}, positions)
	if err != nil {
		t.Fatalf("QueryProof: %v", err)
	}
	if len(cells) != len(positions) {
		t.Fatalf("got %d cells, want %d", len(cells), len(positions))
	}
	for i, cell := range cells {
		if cell.Position != positions[i] {
			t.Errorf("cell %d position = %v, want %v", i, cell.Position, positions[i])
		}
		if cell.Content[0] != byte(i*matrix.CellWithProofSize) {
			t.Errorf("cell %d content starts with %d, want %d",
				i, cell.Content[0], i*matrix.CellWithProofSize)
		}
	}
	// Data/proof split of the second cell.
	if len(cells[1].Data()) != matrix.ChunkSize || len(cells[1].Proof()) != matrix.ProofSize {
		t.Error("cell content split does not match 32+48 layout")
	}
}

func TestQueryProofSizeMismatch(t *testing.T) {
	positions := []matrix.Position{{Row: 0, Col: 0}}
	conn := &fakeConn{responses: map[string]string{
		"kate_queryProof": numberArray(make([]byte, 79)),
	}}
	client := NewClient(conn, "ws://node")

	_, err := client.QueryProof(context.Background(), common.Hash{}, positions)
	if !errors.Is(err, ErrProofDecode) {
		t.Fatalf("err = %v, want ErrProofDecode", err)
	}
}

func TestQueryProofEmpty(t *testing.T) {
	conn := &fakeConn{responses: map[string]string{"kate_queryProof": "[]"}}
	client := NewClient(conn, "ws://node")

	cells, err := client.QueryProof(context.Background(), common.Hash{}, nil)
	if err != nil {
		t.Fatalf("QueryProof: %v", err)
	}
	if len(cells) != 0 {
		t.Fatalf("got %d cells for empty request", len(cells))
	}
}

func TestQueryRows(t *testing.T) {
	conn := &fakeConn{responses: map[string]string{
		"kate_queryRows": `[[1,2,3], null, [4]]`,
	}}
	client := NewClient(conn, "ws://node")

	rows, err := client.QueryRows(context.Background(), []uint32{0, 1, 2}, common.Hash{})
	if err != nil {
		t.Fatalf("QueryRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if len(rows[0]) != 3 || rows[0][2] != 3 {
		t.Errorf("row 0 = %v, want [1 2 3]", rows[0])
	}
	if rows[1] != nil {
		t.Errorf("row 1 = %v, want nil for unavailable row", rows[1])
	}
	if len(rows[2]) != 1 || rows[2][0] != 4 {
		t.Errorf("row 2 = %v, want [4]", rows[2])
	}
}
