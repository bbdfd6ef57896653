package light

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/fft"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/kzg"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/blake2b"

	"github.com/dalight/dalight/matrix"
	"github.com/dalight/dalight/proof"
	"github.com/dalight/dalight/rpc"
	"github.com/dalight/dalight/telemetry"
)

// fakeConn serves canned JSON results per method.
type fakeConn struct {
	responses map[string]string
}

func (f *fakeConn) CallContext(_ context.Context, result any, method string, _ ...any) error {
	raw, ok := f.responses[method]
	if !ok {
		return fmt.Errorf("fakeConn: no response for %s", method)
	}
	return json.Unmarshal([]byte(raw), result)
}

func (f *fakeConn) Close() {}

// markerBackend accepts every cell except those whose chunk starts with the
// reject marker.
type markerBackend struct{}

const rejectMarker = 0xba

func (markerBackend) VerifyCell(_ uint16, content []byte, _ []byte, _ uint32, _ uint16) error {
	if content[0] == rejectMarker {
		return errors.New("marked invalid")
	}
	return nil
}

func numberArray(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.Itoa(int(v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// testHeader returns a 4x4 header (extended 8x4) with a zeroed commitment
// buffer covering all extended rows, for tests using the marker backend.
func testHeader(t *testing.T) *rpc.Header {
	t.Helper()
	return headerFor(t, make([]byte, 8*matrix.CommitmentSize))
}

// headerFor returns a 4x4 header (extended 8x4) carrying the given
// commitment buffer.
func headerFor(t *testing.T, commitment []byte) *rpc.Header {
	t.Helper()
	raw := fmt.Sprintf(`{
		"number": "0x64",
		"parentHash": "0x",
		"stateRoot": "0x",
		"extrinsicsRoot": {"rows": 4, "cols": 4, "hash": "0x", "commitment": %s},
		"digest": {"logs": []},
		"appDataLookup": {"size": 0, "index": []}
	}`, numberArray(commitment))

	var header rpc.Header
	if err := json.Unmarshal([]byte(raw), &header); err != nil {
		t.Fatalf("building test header: %v", err)
	}
	return &header
}

// proofResponse builds a kate_queryProof response of count cells, marking
// the first rejected of them invalid for the marker backend.
func proofResponse(count, rejected int) string {
	response := make([]byte, count*matrix.CellWithProofSize)
	for i := 0; i < rejected; i++ {
		response[i*matrix.CellWithProofSize] = rejectMarker
	}
	return numberArray(response)
}

func newTestProcessor(metrics telemetry.Metrics) *Processor {
	verifier := proof.NewVerifier(markerBackend{},
		proof.VerifierConfig{Workers: 2, BatchTimeout: 5 * time.Second})
	return NewProcessor(92.0, verifier, metrics)
}

// kzgConn plays a full node holding a genuinely committed matrix: it answers
// kate_queryProof by opening the row polynomial of each requested position at
// that position's column point. Its parameters follow the development scheme,
// so the openings verify against the production backend.
type kzgConn struct {
	t          *testing.T
	dims       matrix.Dimensions
	srs        *kzg.SRS
	domain     *fft.Domain
	commitment []byte
	corrupt    bool // flip a chunk byte of the first served cell
}

func newKZGConn(t *testing.T, dims matrix.Dimensions) *kzgConn {
	t.Helper()
	digest := blake2b.Sum256([]byte("dalight development srs"))
	tau := new(big.Int).SetBytes(digest[:])
	tau.Mod(tau, fr.Modulus())
	srs, err := kzg.NewSRS(uint64(dims.Cols), tau)
	if err != nil {
		t.Fatalf("kzg.NewSRS: %v", err)
	}

	c := &kzgConn{t: t, dims: dims, srs: srs, domain: fft.NewDomain(uint64(dims.Cols))}
	for row := uint32(0); row < dims.ExtendedRows(); row++ {
		commit, err := kzg.Commit(c.rowPolynomial(uint16(row)), srs.Pk)
		if err != nil {
			t.Fatalf("kzg.Commit row %d: %v", row, err)
		}
		buf := commit.Bytes()
		c.commitment = append(c.commitment, buf[:]...)
	}
	return c
}

func (c *kzgConn) rowPolynomial(row uint16) []fr.Element {
	poly := make([]fr.Element, c.dims.Cols)
	for i := range poly {
		poly[i].SetUint64(uint64(row)*31 + uint64(i) + 1)
	}
	return poly
}

func (c *kzgConn) CallContext(_ context.Context, result any, method string, args ...any) error {
	if method != "kate_queryProof" {
		return fmt.Errorf("kzgConn: unexpected method %s", method)
	}
	positions, ok := args[0].([]matrix.Position)
	if !ok {
		return fmt.Errorf("kzgConn: unexpected positions argument %T", args[0])
	}

	var response []byte
	for _, pos := range positions {
		var point fr.Element
		point.Exp(c.domain.Generator, big.NewInt(int64(pos.Col)))
		opening, err := kzg.Open(c.rowPolynomial(pos.Row), point, c.srs.Pk)
		if err != nil {
			return fmt.Errorf("kzgConn: kzg.Open (%d, %d): %w", pos.Row, pos.Col, err)
		}
		chunk := opening.ClaimedValue.Bytes()
		witness := opening.H.Bytes()
		response = append(response, chunk[:]...)
		response = append(response, witness[:]...)
	}
	if c.corrupt && len(response) > 0 {
		response[matrix.ChunkSize-1] ^= 0xff
	}
	return json.Unmarshal([]byte(numberArray(response)), result)
}

func (c *kzgConn) Close() {}

func TestProcessBlockAllValid(t *testing.T) {
	// 92% confidence needs ceil(-log2(0.08)) = 4 cells; all verify, so the
	// scored confidence is 100*(1-0.5^4) = 93.75.
	conn := &fakeConn{responses: map[string]string{
		"kate_queryProof": proofResponse(4, 0),
	}}
	metrics := telemetry.NewRecorder()

	outcome, err := newTestProcessor(metrics).ProcessBlock(
		context.Background(), rpc.NewClient(conn, "ws://node"), testHeader(t), common.Hash{0x01})
	if err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
	if outcome.Block != 100 {
		t.Errorf("block = %d, want 100", outcome.Block)
	}
	if outcome.Required != 4 || outcome.Fetched != 4 || outcome.Verified != 4 {
		t.Errorf("counts = %d/%d/%d, want 4/4/4",
			outcome.Required, outcome.Fetched, outcome.Verified)
	}
	if math.Abs(outcome.Confidence-93.75) > 1e-9 {
		t.Errorf("confidence = %v, want 93.75", outcome.Confidence)
	}
	if !outcome.Complete {
		t.Error("outcome not complete despite full verification")
	}
	if !outcome.Available(92.0) {
		t.Error("block not available despite meeting the target")
	}
	if v, ok := metrics.Value(telemetry.BlockConfidence); !ok || math.Abs(v-93.75) > 1e-9 {
		t.Errorf("recorded confidence = %v, want 93.75", v)
	}
	if v, _ := metrics.Value(telemetry.VerifiedCellCount); v != 4 {
		t.Errorf("recorded verified cells = %v, want 4", v)
	}
}

func TestProcessBlockShortfall(t *testing.T) {
	// One of four cells fails verification: the block is still scored, but
	// with the materially lower confidence of three cells and Complete
	// false.
	conn := &fakeConn{responses: map[string]string{
		"kate_queryProof": proofResponse(4, 1),
	}}

	outcome, err := newTestProcessor(nil).ProcessBlock(
		context.Background(), rpc.NewClient(conn, "ws://node"), testHeader(t), common.Hash{0x01})
	if err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
	if outcome.Verified != 3 {
		t.Fatalf("verified = %d, want 3", outcome.Verified)
	}
	if math.Abs(outcome.Confidence-87.5) > 1e-9 {
		t.Errorf("confidence = %v, want 87.5", outcome.Confidence)
	}
	if outcome.Complete {
		t.Error("outcome complete despite failed cell")
	}
	if outcome.Available(92.0) {
		t.Error("block available despite shortfall")
	}
}

func TestProcessBlockDecodeError(t *testing.T) {
	// A truncated response is a protocol mismatch: the block must not be
	// scored.
	conn := &fakeConn{responses: map[string]string{
		"kate_queryProof": proofResponse(3, 0),
	}}

	_, err := newTestProcessor(nil).ProcessBlock(
		context.Background(), rpc.NewClient(conn, "ws://node"), testHeader(t), common.Hash{0x01})
	if !errors.Is(err, rpc.ErrProofDecode) {
		t.Fatalf("err = %v, want ErrProofDecode", err)
	}
}

func TestProcessBlockFetchError(t *testing.T) {
	conn := &fakeConn{responses: map[string]string{}} // every call fails
	_, err := newTestProcessor(nil).ProcessBlock(
		context.Background(), rpc.NewClient(conn, "ws://node"), testHeader(t), common.Hash{0x01})
	if err == nil {
		t.Fatal("expected error when the fetch fails")
	}
}

func newKZGProcessor() *Processor {
	verifier := proof.NewVerifier(proof.NewKZGBackend(),
		proof.VerifierConfig{Workers: 2, BatchTimeout: 30 * time.Second})
	return NewProcessor(92.0, verifier, nil)
}

func TestProcessBlockGenuineProofs(t *testing.T) {
	// Full pipeline against real BLS12-381 commitments: the 92% target
	// samples 4 of the extended 8x4 matrix's cells, the node opens each row
	// polynomial at the sampled columns, and every opening verifies, scoring
	// 100*(1-0.5^4) = 93.75.
	dims := matrix.Dimensions{Rows: 4, Cols: 4}
	conn := newKZGConn(t, dims)

	outcome, err := newKZGProcessor().ProcessBlock(
		context.Background(), rpc.NewClient(conn, "ws://node"), headerFor(t, conn.commitment), common.Hash{0x01})
	if err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
	if outcome.Required != 4 || outcome.Fetched != 4 || outcome.Verified != 4 {
		t.Errorf("counts = %d/%d/%d, want 4/4/4",
			outcome.Required, outcome.Fetched, outcome.Verified)
	}
	if math.Abs(outcome.Confidence-93.75) > 1e-9 {
		t.Errorf("confidence = %v, want 93.75", outcome.Confidence)
	}
	if !outcome.Available(92.0) {
		t.Error("block not available despite all proofs verifying")
	}
}

func TestProcessBlockGenuineProofTampered(t *testing.T) {
	// One corrupted chunk fails real verification: three of four cells
	// verify, the confidence drops to 87.5, and the block misses the target.
	dims := matrix.Dimensions{Rows: 4, Cols: 4}
	conn := newKZGConn(t, dims)
	conn.corrupt = true

	outcome, err := newKZGProcessor().ProcessBlock(
		context.Background(), rpc.NewClient(conn, "ws://node"), headerFor(t, conn.commitment), common.Hash{0x01})
	if err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
	if outcome.Verified != 3 {
		t.Fatalf("verified = %d, want 3", outcome.Verified)
	}
	if math.Abs(outcome.Confidence-87.5) > 1e-9 {
		t.Errorf("confidence = %v, want 87.5", outcome.Confidence)
	}
	if outcome.Complete || outcome.Available(92.0) {
		t.Error("block scored as complete despite the corrupted cell")
	}
}

// slowBackend keeps every verification busy long enough for a cancellation
// to land first.
type slowBackend struct{ delay time.Duration }

func (b slowBackend) VerifyCell(uint16, []byte, []byte, uint32, uint16) error {
	time.Sleep(b.delay)
	return nil
}

func TestProcessBlockCancelled(t *testing.T) {
	// Cancellation mid-batch fails the block rather than scoring the
	// undercount as a shortfall.
	conn := &fakeConn{responses: map[string]string{
		"kate_queryProof": proofResponse(4, 0),
	}}
	verifier := proof.NewVerifier(slowBackend{delay: 200 * time.Millisecond},
		proof.VerifierConfig{Workers: 1, BatchTimeout: 10 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := NewProcessor(92.0, verifier, nil).ProcessBlock(
		ctx, rpc.NewClient(conn, "ws://node"), testHeader(t), common.Hash{0x01})
	if outcome != nil {
		t.Fatalf("outcome = %+v, want nil", outcome)
	}
	if !errors.Is(err, proof.ErrIncompleteBatch) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want ErrIncompleteBatch from cancellation", err)
	}
}
