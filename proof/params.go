package proof

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/fft"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/kzg"
	"golang.org/x/crypto/blake2b"
)

// PublicParams holds the KZG public parameters for one matrix width: the
// structured reference string sized to the column count and the evaluation
// domain whose generator yields the per-column opening points.
type PublicParams struct {
	cols   uint16
	srs    *kzg.SRS
	domain *fft.Domain
}

var (
	paramsMu    sync.Mutex
	paramsCache = map[uint16]*PublicParams{}
)

// publicParams returns the (cached) public parameters for the given column
// count. Parameters are derived deterministically from a fixed secret, the
// same scheme the development network uses; a production deployment swaps
// in ceremony output here.
func publicParams(cols uint16) (*PublicParams, error) {
	if cols == 0 {
		return nil, fmt.Errorf("proof: zero column count")
	}
	paramsMu.Lock()
	defer paramsMu.Unlock()
	if pp, ok := paramsCache[cols]; ok {
		return pp, nil
	}

	size := uint64(cols)
	if size < 2 {
		size = 2
	}
	srs, err := kzg.NewSRS(size, developmentTau())
	if err != nil {
		return nil, fmt.Errorf("proof: building SRS for %d columns: %w", cols, err)
	}
	pp := &PublicParams{
		cols:   cols,
		srs:    srs,
		domain: fft.NewDomain(uint64(cols)),
	}
	paramsCache[cols] = pp
	return pp, nil
}

// developmentTau derives the fixed SRS secret for development parameters.
func developmentTau() *big.Int {
	digest := blake2b.Sum256([]byte("dalight development srs"))
	tau := new(big.Int).SetBytes(digest[:])
	tau.Mod(tau, fr.Modulus())
	return tau
}

// evaluationPoint returns the opening point for a column: the domain
// generator raised to the column index.
func (pp *PublicParams) evaluationPoint(col uint16) fr.Element {
	var point fr.Element
	point.Exp(pp.domain.Generator, big.NewInt(int64(col)))
	return point
}

// digest returns a short blake2b fingerprint of the verifying key, logged
// at trace level so operators can confirm which parameters are in use.
func (pp *PublicParams) digest() string {
	h, err := blake2b.New(16, nil)
	if err != nil {
		return ""
	}
	g1 := pp.srs.Vk.G1.Bytes()
	h.Write(g1[:])
	for i := range pp.srs.Vk.G2 {
		g2 := pp.srs.Vk.G2[i].Bytes()
		h.Write(g2[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
