// Package das implements the data-availability sampling core of the light
// client: deriving the number of cells to sample from a target confidence
// and drawing unique random positions from a block's extended matrix.
package das

import (
	"math"

	"github.com/dalight/dalight/log"
)

// DefaultConfidence is substituted when the configured confidence is out of
// range or would produce a degenerate sample size.
const DefaultConfidence = 99.0

// maxCellCount bounds the sample size; larger counts indicate a degenerate
// confidence input and trigger the default substitution.
const maxCellCount = 10

// CellCountForConfidence returns the number of independently sampled cells
// required to reach the given confidence percentage.
//
// Each sampled cell that verifies halves the probability that data is being
// withheld, so count = ceil(-log2(1 - confidence/100)). Inputs outside
// [50, 100), or inputs yielding a count of 0 or more than 10 cells, are
// clamped to DefaultConfidence. The clamp is a deliberate safety default,
// not a failure, and is logged at debug level only.
func CellCountForConfidence(confidence float64) uint32 {
	count := rawCellCount(confidence)
	if confidence < 50.0 || confidence >= 100.0 || count == 0 || count > maxCellCount {
		log.Debug("invalid confidence, falling back to default",
			"confidence", confidence, "default", DefaultConfidence)
		return rawCellCount(DefaultConfidence)
	}
	return count
}

func rawCellCount(confidence float64) uint32 {
	c := math.Ceil(-math.Log2(1.0 - confidence/100.0))
	if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return uint32(c)
}

// ConfidenceForCount returns the confidence percentage achieved by
// verifiedCount successfully verified cells: 100 * (1 - 0.5^n).
func ConfidenceForCount(verifiedCount uint32) float64 {
	return 100.0 * (1.0 - math.Pow(0.5, float64(verifiedCount)))
}
