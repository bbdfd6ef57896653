package das

import (
	"math/rand/v2"

	"github.com/dalight/dalight/log"
	"github.com/dalight/dalight/matrix"
)

// SamplePositions draws count unique positions uniformly at random from the
// block's extended matrix. If the matrix holds fewer cells than requested,
// every distinct position is returned exactly once and the shrink is logged
// at debug level. The order of the returned positions is unspecified.
func SamplePositions(dims matrix.Dimensions, count uint32) []matrix.Position {
	total := dims.ExtendedSize()
	if total < count {
		log.Debug("matrix smaller than requested sample, sampling exhaustively",
			"total_cells", total, "requested", count)
		count = total
	}
	if count == 0 {
		return nil
	}

	seen := make(map[matrix.Position]struct{}, count)
	positions := make([]matrix.Position, 0, count)
	for uint32(len(positions)) < count {
		p := matrix.Position{
			Row: uint16(rand.IntN(int(dims.ExtendedRows()))),
			Col: uint16(rand.IntN(int(dims.Cols))),
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		positions = append(positions, p)
	}
	return positions
}
