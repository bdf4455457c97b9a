// internal/deck/shuffle.go
package deck

import (
	"math/rand"
	"time"
)

// DefaultTierSize is the width of a score band shuffled as one unit.
const DefaultTierSize = 5

// ShuffleTiers partitions the score-sorted sequence into contiguous chunks
// of tierSize and applies an unbiased Fisher-Yates permutation inside each
// chunk. Coarse score ordering is preserved: no item crosses a tier
// boundary. A sequence of at most tierSize items is one tier.
func ShuffleTiers(items []ScoredPet, tierSize int, rng *rand.Rand) []ScoredPet {
	if tierSize <= 0 {
		tierSize = DefaultTierSize
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	out := make([]ScoredPet, len(items))
	copy(out, items)

	for start := 0; start < len(out); start += tierSize {
		end := start + tierSize
		if end > len(out) {
			end = len(out)
		}
		tier := out[start:end]
		rng.Shuffle(len(tier), func(i, j int) {
			tier[i], tier[j] = tier[j], tier[i]
		})
	}
	return out
}
