// internal/workers/deck/update-ranking-config/models.go
package updaterankingconfig

import "petswipe-workers/internal/deck"

type Input struct {
	Weights   deck.Weights `json:"weights"`
	Caps      deck.Caps    `json:"caps"`
	UpdatedBy string       `json:"updatedBy,omitempty"`
}

type Output struct {
	Weights deck.Weights `json:"weights"`
	Caps    deck.Caps    `json:"caps"`
	Version int          `json:"version"`
}
