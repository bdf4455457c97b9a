// internal/workers/deck/get-ranking-config/models.go
package getrankingconfig

import "petswipe-workers/internal/deck"

type Input struct{}

type Output struct {
	Weights   deck.Weights `json:"weights"`
	Caps      deck.Caps    `json:"caps"`
	Version   int          `json:"version"`
	UpdatedBy string       `json:"updatedBy,omitempty"`
}
