// internal/workers/deck/generate-deck/models.go
package generatedeck

import "petswipe-workers/internal/deck"

type Input struct {
	UserID       string `json:"userId"`
	Limit        int    `json:"limit,omitempty"`
	PetType      string `json:"petType,omitempty"`
	MinAgeMonths *int   `json:"minAgeMonths,omitempty"`
	MaxAgeMonths *int   `json:"maxAgeMonths,omitempty"`
	StrategyTag  string `json:"strategyTag,omitempty"`
	ForceRefresh bool   `json:"forceRefresh,omitempty"`
}

type Output struct {
	Items []deck.Item `json:"items"`
	Meta  deck.Meta   `json:"meta"`
}
