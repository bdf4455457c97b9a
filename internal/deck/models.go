// internal/deck/models.go
package deck

import "time"

// Pet adoptable statuses.
const (
	StatusAvailable = "available"
	StatusPending   = "pending"
	StatusPlaced    = "placed"
)

// Pet is an adoptable candidate. Only available, non-deleted pets are
// eligible for a deck.
type Pet struct {
	ID          string
	Name        string
	Type        string
	AgeMonths   *int
	Breed       *string
	ShelterName *string
	PhotoURL    string
	Description string
	CreatedAt   time.Time
}

// Shelter returns the grouping key used by the diversity pass, defaulting to
// "unknown" when the shelter name is absent.
func (p *Pet) Shelter() string {
	if p.ShelterName == nil || *p.ShelterName == "" {
		return "unknown"
	}
	return *p.ShelterName
}

// User is the requester a deck is generated for. CreatedAt drives the
// cold-start boost.
type User struct {
	ID        string
	CreatedAt time.Time
}

// Filters narrows the candidate pool before scoring.
type Filters struct {
	Type   string
	MinAge *int
	MaxAge *int
}

// Weights are the six scoring coefficients. They are not required to sum
// to 1; each is constrained to [0,1] at the admin-update boundary only.
type Weights struct {
	Type       float64 `json:"type"`
	Age        float64 `json:"age"`
	Breed      float64 `json:"breed"`
	Recency    float64 `json:"recency"`
	Popularity float64 `json:"popularity"`
	Coldstart  float64 `json:"coldstart"`
}

// Caps are the sliding-window diversity limits.
type Caps struct {
	MaxPerShelter          int `json:"maxPerShelter"`
	MaxConsecutiveSameType int `json:"maxConsecutiveSameType"`
	WindowSize             int `json:"windowSize"`
}

// DefaultWeights sums to 1.0 so default scores stay inside [0,1].
func DefaultWeights() Weights {
	return Weights{
		Type:       0.2,
		Age:        0.2,
		Breed:      0.1,
		Recency:    0.2,
		Popularity: 0.2,
		Coldstart:  0.1,
	}
}

func DefaultCaps() Caps {
	return Caps{
		MaxPerShelter:          2,
		MaxConsecutiveSameType: 3,
		WindowSize:             10,
	}
}

// ScoredPet is a Pet with its weighted score and the per-component
// breakdown. Built per request, never persisted.
type ScoredPet struct {
	Pet       Pet
	Score     float64
	Breakdown map[string]float64
}

// Item is one deck entry as returned to callers.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	AgeMonths   *int      `json:"ageMonths,omitempty"`
	Breed       *string   `json:"breed,omitempty"`
	ShelterName string    `json:"shelterName"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	Description string    `json:"description,omitempty"`
	Score       float64   `json:"score"`
	Rank        int       `json:"rank"`
	Reasons     []string  `json:"reasons,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Meta describes how the deck was produced.
type Meta struct {
	Limit           int       `json:"limit"`
	GeneratedAt     time.Time `json:"generatedAt"`
	Strategy        string    `json:"strategy"`
	TotalCandidates int       `json:"totalCandidates"`
	CacheHit        bool      `json:"cacheHit"`
}

// Deck is the full generateDeck response.
type Deck struct {
	Items []Item `json:"items"`
	Meta  Meta   `json:"meta"`
}

// AuditRecord is the append-only snapshot written after each generation.
type AuditRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	DeckSize    int       `json:"deckSize"`
	Strategy    string    `json:"strategy"`
	PoolSize    int       `json:"poolSize"`
	Weights     Weights   `json:"weights"`
	Caps        Caps      `json:"caps"`
	GeneratedAt time.Time `json:"generatedAt"`
}
