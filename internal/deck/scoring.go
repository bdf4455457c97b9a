// internal/deck/scoring.go
package deck

import (
	"math"
	"strings"
	"time"
)

// Scorer computes the weighted relevance score for a user/pet pair. It is
// pure for a fixed clock; every sub-score has an explicit default for
// missing data, so scoring never fails for a well-formed pet.
type Scorer struct {
	now func() time.Time
}

func NewScorer(now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{now: now}
}

// Score combines the six sub-scores by weighted sum. The result is not
// renormalized: weights are treated as already calibrated, so misconfigured
// weights can push the sum outside [0,1].
func (s *Scorer) Score(user User, pet Pet, w Weights, likeRate float64) ScoredPet {
	breakdown := map[string]float64{
		"type":       typeMatch(pet),
		"age":        ageMatch(pet.AgeMonths),
		"breed":      breedMatch(pet.Breed),
		"recency":    recencyBoost(pet.CreatedAt, s.now()),
		"popularity": popularityBoost(likeRate),
		"coldstart":  coldstartBoost(user.CreatedAt, s.now()),
	}

	score := w.Type*breakdown["type"] +
		w.Age*breakdown["age"] +
		w.Breed*breakdown["breed"] +
		w.Recency*breakdown["recency"] +
		w.Popularity*breakdown["popularity"] +
		w.Coldstart*breakdown["coldstart"]

	return ScoredPet{Pet: pet, Score: score, Breakdown: breakdown}
}

// typeMatch is a neutral constant in v1; reserved for explicit-preference
// matching.
func typeMatch(_ Pet) float64 {
	return 0.5
}

// ageMatch peaks for the 6-60 month adoption range and decays linearly for
// older pets, floored at 0.2.
func ageMatch(ageMonths *int) float64 {
	if ageMonths == nil {
		return 0.3
	}
	age := float64(*ageMonths)
	switch {
	case age < 6:
		return 0.7
	case age <= 60:
		return 1.0
	default:
		return math.Max(0.2, 1.0-(age-60)/120)
	}
}

// breedMatch slightly prefers mixed breeds.
func breedMatch(breed *string) float64 {
	if breed == nil || *breed == "" {
		return 0.4
	}
	if strings.Contains(strings.ToLower(*breed), "mix") {
		return 0.7
	}
	return 0.5
}

func recencyBoost(createdAt, now time.Time) float64 {
	age := now.Sub(createdAt)
	switch {
	case age <= 24*time.Hour:
		return 1.0
	case age <= 3*24*time.Hour:
		return 0.8
	case age <= 7*24*time.Hour:
		return 0.6
	default:
		return 0.3
	}
}

func popularityBoost(likeRate float64) float64 {
	if likeRate < 0.1 {
		return 0.1
	}
	if likeRate > 1.0 {
		return 1.0
	}
	return likeRate
}

// coldstartBoost favors variety for recently created accounts.
func coldstartBoost(accountCreatedAt, now time.Time) float64 {
	age := now.Sub(accountCreatedAt)
	switch {
	case age <= 7*24*time.Hour:
		return 1.0
	case age <= 14*24*time.Hour:
		return 0.8
	case age <= 30*24*time.Hour:
		return 0.6
	default:
		return 0.3
	}
}
