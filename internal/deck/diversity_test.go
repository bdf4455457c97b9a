package deck

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

func scoredPet(id, petType, shelter string, score float64) ScoredPet {
	return ScoredPet{
		Pet: Pet{
			ID:          id,
			Type:        petType,
			ShelterName: strPtr(shelter),
		},
		Score: score,
	}
}

func acceptedIDs(scored []ScoredPet) []string {
	ids := make([]string, len(scored))
	for i, sp := range scored {
		ids[i] = sp.Pet.ID
	}
	return ids
}

// ==========================
// Shelter Cap Tests
// ==========================

func TestEnforceDiversity_ShelterCapKeepsHighestScored(t *testing.T) {
	// Five candidates from one shelter; cap 2 within a window of 10 keeps
	// exactly the two best, alternating types so the type run never binds.
	caps := Caps{MaxPerShelter: 2, MaxConsecutiveSameType: 3, WindowSize: 10}
	var scored []ScoredPet
	for i := 0; i < 5; i++ {
		petType := "dog"
		if i%2 == 1 {
			petType = "cat"
		}
		scored = append(scored, scoredPet(fmt.Sprintf("pet-%d", i), petType, "Happy Paws", 0.9-float64(i)*0.1))
	}

	out := EnforceDiversity(scored, caps)

	assert.Equal(t, []string{"pet-0", "pet-1"}, acceptedIDs(out))
}

func TestEnforceDiversity_ShelterCapIsWindowed(t *testing.T) {
	// Window of 2 with cap 1: a same-shelter pet is rejected while the
	// previous one is still inside the trailing window, but becomes
	// acceptable once enough other-shelter pets slide between them.
	caps := Caps{MaxPerShelter: 1, MaxConsecutiveSameType: 10, WindowSize: 2}
	scored := []ScoredPet{
		scoredPet("a1", "dog", "A", 0.9),
		scoredPet("a2", "cat", "A", 0.8), // window [a1] still holds A
		scoredPet("b1", "dog", "B", 0.7),
		scoredPet("c1", "cat", "C", 0.6),
		scoredPet("a3", "dog", "A", 0.5), // window [b1 c1], A admissible again
	}

	out := EnforceDiversity(scored, caps)

	assert.Equal(t, []string{"a1", "b1", "c1", "a3"}, acceptedIDs(out))
}

// ==========================
// Type Run Tests
// ==========================

func TestEnforceDiversity_BreaksLongTypeRuns(t *testing.T) {
	caps := Caps{MaxPerShelter: 10, MaxConsecutiveSameType: 2, WindowSize: 10}
	scored := []ScoredPet{
		scoredPet("d1", "dog", "A", 0.9),
		scoredPet("d2", "dog", "B", 0.8),
		scoredPet("d3", "dog", "C", 0.7), // third consecutive dog
		scoredPet("c1", "cat", "D", 0.6),
		scoredPet("d4", "dog", "E", 0.5),
	}

	out := EnforceDiversity(scored, caps)

	assert.Equal(t, []string{"d1", "d2", "c1", "d4"}, acceptedIDs(out))
	for i := 0; i+2 < len(out); i++ {
		same := out[i].Pet.Type == out[i+1].Pet.Type && out[i+1].Pet.Type == out[i+2].Pet.Type
		assert.False(t, same, "run of 3 %s starting at %d", out[i].Pet.Type, i)
	}
}

func TestEnforceDiversity_SortsByScoreDescending(t *testing.T) {
	caps := DefaultCaps()
	scored := []ScoredPet{
		scoredPet("low", "dog", "A", 0.2),
		scoredPet("high", "cat", "B", 0.9),
		scoredPet("mid", "bird", "C", 0.5),
	}

	out := EnforceDiversity(scored, caps)

	assert.Equal(t, []string{"high", "mid", "low"}, acceptedIDs(out))
}

// ==========================
// Edge Cases
// ==========================

func TestEnforceDiversity_EmptyInput(t *testing.T) {
	out := EnforceDiversity(nil, DefaultCaps())
	assert.Empty(t, out)
}

func TestEnforceDiversity_DoesNotMutateInput(t *testing.T) {
	scored := []ScoredPet{
		scoredPet("low", "dog", "A", 0.2),
		scoredPet("high", "cat", "B", 0.9),
	}
	EnforceDiversity(scored, DefaultCaps())

	assert.Equal(t, "low", scored[0].Pet.ID)
	assert.Equal(t, "high", scored[1].Pet.ID)
}

func TestEnforceDiversity_UnsatisfiableCapsYieldEmptyDeck(t *testing.T) {
	caps := Caps{MaxPerShelter: 0, MaxConsecutiveSameType: 3, WindowSize: 10}
	scored := []ScoredPet{
		scoredPet("a", "dog", "A", 0.9),
		scoredPet("b", "cat", "B", 0.8),
	}

	out := EnforceDiversity(scored, caps)

	assert.Empty(t, out)
}
