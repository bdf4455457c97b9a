// internal/deck/diversity.go
package deck

import "sort"

// EnforceDiversity sorts candidates by score descending (stable on ties) and
// walks them in a single greedy forward pass. A rejected candidate is
// permanently dropped from this deck; there is no backtracking. With
// unsatisfiable caps (e.g. maxPerShelter = 0) the result degrades to an
// empty or near-empty deck, which is accepted behavior.
func EnforceDiversity(scored []ScoredPet, caps Caps) []ScoredPet {
	sorted := make([]ScoredPet, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	accepted := make([]ScoredPet, 0, len(sorted))
	for _, c := range sorted {
		if shelterCapExceeded(accepted, c, caps) {
			continue
		}
		if typeRunExceeded(accepted, c, caps) {
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted
}

// shelterCapExceeded counts, over the trailing window of accepted
// candidates only, how many share the candidate's shelter.
func shelterCapExceeded(accepted []ScoredPet, c ScoredPet, caps Caps) bool {
	start := len(accepted) - caps.WindowSize
	if start < 0 {
		start = 0
	}
	count := 0
	for _, a := range accepted[start:] {
		if a.Pet.Shelter() == c.Pet.Shelter() {
			count++
		}
	}
	return count >= caps.MaxPerShelter
}

// typeRunExceeded inspects the last maxConsecutiveSameType accepted
// candidates (not bounded by windowSize); if all of them already share the
// candidate's category, accepting it would exceed the run cap.
func typeRunExceeded(accepted []ScoredPet, c ScoredPet, caps Caps) bool {
	n := caps.MaxConsecutiveSameType
	if len(accepted) < n {
		return false
	}
	for _, a := range accepted[len(accepted)-n:] {
		if a.Pet.Type != c.Pet.Type {
			return false
		}
	}
	return true
}
