package memory

import (
	"math"
	"sort"
	"time"
)

// applyRecencyBoost re-weights each candidate's score by how recently its
// memory was updated (spec §4.5 "Recency boost"):
//
//	age_hours = (now - memory.updated_at) in hours
//	λ         = ln(2) / half_life_hours
//	recency   = exp(-λ * age_hours)                    ∈ (0, 1]
//	adjusted  = boosted_score * (1 - w + w*recency)     w ∈ [0,1]
//
// w=0 is an early return (scores unchanged, matching spec prose exactly);
// results are re-sorted descending by the adjusted score.
func applyRecencyBoost(results []ScoredResult, halfLifeHours, weight float64, now time.Time) []ScoredResult {
	if weight <= 0 {
		return results
	}
	lambda := math.Ln2 / halfLifeHours
	for i := range results {
		ageHours := now.Sub(results[i].Memory.UpdatedAt).Hours()
		if ageHours < 0 {
			ageHours = 0
		}
		recency := math.Exp(-lambda * ageHours)
		results[i].Score = results[i].Score * (1 - weight + weight*recency)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}
