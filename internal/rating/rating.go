// Package rating aggregates passenger ratings into a ride's cached average.
package rating

import (
	"math"

	"github.com/example/ride-sharing/internal/models"
)

const (
	MinScore = 1
	MaxScore = 5
)

// ValidScore reports whether score is within the accepted 1..5 range.
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// Recompute returns the number of entries and their mean score rounded to
// two decimals, or 0 when there are none.
func Recompute(entries []models.RatingEntry) (count int, average float64) {
	count = len(entries)
	if count == 0 {
		return 0, 0
	}
	sum := 0
	for _, e := range entries {
		sum += e.Rating
	}
	return count, Round2(float64(sum) / float64(count))
}

// Apply refreshes the ride's cached aggregate from its rating sequence.
func Apply(r *models.Ride) {
	r.RatingCount, r.AverageRating = Recompute(r.Ratings)
}

// WeightedAverage combines per-ride averages weighted by their rating counts.
func WeightedAverage(rides []models.Ride) (count int, average float64) {
	var sum float64
	for _, r := range rides {
		sum += r.AverageRating * float64(r.RatingCount)
		count += r.RatingCount
	}
	if count == 0 {
		return 0, 0
	}
	return count, Round2(sum / float64(count))
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
