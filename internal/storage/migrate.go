package storage

import (
	"github.com/example/ride-sharing/internal/models"
	"github.com/example/ride-sharing/internal/rating"
)

// MigrateRide brings a ride written by an older version of the service up to
// the current invariants and reports whether anything changed.
func MigrateRide(r *models.Ride) bool {
	before := *r
	if r.SeatsAvailable < 0 {
		r.SeatsAvailable = 0
	}
	if r.SeatsTotal < r.SeatsAvailable {
		r.SeatsTotal = r.SeatsAvailable
	}
	if r.Ratings == nil {
		r.Ratings = []models.RatingEntry{}
	}
	rating.Apply(r)
	r.SyncStatus()

	return before.SeatsAvailable != r.SeatsAvailable ||
		before.SeatsTotal != r.SeatsTotal ||
		before.Ratings == nil ||
		before.RatingCount != r.RatingCount ||
		before.AverageRating != r.AverageRating ||
		before.Status != r.Status
}

// MigrateRides applies MigrateRide to every element and reports whether any changed.
func MigrateRides(rides []models.Ride) bool {
	changed := false
	for i := range rides {
		if MigrateRide(&rides[i]) {
			changed = true
		}
	}
	return changed
}
