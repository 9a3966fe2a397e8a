package profile

import (
	"github.com/example/ride-sharing/internal/models"
	"github.com/example/ride-sharing/internal/rating"
)

// ComputeStats derives userID's statistics from the full ride and booking
// collections. The driver rating is weighted by each ride's rating count.
func ComputeStats(userID string, rides []models.Ride, bookings []models.Booking) models.Stats {
	var st models.Stats
	driven := make([]models.Ride, 0)
	for _, r := range rides {
		if r.DriverID != userID {
			continue
		}
		driven = append(driven, r)
		st.SeatsShared += r.SeatsTotal
	}
	st.RidesPosted = len(driven)
	st.RatingsReceived, st.AverageDriverRating = rating.WeightedAverage(driven)

	for _, b := range bookings {
		if b.PassengerID == userID {
			st.BookingsMade++
		}
	}
	return st
}
