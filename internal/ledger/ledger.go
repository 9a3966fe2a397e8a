// Package ledger keeps a ride's seat availability consistent with its bookings.
package ledger

import (
	"github.com/example/ride-sharing/internal/apperr"
	"github.com/example/ride-sharing/internal/models"
)

// Reserve takes seats on ride for passengerID. bookings is the current
// booking collection, used to reject a second booking by the same
// passenger. The ride is mutated in place; callers persist it.
func Reserve(ride *models.Ride, passengerID string, seats int, bookings []models.Booking) error {
	if seats < 1 {
		return apperr.ErrInvalidSeats
	}
	if ride.DriverID == passengerID {
		return apperr.ErrSelfBooking
	}
	if seats > ride.SeatsAvailable {
		return apperr.ErrInsufficientSeats
	}
	if _, ok := FindBooking(bookings, ride.ID, passengerID); ok {
		return apperr.ErrDuplicateBooking
	}

	ride.SeatsAvailable -= seats
	ride.SyncStatus()
	return nil
}

// Release returns seats to ride, never exceeding its capacity.
func Release(ride *models.Ride, seats int) {
	if seats <= 0 {
		return
	}
	ride.SeatsAvailable += seats
	if ride.SeatsAvailable > ride.SeatsTotal {
		ride.SeatsAvailable = ride.SeatsTotal
	}
	ride.SyncStatus()
}

// FindBooking returns the index of the confirmed booking for (rideID, passengerID).
func FindBooking(bookings []models.Booking, rideID, passengerID string) (int, bool) {
	for i, b := range bookings {
		if b.RideID == rideID && b.PassengerID == passengerID && b.Status == models.BookingConfirmed {
			return i, true
		}
	}
	return -1, false
}
