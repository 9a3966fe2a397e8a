// Package events publishes committed marketplace state changes to
// downstream consumers.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/example/ride-sharing/internal/models"
)

type Type string

const (
	RideCreated      Type = "ride.created"
	BookingCreated   Type = "booking.created"
	BookingCancelled Type = "booking.cancelled"
	RideRated        Type = "ride.rated"
)

// Event is a snapshot of a ride right after a committed change.
type Event struct {
	Type           Type              `json:"type"`
	RideID         string            `json:"rideId"`
	BookingID      string            `json:"bookingId,omitempty"`
	UserID         string            `json:"userId"`
	Seats          int               `json:"seats,omitempty"`
	Score          int               `json:"score,omitempty"`
	SeatsAvailable int               `json:"seatsAvailable"`
	Status         models.RideStatus `json:"status"`
	AverageRating  float64           `json:"averageRating"`
	RatingCount    int               `json:"ratingCount"`
	At             time.Time         `json:"at"`
}

// ForRide fills the ride snapshot fields of a new event.
func ForRide(t Type, r models.Ride, userID string, at time.Time) Event {
	return Event{
		Type:           t,
		RideID:         r.ID,
		UserID:         userID,
		SeatsAvailable: r.SeatsAvailable,
		Status:         r.Status,
		AverageRating:  r.AverageRating,
		RatingCount:    r.RatingCount,
		At:             at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
