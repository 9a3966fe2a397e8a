package models

import (
	"strings"
	"time"

	"github.com/example/ride-sharing/internal/apperr"
)

var (
	ErrRideFieldsRequired = apperr.Validation("ride_fields_required", "Origin, destination, date and time are required")
	ErrInvalidDate        = apperr.Validation("invalid_date", "Date must be formatted as YYYY-MM-DD")
	ErrInvalidTime        = apperr.Validation("invalid_time", "Time must be formatted as HH:MM")
	ErrInvalidPrice       = apperr.Validation("invalid_price", "Price must not be negative")
	ErrInvalidCapacity    = apperr.Validation("invalid_capacity", "Seats available must be at least 1")
)

// RideParams holds the driver-supplied fields of a new ride.
type RideParams struct {
	DriverID       string
	Origin         string
	Destination    string
	Date           string
	Time           string
	SeatsAvailable int
	Price          float64
	CarModel       string
	CarNumber      string
}

// NewRide validates params and returns an active ride whose capacity is
// fixed to the initial seat count.
func NewRide(id string, p RideParams, now time.Time) (*Ride, error) {
	origin := strings.TrimSpace(p.Origin)
	destination := strings.TrimSpace(p.Destination)
	date := strings.TrimSpace(p.Date)
	clock := strings.TrimSpace(p.Time)
	if origin == "" || destination == "" || date == "" || clock == "" {
		return nil, ErrRideFieldsRequired
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, ErrInvalidDate
	}
	if _, err := time.Parse(TimeLayout, clock); err != nil {
		return nil, ErrInvalidTime
	}
	if p.SeatsAvailable < 1 {
		return nil, ErrInvalidCapacity
	}
	if p.Price < 0 {
		return nil, ErrInvalidPrice
	}

	r := &Ride{
		ID:             id,
		DriverID:       p.DriverID,
		Origin:         origin,
		Destination:    destination,
		Date:           date,
		Time:           clock,
		SeatsAvailable: p.SeatsAvailable,
		SeatsTotal:     p.SeatsAvailable,
		Price:          p.Price,
		CarModel:       strings.TrimSpace(p.CarModel),
		CarNumber:      strings.TrimSpace(p.CarNumber),
		Ratings:        []RatingEntry{},
		CreatedAt:      now.UTC(),
	}
	r.SyncStatus()
	return r, nil
}

// SyncStatus derives Status from SeatsAvailable.
func (r *Ride) SyncStatus() {
	if r.SeatsAvailable == 0 {
		r.Status = RideFull
		return
	}
	r.Status = RideActive
}

// ScheduledAt resolves the ride's local date and time in loc. A missing time
// means midnight.
func (r *Ride) ScheduledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	clock := r.Time
	if clock == "" {
		clock = "00:00"
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, r.Date+" "+clock, loc)
}

// Clone returns a deep copy so staged edits never alias committed state.
func (r Ride) Clone() Ride {
	if r.Ratings != nil {
		r.Ratings = append([]RatingEntry(nil), r.Ratings...)
	}
	return r
}

func (b Booking) Clone() Booking {
	if b.Rating != nil {
		entry := *b.Rating
		b.Rating = &entry
	}
	return b
}
