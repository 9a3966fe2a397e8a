// Package booking owns the booking lifecycle: reserving seats, cancelling,
// and attaching a passenger's post-trip rating.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-sharing/internal/apperr"
	"github.com/example/ride-sharing/internal/events"
	"github.com/example/ride-sharing/internal/ledger"
	"github.com/example/ride-sharing/internal/models"
	"github.com/example/ride-sharing/internal/observability"
	"github.com/example/ride-sharing/internal/rating"
	"github.com/example/ride-sharing/internal/storage"
	"github.com/example/ride-sharing/internal/users"
)

// NameResolver joins user ids with their records.
type NameResolver interface {
	Resolve(ctx context.Context, ids ...string) (map[string]models.User, error)
}

type Service struct {
	Store    storage.Store
	Users    NameResolver
	Events   events.Publisher
	Logger   *slog.Logger
	Location *time.Location   // zone of ride schedules; defaults to time.Local
	Now      func() time.Time // defaults to time.Now
	NewID    func() string    // defaults to uuid.NewString
}

// RatingResult is the attached entry plus the ride's refreshed aggregate.
type RatingResult struct {
	Entry         models.RatingEntry `json:"rating"`
	AverageRating float64            `json:"averageRating"`
	RatingCount   int                `json:"ratingCount"`
}

// Create books seats on a ride for passengerID.
func (s *Service) Create(ctx context.Context, rideID, passengerID string, seats int) (models.Booking, error) {
	if passengerID == "" {
		return models.Booking{}, apperr.ErrUnauthenticated
	}
	if seats < 1 {
		observability.BookingsTotal.WithLabelValues(resultLabel(apperr.ErrInvalidSeats)).Inc()
		return models.Booking{}, apperr.ErrInvalidSeats
	}

	var (
		created models.Booking
		ride    models.Ride
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx storage.Collections) error {
		rides, err := tx.Rides(ctx)
		if err != nil {
			return err
		}
		idx := indexOfRide(rides, rideID)
		if idx < 0 {
			return apperr.ErrRideNotFound
		}
		bookings, err := tx.Bookings(ctx)
		if err != nil {
			return err
		}
		if err := ledger.Reserve(&rides[idx], passengerID, seats, bookings); err != nil {
			return err
		}

		created = models.Booking{
			ID:          s.newID(),
			RideID:      rideID,
			PassengerID: passengerID,
			Seats:       seats,
			Status:      models.BookingConfirmed,
			CreatedAt:   s.now().UTC(),
		}
		if err := tx.SaveBookings(ctx, append(bookings, created)); err != nil {
			return err
		}
		if err := tx.SaveRides(ctx, rides); err != nil {
			return err
		}
		ride = rides[idx]
		return nil
	})
	observability.BookingsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		return models.Booking{}, apperr.Storage("create booking", err)
	}
	observability.SeatsBooked.Add(float64(seats))

	s.logger().InfoContext(ctx, "booking_created",
		"booking_id", created.ID, "ride_id", rideID, "passenger_id", passengerID,
		"seats", seats, "seats_available", ride.SeatsAvailable, "status", ride.Status)

	ev := events.ForRide(events.BookingCreated, ride, passengerID, created.CreatedAt)
	ev.BookingID, ev.Seats = created.ID, seats
	s.publish(ctx, ev)
	return created, nil
}

// Cancel deletes the requester's booking and returns its seats to the ride.
// A rating already aggregated into the ride stays counted.
func (s *Service) Cancel(ctx context.Context, bookingID, requesterID string) error {
	if requesterID == "" {
		return apperr.ErrUnauthenticated
	}

	var (
		cancelled models.Booking
		ride      *models.Ride
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx storage.Collections) error {
		bookings, err := tx.Bookings(ctx)
		if err != nil {
			return err
		}
		idx := -1
		for i, b := range bookings {
			if b.ID == bookingID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperr.ErrBookingNotFound
		}
		cancelled = bookings[idx]
		if cancelled.PassengerID != requesterID {
			return apperr.ErrUnauthorized
		}

		rides, err := tx.Rides(ctx)
		if err != nil {
			return err
		}
		if r := indexOfRide(rides, cancelled.RideID); r >= 0 {
			ledger.Release(&rides[r], cancelled.Seats)
			if err := tx.SaveRides(ctx, rides); err != nil {
				return err
			}
			snapshot := rides[r]
			ride = &snapshot
		}

		remaining := append(bookings[:idx:idx], bookings[idx+1:]...)
		return tx.SaveBookings(ctx, remaining)
	})
	if err != nil {
		return apperr.Storage("cancel booking", err)
	}
	observability.Cancellations.Inc()

	s.logger().InfoContext(ctx, "booking_cancelled",
		"booking_id", bookingID, "ride_id", cancelled.RideID, "passenger_id", requesterID,
		"seats", cancelled.Seats, "had_rating", cancelled.Rating != nil)

	if ride != nil {
		ev := events.ForRide(events.BookingCancelled, *ride, requesterID, s.now())
		ev.BookingID, ev.Seats = bookingID, cancelled.Seats
		s.publish(ctx, ev)
	}
	return nil
}

// Rate attaches a 1..5 score to the passenger's booking and folds it into the
// ride's aggregate. Both records are written in one unit of work.
func (s *Service) Rate(ctx context.Context, rideID, passengerID string, score int, comment string) (RatingResult, error) {
	if passengerID == "" {
		return RatingResult{}, apperr.ErrUnauthenticated
	}
	if !rating.ValidScore(score) {
		return RatingResult{}, apperr.ErrInvalidScore
	}

	var (
		result RatingResult
		ride   models.Ride
	)
	now := s.now()
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx storage.Collections) error {
		bookings, err := tx.Bookings(ctx)
		if err != nil {
			return err
		}
		bi, ok := ledger.FindBooking(bookings, rideID, passengerID)
		if !ok {
			return apperr.ErrBookingRequired
		}
		if bookings[bi].Rating != nil {
			return apperr.ErrAlreadyRated
		}

		rides, err := tx.Rides(ctx)
		if err != nil {
			return err
		}
		ri := indexOfRide(rides, rideID)
		if ri < 0 {
			return apperr.ErrRideNotFound
		}
		r := &rides[ri]
		if r.DriverID == passengerID {
			return apperr.ErrSelfRating
		}
		at, err := r.ScheduledAt(s.location())
		if err != nil || now.Before(at) {
			return apperr.ErrRideNotYetOccurred
		}

		entry := models.RatingEntry{
			ID:          s.newID(),
			PassengerID: passengerID,
			Rating:      score,
			Comment:     strings.TrimSpace(comment),
			CreatedAt:   now.UTC(),
		}
		r.Ratings = append(r.Ratings, entry)
		rating.Apply(r)
		attached := entry
		bookings[bi].Rating = &attached

		if err := tx.SaveRides(ctx, rides); err != nil {
			return err
		}
		if err := tx.SaveBookings(ctx, bookings); err != nil {
			return err
		}
		result = RatingResult{Entry: entry, AverageRating: r.AverageRating, RatingCount: r.RatingCount}
		ride = *r
		return nil
	})
	if err != nil {
		return RatingResult{}, apperr.Storage("rate ride", err)
	}
	observability.RatingsTotal.Inc()

	s.logger().InfoContext(ctx, "ride_rated",
		"ride_id", rideID, "passenger_id", passengerID, "score", score,
		"average_rating", result.AverageRating, "rating_count", result.RatingCount)

	ev := events.ForRide(events.RideRated, ride, passengerID, now)
	ev.Score = score
	s.publish(ctx, ev)
	return result, nil
}

// ListByPassenger returns the passenger's bookings joined with their ride and
// driver name. Ride is nil when the ride no longer exists.
func (s *Service) ListByPassenger(ctx context.Context, passengerID string) ([]models.BookingView, error) {
	if passengerID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	bookings, err := s.Store.Bookings(ctx)
	if err != nil {
		return nil, apperr.Storage("load bookings", err)
	}
	rides, err := s.Store.Rides(ctx)
	if err != nil {
		return nil, apperr.Storage("load rides", err)
	}

	mine := make([]models.Booking, 0)
	var driverIDs []string
	for _, b := range bookings {
		if b.PassengerID != passengerID {
			continue
		}
		mine = append(mine, b)
		if i := indexOfRide(rides, b.RideID); i >= 0 {
			driverIDs = append(driverIDs, rides[i].DriverID)
		}
	}
	names, err := s.Users.Resolve(ctx, driverIDs...)
	if err != nil {
		return nil, err
	}

	out := make([]models.BookingView, 0, len(mine))
	for _, b := range mine {
		view := models.BookingView{Booking: b}
		if i := indexOfRide(rides, b.RideID); i >= 0 {
			view.Ride = &models.RideView{Ride: rides[i], DriverName: users.DisplayName(names, rides[i].DriverID)}
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		observability.EventPublishFailures.WithLabelValues(string(ev.Type)).Inc()
		s.logger().WarnContext(ctx, "event publish failed", "type", ev.Type, "ride_id", ev.RideID, "error", err)
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.Local
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func indexOfRide(rides []models.Ride, id string) int {
	for i, r := range rides {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func resultLabel(err error) string {
	if err == nil {
		return "confirmed"
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "error"
}
