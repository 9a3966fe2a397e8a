// Package rides covers ride posting, lookup and search.
package rides

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-sharing/internal/apperr"
	"github.com/example/ride-sharing/internal/events"
	"github.com/example/ride-sharing/internal/models"
	"github.com/example/ride-sharing/internal/observability"
	"github.com/example/ride-sharing/internal/storage"
	"github.com/example/ride-sharing/internal/users"
)

type NameResolver interface {
	Resolve(ctx context.Context, ids ...string) (map[string]models.User, error)
}

type Service struct {
	Store    storage.Store
	Users    NameResolver
	Events   events.Publisher
	Logger   *slog.Logger
	Location *time.Location
	Now      func() time.Time
	NewID    func() string
}

// Create posts a new ride for p.DriverID.
func (s *Service) Create(ctx context.Context, p models.RideParams) (models.Ride, error) {
	if p.DriverID == "" {
		return models.Ride{}, apperr.ErrUnauthenticated
	}
	ride, err := models.NewRide(s.newID(), p, s.now())
	if err != nil {
		return models.Ride{}, err
	}

	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx storage.Collections) error {
		rides, err := tx.Rides(ctx)
		if err != nil {
			return err
		}
		return tx.SaveRides(ctx, append(rides, *ride))
	})
	if err != nil {
		return models.Ride{}, apperr.Storage("create ride", err)
	}
	observability.RidesCreated.Inc()
	s.logger().InfoContext(ctx, "ride_created",
		"ride_id", ride.ID, "driver_id", ride.DriverID, "seats_total", ride.SeatsTotal, "date", ride.Date)

	if s.Events != nil {
		ev := events.ForRide(events.RideCreated, *ride, ride.DriverID, ride.CreatedAt)
		if err := s.Events.Publish(context.WithoutCancel(ctx), ev); err != nil {
			observability.EventPublishFailures.WithLabelValues(string(ev.Type)).Inc()
			s.logger().WarnContext(ctx, "event publish failed", "type", ev.Type, "ride_id", ev.RideID, "error", err)
		}
	}
	return *ride, nil
}

// Search returns active rides matching q, each joined with its driver's name.
func (s *Service) Search(ctx context.Context, q Query) ([]models.RideView, error) {
	start := time.Now()
	defer func() { observability.SearchLatency.Observe(time.Since(start).Seconds()) }()

	all, err := s.Store.Rides(ctx)
	if err != nil {
		return nil, apperr.Storage("load rides", err)
	}
	matched := Filter(all, q, s.location())

	ids := make([]string, 0, len(matched))
	for _, r := range matched {
		ids = append(ids, r.DriverID)
	}
	names, err := s.Users.Resolve(ctx, ids...)
	if err != nil {
		return nil, err
	}
	out := make([]models.RideView, 0, len(matched))
	for _, r := range matched {
		out = append(out, models.RideView{Ride: r, DriverName: users.DisplayName(names, r.DriverID)})
	}
	return out, nil
}

// Get returns one ride with driver contact and all of its bookings.
func (s *Service) Get(ctx context.Context, id string) (models.RideDetail, error) {
	all, err := s.Store.Rides(ctx)
	if err != nil {
		return models.RideDetail{}, apperr.Storage("load rides", err)
	}
	var (
		ride  models.Ride
		found bool
	)
	for _, r := range all {
		if r.ID == id {
			ride, found = r, true
			break
		}
	}
	if !found {
		return models.RideDetail{}, apperr.ErrRideNotFound
	}

	bookings, err := s.Store.Bookings(ctx)
	if err != nil {
		return models.RideDetail{}, apperr.Storage("load bookings", err)
	}
	names, err := s.Users.Resolve(ctx, ride.DriverID)
	if err != nil {
		return models.RideDetail{}, err
	}

	detail := models.RideDetail{
		RideView: models.RideView{Ride: ride, DriverName: users.DisplayName(names, ride.DriverID)},
		Bookings: []models.Booking{},
	}
	if u, ok := names[ride.DriverID]; ok {
		detail.DriverPhone = u.Phone
	}
	for _, b := range bookings {
		if b.RideID == id {
			detail.Bookings = append(detail.Bookings, b)
		}
	}
	return detail, nil
}

// ListByDriver returns every ride posted by driverID, in storage order.
func (s *Service) ListByDriver(ctx context.Context, driverID string) ([]models.Ride, error) {
	if driverID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	all, err := s.Store.Rides(ctx)
	if err != nil {
		return nil, apperr.Storage("load rides", err)
	}
	out := make([]models.Ride, 0)
	for _, r := range all {
		if r.DriverID == driverID {
			out = append(out, r)
		}
	}
	return out, nil
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
