// Package activity maintains per-ride counters in Redis, projected from the
// marketplace event stream.
package activity

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-sharing/internal/events"
)

const (
	FieldBookings      = "bookings"
	FieldCancellations = "cancellations"
	FieldRatings       = "ratings"
	FieldSeatsBooked   = "seats_booked"
	FieldLastEvent     = "last_event"
	FieldUpdatedAt     = "updated_at"
)

// ErrNoActivity is returned when a ride has no projected counters yet.
var ErrNoActivity = errors.New("no activity recorded")

type Counters struct {
	RideID        string    `json:"rideId"`
	Bookings      int64     `json:"bookings"`
	Cancellations int64     `json:"cancellations"`
	Ratings       int64     `json:"ratings"`
	SeatsBooked   int64     `json:"seatsBooked"`
	LastEvent     string    `json:"lastEvent"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func Key(rideID string) string { return "ride:activity:" + rideID }

// Increments maps an event onto the hash fields it bumps. Seats booked is a
// running net figure: cancellations subtract.
func Increments(ev events.Event) map[string]int64 {
	switch ev.Type {
	case events.BookingCreated:
		return map[string]int64{FieldBookings: 1, FieldSeatsBooked: int64(ev.Seats)}
	case events.BookingCancelled:
		return map[string]int64{FieldCancellations: 1, FieldSeatsBooked: -int64(ev.Seats)}
	case events.RideRated:
		return map[string]int64{FieldRatings: 1}
	default:
		return nil
	}
}

// Store reads and writes the projection.
type Store struct {
	client *redis.Client
}

func NewStore(addr, password string) *Store {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Store{client: c}
}

func (s *Store) Client() *redis.Client { return s.client }

// Record applies ev to its ride's hash in one MULTI/EXEC so counters and the
// last_event stamp move together. Events without counters are ignored.
func (s *Store) Record(ctx context.Context, ev events.Event) error {
	incs := Increments(ev)
	if len(incs) == 0 {
		return nil
	}
	key := Key(ev.RideID)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for field, n := range incs {
			p.HIncrBy(ctx, key, field, n)
		}
		p.HSet(ctx, key, Stamp(ev))
		return nil
	})
	return err
}

// Stamp is the last_event/updated_at pair written with each recorded event.
func Stamp(ev events.Event) map[string]any {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return map[string]any{
		FieldLastEvent: string(ev.Type),
		FieldUpdatedAt: at.UTC().Format(time.RFC3339),
	}
}

// Get loads the counters for rideID.
func (s *Store) Get(ctx context.Context, rideID string) (Counters, error) {
	m, err := s.client.HGetAll(ctx, Key(rideID)).Result()
	if err != nil {
		return Counters{}, err
	}
	if len(m) == 0 {
		return Counters{}, ErrNoActivity
	}
	return Parse(rideID, m), nil
}

func (s *Store) Close() error { return s.client.Close() }

// Parse decodes a raw hash; unparsable fields read as zero.
func Parse(rideID string, m map[string]string) Counters {
	c := Counters{RideID: rideID, LastEvent: m[FieldLastEvent]}
	c.Bookings, _ = strconv.ParseInt(m[FieldBookings], 10, 64)
	c.Cancellations, _ = strconv.ParseInt(m[FieldCancellations], 10, 64)
	c.Ratings, _ = strconv.ParseInt(m[FieldRatings], 10, 64)
	c.SeatsBooked, _ = strconv.ParseInt(m[FieldSeatsBooked], 10, 64)
	if v, ok := m[FieldUpdatedAt]; ok {
		c.UpdatedAt, _ = time.Parse(time.RFC3339, v)
	}
	return c
}
