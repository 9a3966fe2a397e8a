package storage

import (
	"context"
	"sync"

	"github.com/example/ride-sharing/internal/models"
)

// Collections is whole-collection persistence: every load returns the full
// ordered sequence and every save replaces it.
type Collections interface {
	Users(ctx context.Context) ([]models.User, error)
	SaveUsers(ctx context.Context, users []models.User) error
	Rides(ctx context.Context) ([]models.Ride, error)
	SaveRides(ctx context.Context, rides []models.Ride) error
	Bookings(ctx context.Context) ([]models.Booking, error)
	SaveBookings(ctx context.Context, bookings []models.Booking) error
}

// Store adds a serialized unit of work on top of Collections. Reads and writes
// made through tx inside fn are committed together when fn returns nil and
// discarded otherwise. fn must not call back into the Store itself.
type Store interface {
	Collections
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Collections) error) error
	Close() error
}

// staged is a private working copy of all collections used by the memory and
// file backends. Writes only mark collections dirty until the owner commits.
type staged struct {
	users    []models.User
	rides    []models.Ride
	bookings []models.Booking

	usersDirty    bool
	ridesDirty    bool
	bookingsDirty bool
}

func (s *staged) Users(ctx context.Context) ([]models.User, error) {
	return cloneUsers(s.users), nil
}

func (s *staged) SaveUsers(ctx context.Context, users []models.User) error {
	s.users = cloneUsers(users)
	s.usersDirty = true
	return nil
}

func (s *staged) Rides(ctx context.Context) ([]models.Ride, error) {
	return cloneRides(s.rides), nil
}

func (s *staged) SaveRides(ctx context.Context, rides []models.Ride) error {
	s.rides = cloneRides(rides)
	s.ridesDirty = true
	return nil
}

func (s *staged) Bookings(ctx context.Context) ([]models.Booking, error) {
	return cloneBookings(s.bookings), nil
}

func (s *staged) SaveBookings(ctx context.Context, bookings []models.Booking) error {
	s.bookings = cloneBookings(bookings)
	s.bookingsDirty = true
	return nil
}

func (s *staged) clone() *staged {
	return &staged{
		users:    cloneUsers(s.users),
		rides:    cloneRides(s.rides),
		bookings: cloneBookings(s.bookings),
	}
}

// MemoryStore keeps all collections in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data *staged
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &staged{}}
}

func (m *MemoryStore) Users(ctx context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.Users(ctx)
}

func (m *MemoryStore) SaveUsers(ctx context.Context, users []models.User) error {
	return m.WithinTx(ctx, func(ctx context.Context, tx Collections) error { return tx.SaveUsers(ctx, users) })
}

func (m *MemoryStore) Rides(ctx context.Context) ([]models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.Rides(ctx)
}

func (m *MemoryStore) SaveRides(ctx context.Context, rides []models.Ride) error {
	return m.WithinTx(ctx, func(ctx context.Context, tx Collections) error { return tx.SaveRides(ctx, rides) })
}

func (m *MemoryStore) Bookings(ctx context.Context) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.Bookings(ctx)
}

func (m *MemoryStore) SaveBookings(ctx context.Context, bookings []models.Booking) error {
	return m.WithinTx(ctx, func(ctx context.Context, tx Collections) error { return tx.SaveBookings(ctx, bookings) })
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Collections) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.data.clone()
	if err := fn(ctx, work); err != nil {
		return err
	}
	m.data = work.clone()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func cloneUsers(in []models.User) []models.User {
	if in == nil {
		return nil
	}
	return append([]models.User(nil), in...)
}

func cloneRides(in []models.Ride) []models.Ride {
	if in == nil {
		return nil
	}
	out := make([]models.Ride, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

func cloneBookings(in []models.Booking) []models.Booking {
	if in == nil {
		return nil
	}
	out := make([]models.Booking, len(in))
	for i, b := range in {
		out[i] = b.Clone()
	}
	return out
}
