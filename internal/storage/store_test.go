package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/ride-sharing/internal/models"
)

func TestMemoryStoreCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.WithinTx(ctx, func(ctx context.Context, tx Collections) error {
		if err := tx.SaveRides(ctx, []models.Ride{{ID: "r1", SeatsAvailable: 2, SeatsTotal: 2}}); err != nil {
			return err
		}
		return tx.SaveBookings(ctx, []models.Booking{{ID: "b1", RideID: "r1"}})
	})
	require.NoError(t, err)

	rides, err := s.Rides(ctx)
	require.NoError(t, err)
	require.Len(t, rides, 1)
	bookings, err := s.Bookings(ctx)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
}

func TestMemoryStoreDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SaveRides(ctx, []models.Ride{{ID: "r1", SeatsAvailable: 2, SeatsTotal: 2}}))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, tx Collections) error {
		rides, _ := tx.Rides(ctx)
		rides[0].SeatsAvailable = 0
		if err := tx.SaveRides(ctx, rides); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rides, err := s.Rides(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, rides[0].SeatsAvailable)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	entry := models.RatingEntry{ID: "e1", Rating: 4}
	require.NoError(t, s.SaveRides(ctx, []models.Ride{{ID: "r1", Ratings: []models.RatingEntry{entry}}}))
	require.NoError(t, s.SaveBookings(ctx, []models.Booking{{ID: "b1", Rating: &entry}}))

	rides, _ := s.Rides(ctx)
	rides[0].Ratings[0].Rating = 1
	bookings, _ := s.Bookings(ctx)
	bookings[0].Rating.Rating = 1

	rides, _ = s.Rides(ctx)
	bookings, _ = s.Bookings(ctx)
	require.Equal(t, 4, rides[0].Ratings[0].Rating)
	require.Equal(t, 4, bookings[0].Rating.Rating)
}

func TestMemoryStoreRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMemoryStore().WithinTx(ctx, func(ctx context.Context, tx Collections) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestMigrateRideBackfillsLegacyFields(t *testing.T) {
	r := models.Ride{
		ID:             "legacy",
		SeatsAvailable: 2,
		Ratings:        []models.RatingEntry{{Rating: 5}, {Rating: 4}},
	}
	require.True(t, MigrateRide(&r))
	require.Equal(t, 2, r.SeatsTotal)
	require.Equal(t, 2, r.RatingCount)
	require.Equal(t, 4.5, r.AverageRating)
	require.Equal(t, models.RideActive, r.Status)

	require.False(t, MigrateRide(&r), "second pass must be a no-op")
}

func TestMigrateRideDerivesFullStatus(t *testing.T) {
	r := models.Ride{SeatsAvailable: 0, SeatsTotal: 3, Status: models.RideActive, Ratings: []models.RatingEntry{}}
	require.True(t, MigrateRide(&r))
	require.Equal(t, models.RideFull, r.Status)
}
