package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/ride-sharing/internal/models"
)

func TestFileStoreInitialisesEmptyCollections(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	for _, name := range []string{usersFile, ridesFile, bookingsFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}
	rides, err := s.Rides(context.Background())
	require.NoError(t, err)
	require.Empty(t, rides)
}

func TestFileStoreMigratesLegacyRides(t *testing.T) {
	dir := t.TempDir()
	legacy := `[{"id":"r1","driverId":"d1","origin":"A","destination":"B","date":"2024-01-01","time":"08:00","seatsAvailable":3,"price":12,"status":"active"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ridesFile), []byte(legacy), 0o644))

	s, err := NewFileStore(dir)
	require.NoError(t, err)

	rides, err := s.Rides(context.Background())
	require.NoError(t, err)
	require.Len(t, rides, 1)
	require.Equal(t, 3, rides[0].SeatsTotal)
	require.NotNil(t, rides[0].Ratings)
	require.Zero(t, rides[0].RatingCount)
}

func TestFileStoreTransactionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context, tx Collections) error {
		if err := tx.SaveUsers(ctx, []models.User{{ID: "u1", Name: "Ana"}}); err != nil {
			return err
		}
		return tx.SaveBookings(ctx, []models.Booking{{ID: "b1", RideID: "r1", PassengerID: "u1", Seats: 1}})
	})
	require.NoError(t, err)

	users, err := s.Users(ctx)
	require.NoError(t, err)
	require.Equal(t, "Ana", users[0].Name)

	boom := errors.New("boom")
	err = s.WithinTx(ctx, func(ctx context.Context, tx Collections) error {
		if err := tx.SaveBookings(ctx, nil); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	bookings, err := s.Bookings(ctx)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
}

func TestFileStoreKeepsUnmodelledFields(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	users := `[
  {"id":"u1","name":"Ana","email":"ana@example.com","phone":"1","password":"$2a$10$hashA"},
  {"id":"u2","name":"Ben","email":"ben@example.com","phone":"2","password":"$2a$10$hashB"}
]`
	bookings := `[{"id":"b1","rideId":"r1","passengerId":"u2","seats":1,"status":"confirmed","source":"mobile"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, usersFile), []byte(users), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, bookingsFile), []byte(bookings), 0o644))

	s, err := NewFileStore(dir)
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context, tx Collections) error {
		all, err := tx.Users(ctx)
		if err != nil {
			return err
		}
		all[0].Name = "Ana B"
		if err := tx.SaveUsers(ctx, all); err != nil {
			return err
		}
		bs, err := tx.Bookings(ctx)
		if err != nil {
			return err
		}
		bs[0].Rating = &models.RatingEntry{ID: "x1", PassengerID: "u2", Rating: 5}
		return tx.SaveBookings(ctx, bs)
	})
	require.NoError(t, err)

	var onDisk []map[string]any
	raw, err := os.ReadFile(filepath.Join(dir, usersFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	require.Len(t, onDisk, 2)
	require.Equal(t, "Ana B", onDisk[0]["name"])
	require.Equal(t, "$2a$10$hashA", onDisk[0]["password"])
	require.Equal(t, "$2a$10$hashB", onDisk[1]["password"])

	var bookingsOnDisk []map[string]any
	raw, err = os.ReadFile(filepath.Join(dir, bookingsFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &bookingsOnDisk))
	require.Equal(t, "mobile", bookingsOnDisk[0]["source"])
	require.NotNil(t, bookingsOnDisk[0]["rating"])
}

func TestFileStoreRollsBackPartialCommit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	ride := models.Ride{ID: "r1", DriverID: "d1", SeatsAvailable: 2, SeatsTotal: 2, Status: models.RideActive, Ratings: []models.RatingEntry{}}
	booking := models.Booking{ID: "b1", RideID: "r1", PassengerID: "p1", Seats: 1, Status: models.BookingConfirmed}
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx Collections) error {
		if err := tx.SaveRides(ctx, []models.Ride{ride}); err != nil {
			return err
		}
		return tx.SaveBookings(ctx, []models.Booking{booking})
	}))
	ridesBefore, err := os.ReadFile(filepath.Join(dir, ridesFile))
	require.NoError(t, err)
	bookingsBefore, err := os.ReadFile(filepath.Join(dir, bookingsFile))
	require.NoError(t, err)

	bookingsPath := filepath.Join(dir, bookingsFile)
	renameFile = func(oldpath, newpath string) error {
		if newpath == bookingsPath && oldpath == bookingsPath+".tmp" {
			return errors.New("disk full")
		}
		return os.Rename(oldpath, newpath)
	}
	t.Cleanup(func() { renameFile = os.Rename })

	err = s.WithinTx(ctx, func(ctx context.Context, tx Collections) error {
		rides, err := tx.Rides(ctx)
		if err != nil {
			return err
		}
		rides[0].Ratings = append(rides[0].Ratings, models.RatingEntry{ID: "x1", PassengerID: "p1", Rating: 4})
		rides[0].RatingCount, rides[0].AverageRating = 1, 4
		if err := tx.SaveRides(ctx, rides); err != nil {
			return err
		}
		bs, err := tx.Bookings(ctx)
		if err != nil {
			return err
		}
		bs[0].Rating = &rides[0].Ratings[0]
		return tx.SaveBookings(ctx, bs)
	})
	require.ErrorContains(t, err, "disk full")

	ridesAfter, err := os.ReadFile(filepath.Join(dir, ridesFile))
	require.NoError(t, err)
	bookingsAfter, err := os.ReadFile(filepath.Join(dir, bookingsFile))
	require.NoError(t, err)
	require.Equal(t, string(ridesBefore), string(ridesAfter))
	require.Equal(t, string(bookingsBefore), string(bookingsAfter))

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.*.*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}
