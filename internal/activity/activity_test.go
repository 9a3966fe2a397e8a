package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/ride-sharing/internal/events"
)

func TestIncrements(t *testing.T) {
	require.Equal(t, map[string]int64{FieldBookings: 1, FieldSeatsBooked: 2},
		Increments(events.Event{Type: events.BookingCreated, Seats: 2}))
	require.Equal(t, map[string]int64{FieldCancellations: 1, FieldSeatsBooked: -2},
		Increments(events.Event{Type: events.BookingCancelled, Seats: 2}))
	require.Equal(t, map[string]int64{FieldRatings: 1},
		Increments(events.Event{Type: events.RideRated, Score: 4}))
	require.Nil(t, Increments(events.Event{Type: events.RideCreated}))
}

func TestParse(t *testing.T) {
	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	c := Parse("r1", map[string]string{
		FieldBookings:    "3",
		FieldRatings:     "1",
		FieldSeatsBooked: "4",
		FieldLastEvent:   "ride.rated",
		FieldUpdatedAt:   at.Format(time.RFC3339),
		"junk":           "x",
	})
	require.Equal(t, Counters{RideID: "r1", Bookings: 3, Ratings: 1, SeatsBooked: 4, LastEvent: "ride.rated", UpdatedAt: at}, c)
}

func TestKey(t *testing.T) {
	require.Equal(t, "ride:activity:abc", Key("abc"))
}

func TestStamp(t *testing.T) {
	at := time.Date(2025, 5, 1, 14, 0, 0, 0, time.FixedZone("CDT", -5*3600))
	require.Equal(t, map[string]any{
		FieldLastEvent: "booking.created",
		FieldUpdatedAt: "2025-05-01T19:00:00Z",
	}, Stamp(events.Event{Type: events.BookingCreated, At: at}))
}
