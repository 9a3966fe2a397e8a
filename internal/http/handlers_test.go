package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/example/ride-sharing/internal/activity"
	"github.com/example/ride-sharing/internal/auth"
	"github.com/example/ride-sharing/internal/booking"
	"github.com/example/ride-sharing/internal/feed"
	"github.com/example/ride-sharing/internal/logging"
	"github.com/example/ride-sharing/internal/models"
	"github.com/example/ride-sharing/internal/profile"
	"github.com/example/ride-sharing/internal/rides"
	"github.com/example/ride-sharing/internal/storage"
	"github.com/example/ride-sharing/internal/users"
)

const testSecret = "test-secret"

type testAPI struct {
	srv   *Server
	store *storage.MemoryStore
	now   time.Time
}

func newTestAPI(t *testing.T, reader ActivityReader) *testAPI {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.SaveUsers(ctx, []models.User{
		{ID: "driver", Name: "Dana", Email: "dana@example.com", Phone: "555-0100"},
		{ID: "alice", Name: "Alice", Email: "alice@example.com"},
		{ID: "bob", Name: "Bob", Email: "bob@example.com"},
	}))

	dir, err := users.NewDirectory(store, 16)
	require.NoError(t, err)
	verifier, err := auth.NewVerifier(testSecret)
	require.NoError(t, err)

	api := &testAPI{store: store, now: time.Date(2025, 5, 30, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return api.now }
	logger := logging.Discard()
	hub := feed.NewHub(logger)

	api.srv = NewServer(Deps{
		Rides: &rides.Service{
			Store: store, Users: dir, Events: hub, Logger: logger, Location: time.UTC, Now: clock,
		},
		Bookings: &booking.Service{
			Store: store, Users: dir, Events: hub, Logger: logger, Location: time.UTC, Now: clock,
		},
		Profiles: &profile.Service{Store: store, Cache: dir, Logger: logger},
		Feed:     hub,
		Activity: reader,
		Verifier: verifier,
	}, logger)
	return api
}

func token(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, auth.Claims{ID: userID}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (a *testAPI) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[errorBody](t, rec)
	require.Equal(t, code, body.Code)
	require.NotEmpty(t, body.Error)
}

func (a *testAPI) postRide(t *testing.T, price float64, seats int) models.Ride {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/rides", "driver", map[string]any{
		"origin": "Austin", "destination": "Dallas", "date": "2025-06-01", "time": "09:00",
		"seatsAvailable": seats, "price": price, "carModel": "Civic",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode[struct {
		Message string      `json:"message"`
		Ride    models.Ride `json:"ride"`
	}](t, rec)
	require.Equal(t, "Ride created successfully", out.Message)
	return out.Ride
}

func TestAuthentication(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/api/bookings/my-bookings", "", nil)
	requireError(t, rec, http.StatusUnauthorized, "unauthenticated")

	req := httptest.NewRequest(http.MethodGet, "/api/bookings/my-bookings", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	api.srv.ServeHTTP(rec, req)
	requireError(t, rec, http.StatusForbidden, "invalid_token")
}

func TestCreateRideValidation(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodPost, "/api/rides", "driver", map[string]any{"origin": "Austin"})
	requireError(t, rec, http.StatusBadRequest, "ride_fields_required")

	rec = api.do(t, http.MethodPost, "/api/rides", "driver", map[string]any{
		"origin": "A", "destination": "B", "date": "2025-06-01", "time": "09:00", "seatsAvailable": 0, "price": 5,
	})
	requireError(t, rec, http.StatusBadRequest, "invalid_capacity")

	rec = api.do(t, http.MethodPost, "/api/rides", "driver", map[string]any{
		"origin": "A", "destination": "B", "date": "2025-06-01", "time": "09:00", "seatsAvailable": 2, "price": -1,
	})
	requireError(t, rec, http.StatusBadRequest, "invalid_price")

	rec = api.do(t, http.MethodPost, "/api/rides", "driver", map[string]any{
		"origin": "A", "destination": "B", "date": "06/01/2025", "time": "09:00", "seatsAvailable": 2, "price": 1,
	})
	requireError(t, rec, http.StatusBadRequest, "invalid_date")
}

func TestRideLookupAndSearch(t *testing.T) {
	api := newTestAPI(t, nil)
	cheap := api.postRide(t, 10, 3)
	pricey := api.postRide(t, 25, 2)

	rec := api.do(t, http.MethodGet, "/api/rides/"+cheap.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[models.RideDetail](t, rec)
	require.Equal(t, "Dana", detail.DriverName)
	require.Equal(t, "555-0100", detail.DriverPhone)
	require.Empty(t, detail.Bookings)

	rec = api.do(t, http.MethodGet, "/api/rides/missing", "", nil)
	requireError(t, rec, http.StatusNotFound, "ride_not_found")

	rec = api.do(t, http.MethodGet, "/api/rides?sort=price&order=desc&minRating=oops", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]models.RideView](t, rec)
	require.Len(t, list, 2)
	require.Equal(t, pricey.ID, list[0].ID)
	require.Equal(t, "Dana", list[0].DriverName)

	rec = api.do(t, http.MethodGet, "/api/rides?maxPrice=20", "", nil)
	list = decode[[]models.RideView](t, rec)
	require.Len(t, list, 1)
	require.Equal(t, cheap.ID, list[0].ID)

	rec = api.do(t, http.MethodGet, "/api/rides/driver/my-rides", "driver", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]models.Ride](t, rec), 2)
}

func TestBookingFlow(t *testing.T) {
	api := newTestAPI(t, nil)
	ride := api.postRide(t, 10, 3)

	rec := api.do(t, http.MethodPost, "/api/bookings", "alice", map[string]any{"rideId": ride.ID, "seats": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Message string         `json:"message"`
		Booking models.Booking `json:"booking"`
	}](t, rec)
	require.Equal(t, "Ride booked successfully", created.Message)
	require.Equal(t, 2, created.Booking.Seats)

	rec = api.do(t, http.MethodPost, "/api/bookings", "bob", map[string]any{"rideId": ride.ID, "seats": 2})
	requireError(t, rec, http.StatusConflict, "insufficient_seats")
	require.Equal(t, "Not enough seats available", decode[errorBody](t, rec).Error)

	rec = api.do(t, http.MethodPost, "/api/bookings", "bob", map[string]any{"rideId": ride.ID, "seats": 0})
	requireError(t, rec, http.StatusBadRequest, "invalid_seats")

	rec = api.do(t, http.MethodPost, "/api/bookings", "driver", map[string]any{"rideId": ride.ID, "seats": 1})
	requireError(t, rec, http.StatusConflict, "self_booking_forbidden")

	rec = api.do(t, http.MethodPost, "/api/bookings", "alice", map[string]any{"rideId": ride.ID, "seats": 1})
	requireError(t, rec, http.StatusConflict, "duplicate_booking")

	rec = api.do(t, http.MethodPost, "/api/bookings", "bob", map[string]any{"rideId": "nope", "seats": 1})
	requireError(t, rec, http.StatusNotFound, "ride_not_found")

	rec = api.do(t, http.MethodGet, "/api/bookings/my-bookings", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]models.BookingView](t, rec)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Ride)
	require.Equal(t, "Dana", mine[0].Ride.DriverName)
	require.Equal(t, 1, mine[0].Ride.SeatsAvailable)

	rec = api.do(t, http.MethodDelete, "/api/bookings/"+created.Booking.ID, "bob", nil)
	requireError(t, rec, http.StatusForbidden, "unauthorized")

	rec = api.do(t, http.MethodDelete, "/api/bookings/"+created.Booking.ID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Booking cancelled successfully", decode[messageBody](t, rec).Message)

	rec = api.do(t, http.MethodGet, "/api/rides/"+ride.ID, "", nil)
	detail := decode[models.RideDetail](t, rec)
	require.Equal(t, 3, detail.SeatsAvailable)
	require.Equal(t, models.RideActive, detail.Status)

	rec = api.do(t, http.MethodDelete, "/api/bookings/"+created.Booking.ID, "alice", nil)
	requireError(t, rec, http.StatusNotFound, "booking_not_found")
}

func TestRateRide(t *testing.T) {
	api := newTestAPI(t, nil)
	ride := api.postRide(t, 10, 3)
	for _, p := range []string{"alice", "bob"} {
		rec := api.do(t, http.MethodPost, "/api/bookings", p, map[string]any{"rideId": ride.ID, "seats": 1})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	path := "/api/rides/" + ride.ID + "/rate"

	rec := api.do(t, http.MethodPost, path, "alice", map[string]any{"rating": 5})
	requireError(t, rec, http.StatusConflict, "ride_not_yet_occurred")

	api.now = time.Date(2025, 6, 1, 9, 1, 0, 0, time.UTC)

	rec = api.do(t, http.MethodPost, path, "alice", map[string]any{"rating": 6})
	requireError(t, rec, http.StatusBadRequest, "invalid_score")

	rec = api.do(t, http.MethodPost, path, "alice", map[string]any{"rating": 5, "comment": "smooth"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[struct {
		Message       string             `json:"message"`
		Rating        models.RatingEntry `json:"rating"`
		AverageRating float64            `json:"averageRating"`
		RatingCount   int                `json:"ratingCount"`
	}](t, rec)
	require.Equal(t, "Rating submitted successfully", res.Message)
	require.Equal(t, 5, res.Rating.Rating)
	require.Equal(t, "smooth", res.Rating.Comment)
	require.Equal(t, 1, res.RatingCount)

	rec = api.do(t, http.MethodPost, path, "bob", map[string]any{"rating": 4})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.InDelta(t, 4.5, decode[booking.RatingResult](t, rec).AverageRating, 1e-9)

	rec = api.do(t, http.MethodPost, path, "alice", map[string]any{"rating": 3})
	requireError(t, rec, http.StatusConflict, "already_rated")

	rec = api.do(t, http.MethodPost, path, "driver", map[string]any{"rating": 3})
	requireError(t, rec, http.StatusConflict, "booking_required")
}

func TestProfile(t *testing.T) {
	api := newTestAPI(t, nil)
	api.postRide(t, 10, 3)

	for _, path := range []string{"/api/profile", "/api/auth/me"} {
		rec := api.do(t, http.MethodGet, path, "driver", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		p := decode[models.Profile](t, rec)
		require.Equal(t, "Dana", p.Name)
		require.Equal(t, 1, p.Stats.RidesPosted)
		require.Equal(t, 3, p.Stats.SeatsShared)
	}

	rec := api.do(t, http.MethodPut, "/api/profile", "alice", map[string]any{"name": ""})
	requireError(t, rec, http.StatusBadRequest, "name_required")

	rec = api.do(t, http.MethodPut, "/api/profile", "alice", map[string]any{"name": "Alice B", "phone": " 555-0199 "})
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[models.Profile](t, rec)
	require.Equal(t, "Alice B", p.Name)
	require.Equal(t, "555-0199", p.Phone)

	rec = api.do(t, http.MethodGet, "/api/profile", "ghost", nil)
	requireError(t, rec, http.StatusNotFound, "user_not_found")
}

type fakeActivity struct {
	counters activity.Counters
	err      error
}

func (f fakeActivity) Get(_ context.Context, rideID string) (activity.Counters, error) {
	if f.err != nil {
		return activity.Counters{}, f.err
	}
	c := f.counters
	c.RideID = rideID
	return c, nil
}

func TestRideActivity(t *testing.T) {
	disabled := newTestAPI(t, nil)
	ride := disabled.postRide(t, 10, 3)
	rec := disabled.do(t, http.MethodGet, "/api/rides/"+ride.ID+"/activity", "", nil)
	requireError(t, rec, http.StatusNotFound, "activity_disabled")

	enabled := newTestAPI(t, fakeActivity{counters: activity.Counters{Bookings: 2, SeatsBooked: 3}})
	ride = enabled.postRide(t, 10, 3)
	rec = enabled.do(t, http.MethodGet, "/api/rides/"+ride.ID+"/activity", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[activity.Counters](t, rec)
	require.Equal(t, ride.ID, c.RideID)
	require.EqualValues(t, 2, c.Bookings)

	empty := newTestAPI(t, fakeActivity{err: activity.ErrNoActivity})
	ride = empty.postRide(t, 10, 3)
	rec = empty.do(t, http.MethodGet, "/api/rides/"+ride.ID+"/activity", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, decode[activity.Counters](t, rec).Bookings)

	broken := newTestAPI(t, fakeActivity{err: errors.New("redis down")})
	ride = broken.postRide(t, 10, 3)
	rec = broken.do(t, http.MethodGet, "/api/rides/"+ride.ID+"/activity", "", nil)
	requireError(t, rec, http.StatusServiceUnavailable, "storage_unavailable")
}

func TestMalformedBody(t *testing.T) {
	api := newTestAPI(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/bookings", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+token(t, "alice"))
	rec := httptest.NewRecorder()
	api.srv.ServeHTTP(rec, req)
	requireError(t, rec, http.StatusBadRequest, "malformed_body")
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
