package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-sharing/internal/activity"
	"github.com/example/ride-sharing/internal/auth"
	"github.com/example/ride-sharing/internal/booking"
	"github.com/example/ride-sharing/internal/feed"
	"github.com/example/ride-sharing/internal/profile"
	"github.com/example/ride-sharing/internal/rides"
)

// ActivityReader serves the Redis ride-activity projection.
type ActivityReader interface {
	Get(ctx context.Context, rideID string) (activity.Counters, error)
}

// Deps are the collaborators wired by cmd/server. Activity may be nil when
// Redis is not configured.
type Deps struct {
	Rides    *rides.Service
	Bookings *booking.Service
	Profiles *profile.Service
	Feed     *feed.Hub
	Activity ActivityReader
	Verifier *auth.Verifier
}

type Server struct {
	Deps
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{Deps: deps, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api").Subrouter()

	api.Handle("/rides/driver/my-rides", s.authenticated(s.handleMyRides)).Methods(http.MethodGet)
	api.Handle("/rides", s.authenticated(s.handleCreateRide)).Methods(http.MethodPost)
	api.HandleFunc("/rides", s.handleSearchRides).Methods(http.MethodGet)
	api.HandleFunc("/rides/{id}", s.handleGetRide).Methods(http.MethodGet)
	api.HandleFunc("/rides/{id}/activity", s.handleRideActivity).Methods(http.MethodGet)
	api.Handle("/rides/{id}/rate", s.authenticated(s.handleRateRide)).Methods(http.MethodPost)

	api.Handle("/bookings", s.authenticated(s.handleCreateBooking)).Methods(http.MethodPost)
	api.Handle("/bookings/my-bookings", s.authenticated(s.handleMyBookings)).Methods(http.MethodGet)
	api.Handle("/bookings/{id}", s.authenticated(s.handleCancelBooking)).Methods(http.MethodDelete)

	api.Handle("/profile", s.authenticated(s.handleGetProfile)).Methods(http.MethodGet)
	api.Handle("/auth/me", s.authenticated(s.handleGetProfile)).Methods(http.MethodGet)
	api.Handle("/profile", s.authenticated(s.handleUpdateProfile)).Methods(http.MethodPut)

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/rides/{id}", s.handleRideFeed)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
