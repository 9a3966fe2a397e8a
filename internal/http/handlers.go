package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/ride-sharing/internal/activity"
	"github.com/example/ride-sharing/internal/apperr"
	"github.com/example/ride-sharing/internal/auth"
	"github.com/example/ride-sharing/internal/booking"
	"github.com/example/ride-sharing/internal/models"
)

var errActivityDisabled = apperr.New(apperr.KindNotFound, "activity_disabled", "Ride activity is not enabled")

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var req createRideRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ride, err := s.Rides.Create(r.Context(), req.params(auth.UserID(r.Context())))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message string      `json:"message"`
		Ride    models.Ride `json:"ride"`
	}{"Ride created successfully", ride})
}

func (s *Server) handleSearchRides(w http.ResponseWriter, r *http.Request) {
	out, err := s.Rides.Search(r.Context(), searchQuery(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	detail, err := s.Rides.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleMyRides(w http.ResponseWriter, r *http.Request) {
	out, err := s.Rides.ListByDriver(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRateRide(w http.ResponseWriter, r *http.Request) {
	var req rateRideRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Bookings.Rate(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()), req.Rating, req.Comment)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message string `json:"message"`
		booking.RatingResult
	}{"Rating submitted successfully", res})
}

func (s *Server) handleRideActivity(w http.ResponseWriter, r *http.Request) {
	if s.Activity == nil {
		s.writeError(w, r, errActivityDisabled)
		return
	}
	rideID := mux.Vars(r)["id"]
	if _, err := s.Rides.Get(r.Context(), rideID); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.Activity.Get(r.Context(), rideID)
	switch {
	case errors.Is(err, activity.ErrNoActivity):
		c = activity.Counters{RideID: rideID}
	case err != nil:
		s.writeError(w, r, apperr.Storage("load ride activity", err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.Bookings.Create(r.Context(), req.RideID, auth.UserID(r.Context()), req.Seats)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Message string         `json:"message"`
		Booking models.Booking `json:"booking"`
	}{"Ride booked successfully", b})
}

func (s *Server) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	out, err := s.Bookings.ListByPassenger(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	if err := s.Bookings.Cancel(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Booking cancelled successfully"})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.Profiles.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.Profiles.Update(r.Context(), auth.UserID(r.Context()), req.Name, req.Phone)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleRideFeed streams events for one ride until the client disconnects.
func (s *Server) handleRideFeed(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["id"]
	if _, err := s.Rides.Get(r.Context(), rideID); err != nil {
		s.writeError(w, r, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Warn("websocket upgrade failed", "ride_id", rideID, "error", err)
		return
	}
	// The server's read timeout would otherwise cut idle subscribers off.
	_ = conn.SetReadDeadline(time.Time{})
	s.Feed.Serve(rideID, conn)
}
