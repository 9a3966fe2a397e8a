// Package feed pushes ride snapshots to websocket subscribers.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/ride-sharing/internal/events"
	"github.com/example/ride-sharing/internal/observability"
)

const writeWait = 5 * time.Second

// Conn is the subset of *websocket.Conn the hub uses.
type Conn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// session serializes writes to one connection.
type session struct {
	conn Conn
	mu   sync.Mutex
}

func (s *session) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// Hub holds subscriber sessions per ride.
type Hub struct {
	mu     sync.RWMutex
	rides  map[string]map[*session]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{rides: make(map[string]map[*session]struct{}), logger: logger}
}

// Serve subscribes conn to rideID and blocks until the client goes away.
func (h *Hub) Serve(rideID string, conn Conn) {
	s := &session{conn: conn}
	h.add(rideID, s)
	defer func() {
		h.remove(rideID, s)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("feed client read error", "ride_id", rideID, "error", err)
			}
			return
		}
	}
}

// Publish forwards ev to every subscriber of ev.RideID. Sessions that fail to
// receive are dropped.
func (h *Hub) Publish(_ context.Context, ev events.Event) error {
	h.mu.RLock()
	subs := make([]*session, 0, len(h.rides[ev.RideID]))
	for s := range h.rides[ev.RideID] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		if err := s.send(ev); err != nil {
			h.logger.Warn("feed send failed", "ride_id", ev.RideID, "error", err)
			h.remove(ev.RideID, s)
			_ = s.conn.Close()
		}
	}
	return nil
}

// Subscribers reports how many sessions watch rideID.
func (h *Hub) Subscribers(rideID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rides[rideID])
}

func (h *Hub) add(rideID string, s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rides[rideID]
	if !ok {
		set = make(map[*session]struct{})
		h.rides[rideID] = set
	}
	set[s] = struct{}{}
	observability.FeedClients.Inc()
}

func (h *Hub) remove(rideID string, s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rides[rideID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.rides, rideID)
	}
	observability.FeedClients.Dec()
}
