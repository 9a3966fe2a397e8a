// Package profile serves a user's profile and activity statistics.
package profile

import (
	"context"
	"log/slog"
	"strings"

	"github.com/example/ride-sharing/internal/apperr"
	"github.com/example/ride-sharing/internal/models"
	"github.com/example/ride-sharing/internal/storage"
)

var ErrNameRequired = apperr.Validation("name_required", "Name is required")

// Invalidator is notified when a user record changes.
type Invalidator interface {
	Invalidate(id string)
}

type Service struct {
	Store  storage.Store
	Cache  Invalidator
	Logger *slog.Logger
}

func (s *Service) Stats(ctx context.Context, userID string) (models.Stats, error) {
	rides, err := s.Store.Rides(ctx)
	if err != nil {
		return models.Stats{}, apperr.Storage("load rides", err)
	}
	bookings, err := s.Store.Bookings(ctx)
	if err != nil {
		return models.Stats{}, apperr.Storage("load bookings", err)
	}
	return ComputeStats(userID, rides, bookings), nil
}

func (s *Service) Get(ctx context.Context, userID string) (models.Profile, error) {
	if userID == "" {
		return models.Profile{}, apperr.ErrUnauthenticated
	}
	all, err := s.Store.Users(ctx)
	if err != nil {
		return models.Profile{}, apperr.Storage("load users", err)
	}
	for _, u := range all {
		if u.ID == userID {
			return s.withStats(ctx, u)
		}
	}
	return models.Profile{}, apperr.ErrUserNotFound
}

// Update changes the caller's display name and phone.
func (s *Service) Update(ctx context.Context, userID, name, phone string) (models.Profile, error) {
	if userID == "" {
		return models.Profile{}, apperr.ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Profile{}, ErrNameRequired
	}

	var updated models.User
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx storage.Collections) error {
		all, err := tx.Users(ctx)
		if err != nil {
			return err
		}
		for i := range all {
			if all[i].ID == userID {
				all[i].Name = name
				all[i].Phone = strings.TrimSpace(phone)
				updated = all[i]
				return tx.SaveUsers(ctx, all)
			}
		}
		return apperr.ErrUserNotFound
	})
	if err != nil {
		return models.Profile{}, apperr.Storage("update profile", err)
	}
	if s.Cache != nil {
		s.Cache.Invalidate(userID)
	}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "profile_updated", "user_id", userID)
	}
	return s.withStats(ctx, updated)
}

func (s *Service) withStats(ctx context.Context, u models.User) (models.Profile, error) {
	st, err := s.Stats(ctx, u.ID)
	if err != nil {
		return models.Profile{}, err
	}
	return models.Profile{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, Stats: st}, nil
}
