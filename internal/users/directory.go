// Package users resolves user records owned by the identity subsystem.
package users

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/example/ride-sharing/internal/apperr"
	"github.com/example/ride-sharing/internal/models"
	"github.com/example/ride-sharing/internal/storage"
)

// Directory looks users up by id, caching hits so search results can be
// joined with driver names without reloading the whole user collection.
type Directory struct {
	store storage.Collections
	cache *lru.Cache[string, models.User]
}

func NewDirectory(store storage.Collections, size int) (*Directory, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, models.User](size)
	if err != nil {
		return nil, err
	}
	return &Directory{store: store, cache: c}, nil
}

// Resolve returns the users for ids that exist. Missing ids are simply absent
// from the result.
func (d *Directory) Resolve(ctx context.Context, ids ...string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(ids))
	var misses []string
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		if u, ok := d.cache.Get(id); ok {
			out[id] = u
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	all, err := d.store.Users(ctx)
	if err != nil {
		return nil, apperr.Storage("load users", err)
	}
	byID := make(map[string]models.User, len(all))
	for _, u := range all {
		byID[u.ID] = u
	}
	for _, id := range misses {
		if u, ok := byID[id]; ok {
			d.cache.Add(id, u)
			out[id] = u
		}
	}
	return out, nil
}

// Get returns a single user or apperr.ErrUserNotFound.
func (d *Directory) Get(ctx context.Context, id string) (models.User, error) {
	found, err := d.Resolve(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	u, ok := found[id]
	if !ok {
		return models.User{}, apperr.ErrUserNotFound
	}
	return u, nil
}

// DisplayName returns the user's name or models.UnknownDriver.
func DisplayName(found map[string]models.User, id string) string {
	if u, ok := found[id]; ok {
		return u.Name
	}
	return models.UnknownDriver
}

// Invalidate drops a cached user after its record changed.
func (d *Directory) Invalidate(id string) {
	d.cache.Remove(id)
}
