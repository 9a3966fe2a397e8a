package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/example/ride-sharing/internal/models"
)

const (
	usersFile    = "users.json"
	ridesFile    = "rides.json"
	bookingsFile = "bookings.json"
)

// FileStore persists each collection as a JSON array in its own file under dir.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates any missing collection files and migrates legacy ride
// records in place.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f := &FileStore{dir: dir}
	for _, name := range []string{usersFile, ridesFile, bookingsFile} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			if err := os.WriteFile(p, []byte("[]\n"), 0o644); err != nil {
				return nil, fmt.Errorf("init %s: %w", name, err)
			}
		} else if err != nil {
			return nil, err
		}
	}

	var rides []models.Ride
	if err := f.read(ridesFile, &rides); err != nil {
		return nil, err
	}
	if MigrateRides(rides) {
		if err := f.commit(&staged{rides: rides, ridesDirty: true}); err != nil {
			return nil, fmt.Errorf("migrate rides: %w", err)
		}
	}
	return f, nil
}

func (f *FileStore) Users(ctx context.Context) ([]models.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []models.User
	return out, f.read(usersFile, &out)
}

func (f *FileStore) SaveUsers(ctx context.Context, users []models.User) error {
	return f.WithinTx(ctx, func(ctx context.Context, tx Collections) error { return tx.SaveUsers(ctx, users) })
}

func (f *FileStore) Rides(ctx context.Context) ([]models.Ride, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []models.Ride
	return out, f.read(ridesFile, &out)
}

func (f *FileStore) SaveRides(ctx context.Context, rides []models.Ride) error {
	return f.WithinTx(ctx, func(ctx context.Context, tx Collections) error { return tx.SaveRides(ctx, rides) })
}

func (f *FileStore) Bookings(ctx context.Context) ([]models.Booking, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []models.Booking
	return out, f.read(bookingsFile, &out)
}

func (f *FileStore) SaveBookings(ctx context.Context, bookings []models.Booking) error {
	return f.WithinTx(ctx, func(ctx context.Context, tx Collections) error { return tx.SaveBookings(ctx, bookings) })
}

func (f *FileStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Collections) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	work := &staged{}
	if err := f.read(usersFile, &work.users); err != nil {
		return err
	}
	if err := f.read(ridesFile, &work.rides); err != nil {
		return err
	}
	if err := f.read(bookingsFile, &work.bookings); err != nil {
		return err
	}
	if err := fn(ctx, work); err != nil {
		return err
	}
	return f.commit(work)
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) read(name string, dst any) error {
	b, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// renameFile is swapped in tests to simulate a failing filesystem.
var renameFile = os.Rename

// commit writes every dirty collection to a temp file, then swaps the temp
// files in one by one, keeping the previous file as a .bak. If any swap
// fails, the swaps already made are undone, so either all dirty collections
// change or none do.
func (f *FileStore) commit(s *staged) error {
	type pending struct {
		name string
		tmp  string
	}
	var written []pending
	cleanup := func() {
		for _, p := range written {
			_ = os.Remove(p.tmp)
		}
	}

	write := func(name string, v any) error {
		records, err := f.mergeUnmodelled(name, v)
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		tmp := filepath.Join(f.dir, name+".tmp")
		if err := os.WriteFile(tmp, b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, pending{name: name, tmp: tmp})
		return nil
	}

	if s.usersDirty {
		if err := write(usersFile, nonNil(s.users)); err != nil {
			cleanup()
			return err
		}
	}
	if s.ridesDirty {
		if err := write(ridesFile, nonNil(s.rides)); err != nil {
			cleanup()
			return err
		}
	}
	if s.bookingsDirty {
		if err := write(bookingsFile, nonNil(s.bookings)); err != nil {
			cleanup()
			return err
		}
	}

	var swapped []string
	restore := func() {
		for i := len(swapped) - 1; i >= 0; i-- {
			dst := filepath.Join(f.dir, swapped[i])
			_ = renameFile(dst+".bak", dst)
		}
	}
	for _, p := range written {
		dst := filepath.Join(f.dir, p.name)
		if err := renameFile(dst, dst+".bak"); err != nil {
			restore()
			cleanup()
			return fmt.Errorf("back up %s: %w", p.name, err)
		}
		if err := renameFile(p.tmp, dst); err != nil {
			_ = renameFile(dst+".bak", dst)
			restore()
			cleanup()
			return fmt.Errorf("replace %s: %w", p.name, err)
		}
		swapped = append(swapped, p.name)
	}
	for _, name := range swapped {
		_ = os.Remove(filepath.Join(f.dir, name+".bak"))
	}
	return nil
}

// mergeUnmodelled encodes records and carries over any keys the on-disk
// record with the same id has but the model does not know, such as the
// password hash the identity service keeps in users.json.
func (f *FileStore) mergeUnmodelled(name string, records any) ([]map[string]json.RawMessage, error) {
	b, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	var out []map[string]json.RawMessage
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}

	var prev []map[string]json.RawMessage
	if err := f.read(name, &prev); err != nil {
		return nil, err
	}
	byID := make(map[string]map[string]json.RawMessage, len(prev))
	for _, rec := range prev {
		var id string
		if err := json.Unmarshal(rec["id"], &id); err == nil && id != "" {
			byID[id] = rec
		}
	}

	known := modelledKeys(reflect.TypeOf(records).Elem())
	for _, rec := range out {
		var id string
		if err := json.Unmarshal(rec["id"], &id); err != nil {
			continue
		}
		old, ok := byID[id]
		if !ok {
			continue
		}
		for k, v := range old {
			if _, modelled := known[k]; !modelled {
				rec[k] = v
			}
		}
	}
	return out, nil
}

// modelledKeys lists the JSON keys a struct type owns, including omitempty
// ones that may be absent from an encoded record.
func modelledKeys(t reflect.Type) map[string]struct{} {
	keys := make(map[string]struct{})
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = sf.Name
		}
		keys[name] = struct{}{}
	}
	return keys
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
