package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/example/ride-sharing/internal/models"
)

//go:embed schema.sql
var schema string

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type PostgresStore struct {
	pgCollections
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{pgCollections: pgCollections{q: db}, db: db}, nil
}

// Migrate applies the embedded schema. It is idempotent.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

// WithinTx runs fn in a transaction that holds exclusive write locks on all
// three tables, so read-modify-write sequences never interleave.
func (p *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Collections) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if rec := recover(); rec != nil {
			_ = tx.Rollback()
			panic(rec)
		}
	}()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE users, rides, bookings IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := fn(ctx, pgCollections{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Close() error { return p.db.Close() }

type pgCollections struct {
	q queryer
}

func (c pgCollections) Users(ctx context.Context) ([]models.User, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT id, name, email, phone, created_at FROM users ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (c pgCollections) SaveUsers(ctx context.Context, users []models.User) error {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	if _, err := c.q.ExecContext(ctx, `DELETE FROM users WHERE id <> ALL($1)`, pq.Array(ids)); err != nil {
		return err
	}
	for _, u := range users {
		_, err := c.q.ExecContext(ctx, `INSERT INTO users(id, name, email, phone, created_at) VALUES($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, email=EXCLUDED.email, phone=EXCLUDED.phone`,
			u.ID, u.Name, u.Email, u.Phone, u.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert user %s: %w", u.ID, err)
		}
	}
	return nil
}

func (c pgCollections) Rides(ctx context.Context) ([]models.Ride, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT id, driver_id, origin, destination, ride_date, ride_time, seats_available, seats_total,
		price, car_model, car_number, status, ratings, average_rating, rating_count, created_at FROM rides ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Ride
	for rows.Next() {
		var (
			r       models.Ride
			status  string
			ratings []byte
		)
		if err := rows.Scan(&r.ID, &r.DriverID, &r.Origin, &r.Destination, &r.Date, &r.Time, &r.SeatsAvailable, &r.SeatsTotal,
			&r.Price, &r.CarModel, &r.CarNumber, &status, &ratings, &r.AverageRating, &r.RatingCount, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Status = models.RideStatus(status)
		if err := json.Unmarshal(ratings, &r.Ratings); err != nil {
			return nil, fmt.Errorf("decode ratings of ride %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c pgCollections) SaveRides(ctx context.Context, rides []models.Ride) error {
	ids := make([]string, 0, len(rides))
	for _, r := range rides {
		ids = append(ids, r.ID)
	}
	if _, err := c.q.ExecContext(ctx, `DELETE FROM rides WHERE id <> ALL($1)`, pq.Array(ids)); err != nil {
		return err
	}
	for _, r := range rides {
		ratings, err := json.Marshal(nonNil(r.Ratings))
		if err != nil {
			return err
		}
		_, err = c.q.ExecContext(ctx, `INSERT INTO rides(id, driver_id, origin, destination, ride_date, ride_time, seats_available, seats_total,
			price, car_model, car_number, status, ratings, average_rating, rating_count, created_at)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
			ON CONFLICT (id) DO UPDATE SET seats_available=EXCLUDED.seats_available, status=EXCLUDED.status,
			ratings=EXCLUDED.ratings, average_rating=EXCLUDED.average_rating, rating_count=EXCLUDED.rating_count`,
			r.ID, r.DriverID, r.Origin, r.Destination, r.Date, r.Time, r.SeatsAvailable, r.SeatsTotal,
			r.Price, r.CarModel, r.CarNumber, string(r.Status), string(ratings), r.AverageRating, r.RatingCount, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert ride %s: %w", r.ID, err)
		}
	}
	return nil
}

func (c pgCollections) Bookings(ctx context.Context) ([]models.Booking, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT id, ride_id, passenger_id, seats, status, rating, created_at FROM bookings ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Booking
	for rows.Next() {
		var (
			b      models.Booking
			rating []byte
		)
		if err := rows.Scan(&b.ID, &b.RideID, &b.PassengerID, &b.Seats, &b.Status, &rating, &b.CreatedAt); err != nil {
			return nil, err
		}
		if len(rating) > 0 {
			var entry models.RatingEntry
			if err := json.Unmarshal(rating, &entry); err != nil {
				return nil, fmt.Errorf("decode rating of booking %s: %w", b.ID, err)
			}
			b.Rating = &entry
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (c pgCollections) SaveBookings(ctx context.Context, bookings []models.Booking) error {
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
	}
	if _, err := c.q.ExecContext(ctx, `DELETE FROM bookings WHERE id <> ALL($1)`, pq.Array(ids)); err != nil {
		return err
	}
	for _, b := range bookings {
		var rating any
		if b.Rating != nil {
			raw, err := json.Marshal(b.Rating)
			if err != nil {
				return err
			}
			rating = string(raw)
		}
		_, err := c.q.ExecContext(ctx, `INSERT INTO bookings(id, ride_id, passenger_id, seats, status, rating, created_at)
			VALUES($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, rating=COALESCE(bookings.rating, EXCLUDED.rating)`,
			b.ID, b.RideID, b.PassengerID, b.Seats, b.Status, rating, b.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert booking %s: %w", b.ID, err)
		}
	}
	return nil
}
