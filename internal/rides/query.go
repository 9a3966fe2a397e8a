package rides

import (
	"sort"
	"strings"
	"time"

	"github.com/example/ride-sharing/internal/models"
)

type SortKey string

const (
	SortDate   SortKey = "date"
	SortPrice  SortKey = "price"
	SortRating SortKey = "rating"
)

type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Query holds optional search filters. Empty strings and nil pointers mean
// "no constraint".
type Query struct {
	Origin      string
	Destination string
	Date        string
	MinRating   *float64
	MaxPrice    *float64
	Sort        SortKey
	Order       Order
}

// Filter applies q to rides and returns the matching active rides sorted by
// q.Sort. Equal keys keep their storage order in both directions.
func Filter(rides []models.Ride, q Query, loc *time.Location) []models.Ride {
	origin := strings.ToLower(strings.TrimSpace(q.Origin))
	destination := strings.ToLower(strings.TrimSpace(q.Destination))
	date := strings.TrimSpace(q.Date)

	out := make([]models.Ride, 0, len(rides))
	for _, r := range rides {
		if r.Status != models.RideActive {
			continue
		}
		if origin != "" && !strings.Contains(strings.ToLower(r.Origin), origin) {
			continue
		}
		if destination != "" && !strings.Contains(strings.ToLower(r.Destination), destination) {
			continue
		}
		if date != "" && r.Date != date {
			continue
		}
		if q.MinRating != nil && r.AverageRating < *q.MinRating {
			continue
		}
		if q.MaxPrice != nil && r.Price > *q.MaxPrice {
			continue
		}
		out = append(out, r)
	}

	key := sortKey(q.Sort, loc)
	desc := q.Order == Desc
	sort.SliceStable(out, func(i, j int) bool {
		a, b := key(out[i]), key(out[j])
		if desc {
			return a > b
		}
		return a < b
	})
	return out
}

func sortKey(k SortKey, loc *time.Location) func(models.Ride) float64 {
	switch k {
	case SortPrice:
		return func(r models.Ride) float64 { return r.Price }
	case SortRating:
		return func(r models.Ride) float64 { return r.AverageRating }
	default:
		return func(r models.Ride) float64 {
			at, err := r.ScheduledAt(loc)
			if err != nil {
				return 0
			}
			return float64(at.Unix())
		}
	}
}

// ParseSort maps a user supplied sort name onto a key, defaulting to date.
func ParseSort(v string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(v))) {
	case SortPrice:
		return SortPrice
	case SortRating:
		return SortRating
	default:
		return SortDate
	}
}

func ParseOrder(v string) Order {
	if strings.EqualFold(strings.TrimSpace(v), string(Desc)) {
		return Desc
	}
	return Asc
}
