package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/ride-sharing/internal/apperr"
	"github.com/example/ride-sharing/internal/models"
	"github.com/example/ride-sharing/internal/profile"
	"github.com/example/ride-sharing/internal/rides"
)

const maxBodySize = 1 << 20

var validate = validator.New()

var (
	errMalformedBody = apperr.Validation("malformed_body", "Request body must be valid JSON")
	errBodyTooLarge  = apperr.Validation("body_too_large", "Request body too large")
	errInvalidField  = apperr.Validation("invalid_request", "Invalid request")
)

// fieldErrors maps a failed struct field onto the domain error a client
// would get from the core for the same mistake.
type fieldErrors interface {
	fieldError(field string) error
}

type createRideRequest struct {
	Origin         string  `json:"origin" validate:"required"`
	Destination    string  `json:"destination" validate:"required"`
	Date           string  `json:"date" validate:"required"`
	Time           string  `json:"time" validate:"required"`
	SeatsAvailable int     `json:"seatsAvailable" validate:"gte=1"`
	Price          float64 `json:"price" validate:"gte=0"`
	CarModel       string  `json:"carModel"`
	CarNumber      string  `json:"carNumber"`
}

func (createRideRequest) fieldError(field string) error {
	switch field {
	case "SeatsAvailable":
		return models.ErrInvalidCapacity
	case "Price":
		return models.ErrInvalidPrice
	default:
		return models.ErrRideFieldsRequired
	}
}

func (c createRideRequest) params(driverID string) models.RideParams {
	return models.RideParams{
		DriverID:       driverID,
		Origin:         c.Origin,
		Destination:    c.Destination,
		Date:           c.Date,
		Time:           c.Time,
		SeatsAvailable: c.SeatsAvailable,
		Price:          c.Price,
		CarModel:       c.CarModel,
		CarNumber:      c.CarNumber,
	}
}

type createBookingRequest struct {
	RideID string `json:"rideId" validate:"required"`
	Seats  int    `json:"seats" validate:"gte=1"`
}

func (createBookingRequest) fieldError(field string) error {
	if field == "Seats" {
		return apperr.ErrInvalidSeats
	}
	return apperr.Validation("ride_id_required", "Ride ID is required")
}

type rateRideRequest struct {
	Rating  int    `json:"rating" validate:"gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

func (rateRideRequest) fieldError(field string) error {
	if field == "Comment" {
		return apperr.Validation("comment_too_long", "Comment must be at most 1000 characters")
	}
	return apperr.ErrInvalidScore
}

type updateProfileRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
}

func (updateProfileRequest) fieldError(string) error { return profile.ErrNameRequired }

// decodeAndValidate reads a single JSON value from the body and validates it.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			return errBodyTooLarge
		case errors.Is(err, io.EOF):
			// an empty body validates as the zero value
		default:
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				if fe, ok := dst.(fieldErrors); ok {
					return fe.fieldError(jsonFieldToStruct(typeErr.Field))
				}
			}
			return errMalformedBody
		}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			if fe, ok := dst.(fieldErrors); ok {
				return fe.fieldError(verrs[0].StructField())
			}
		}
		return errInvalidField
	}
	return nil
}

// jsonFieldToStruct resolves the json tag name reported by a decode error to
// the Go field name used by fieldError.
func jsonFieldToStruct(jsonName string) string {
	switch jsonName {
	case "seatsAvailable":
		return "SeatsAvailable"
	case "price":
		return "Price"
	case "seats":
		return "Seats"
	case "rating":
		return "Rating"
	case "rideId":
		return "RideID"
	case "comment":
		return "Comment"
	}
	return jsonName
}

// searchQuery reads ride filters from the query string. Malformed numeric
// filters are ignored rather than rejected.
func searchQuery(r *http.Request) rides.Query {
	v := r.URL.Query()
	q := rides.Query{
		Origin:      strings.TrimSpace(v.Get("origin")),
		Destination: strings.TrimSpace(v.Get("destination")),
		Date:        strings.TrimSpace(v.Get("date")),
		Sort:        rides.ParseSort(v.Get("sort")),
		Order:       rides.ParseOrder(v.Get("order")),
	}
	q.MinRating = optionalFloat(v.Get("minRating"))
	q.MaxPrice = optionalFloat(v.Get("maxPrice"))
	return q
}

func optionalFloat(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) {
		return nil
	}
	return &f
}
