// Package apperr defines the error kinds returned by the marketplace core.
// Callers branch on Kind (or errors.Is against the sentinels below) instead
// of matching message text.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindUnauthenticated
	KindUnauthorized
	KindStorageUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnauthorized:
		return "unauthorized"
	case KindStorageUnavailable:
		return "storage_unavailable"
	default:
		return "unknown"
	}
}

// Error carries a kind, a stable machine code and a human-readable message.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so that sentinels survive re-wrapping with a new message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

func Validation(code, msg string) *Error { return New(KindValidation, code, msg) }

var (
	ErrUnauthenticated = New(KindUnauthenticated, "unauthenticated", "Access token required")
	ErrUnauthorized    = New(KindUnauthorized, "unauthorized", "Unauthorized")

	ErrRideNotFound    = New(KindNotFound, "ride_not_found", "Ride not found")
	ErrBookingNotFound = New(KindNotFound, "booking_not_found", "Booking not found")
	ErrUserNotFound    = New(KindNotFound, "user_not_found", "User not found")

	ErrInvalidSeats = Validation("invalid_seats", "Number of seats must be at least 1")
	ErrInvalidScore = Validation("invalid_score", "Rating must be between 1 and 5")

	ErrInsufficientSeats  = New(KindConflict, "insufficient_seats", "Not enough seats available")
	ErrSelfBooking        = New(KindConflict, "self_booking_forbidden", "Cannot book your own ride")
	ErrDuplicateBooking   = New(KindConflict, "duplicate_booking", "You have already booked this ride")
	ErrBookingRequired    = New(KindConflict, "booking_required", "You must book this ride before rating it")
	ErrAlreadyRated       = New(KindConflict, "already_rated", "You have already rated this ride")
	ErrSelfRating         = New(KindConflict, "self_rating_forbidden", "Drivers cannot rate their own rides")
	ErrRideNotYetOccurred = New(KindConflict, "ride_not_yet_occurred", "You can rate a ride only after it happens")
	ErrStorageUnavailable = New(KindStorageUnavailable, "storage_unavailable", "Storage unavailable")
)

// Storage wraps an infrastructure failure. Errors that already carry a kind
// are returned unchanged so domain failures raised inside a transaction keep
// their meaning.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{
		Kind: KindStorageUnavailable,
		Code: ErrStorageUnavailable.Code,
		Msg:  op,
		Err:  err,
	}
}

// KindOf reports the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}
