package models

import "time"

// RideStatus is derived from seat availability and never set directly.
type RideStatus string

const (
	RideActive RideStatus = "active"
	RideFull   RideStatus = "full"
)

const BookingConfirmed = "confirmed"

// DateLayout and TimeLayout describe how a ride's local schedule is stored.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
}

type RatingEntry struct {
	ID          string    `json:"id"`
	PassengerID string    `json:"passengerId"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Ride struct {
	ID             string        `json:"id"`
	DriverID       string        `json:"driverId"`
	Origin         string        `json:"origin"`
	Destination    string        `json:"destination"`
	Date           string        `json:"date"`
	Time           string        `json:"time"`
	SeatsAvailable int           `json:"seatsAvailable"`
	SeatsTotal     int           `json:"seatsTotal"`
	Price          float64       `json:"price"`
	CarModel       string        `json:"carModel"`
	CarNumber      string        `json:"carNumber"`
	Status         RideStatus    `json:"status"`
	Ratings        []RatingEntry `json:"ratings"`
	AverageRating  float64       `json:"averageRating"`
	RatingCount    int           `json:"ratingCount"`
	CreatedAt      time.Time     `json:"createdAt"`
}

type Booking struct {
	ID          string       `json:"id"`
	RideID      string       `json:"rideId"`
	PassengerID string       `json:"passengerId"`
	Seats       int          `json:"seats"`
	Status      string       `json:"status"`
	Rating      *RatingEntry `json:"rating,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// RideView is a ride joined with its driver's display name.
type RideView struct {
	Ride
	DriverName string `json:"driverName"`
}

// RideDetail is the single-ride view including contact and bookings.
type RideDetail struct {
	RideView
	DriverPhone string    `json:"driverPhone"`
	Bookings    []Booking `json:"bookings"`
}

type BookingView struct {
	Booking
	Ride *RideView `json:"ride"`
}

// Stats summarises a user's activity as driver and passenger.
type Stats struct {
	RidesPosted         int     `json:"totalRidesPosted"`
	SeatsShared         int     `json:"totalSeatsShared"`
	BookingsMade        int     `json:"totalBookings"`
	RatingsReceived     int     `json:"ratingsReceived"`
	AverageDriverRating float64 `json:"averageDriverRating"`
}

type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Stats Stats  `json:"stats"`
}

// UnknownDriver is shown when a ride's driver cannot be resolved.
const UnknownDriver = "Unknown"
