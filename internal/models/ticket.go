package models

import "time"

type Ticket struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Passenger string    `json:"passenger"`
	Price     float64   `json:"price"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	StatusActive    = "active"
	StatusBoarding  = "boarding"
	StatusUsed      = "used"
	StatusCancelled = "cancelled"
)

// DefaultPrice is the fixed fare charged for every ride.
const DefaultPrice = 10.00
