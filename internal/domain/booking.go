package domain

import "time"

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCanceled  BookingStatus = "canceled"
)

// Blocks reports whether a booking in this status occupies its date range.
// Canceled bookings never block; pending ones only under the pending-blocks
// policy.
func (s BookingStatus) Blocks(pendingBlocks bool) bool {
	switch s {
	case StatusConfirmed:
		return true
	case StatusPending:
		return pendingBlocks
	default:
		return false
	}
}

type Booking struct {
	ID         int64
	PropertyID int64
	UserID     int64
	Dates      DateRange
	Guests     int
	TotalPrice float64
	Status     BookingStatus
	CreatedAt  time.Time
}

// Completed is derived, never stored: a confirmed stay whose check-out has
// passed.
func (b Booking) Completed(now time.Time) bool {
	return b.Status == StatusConfirmed && b.Dates.CheckOut.Before(now)
}

// AvailabilityResult is the outcome of a single availability check. It is
// valid only until the next write to the property's bookings.
type AvailabilityResult struct {
	Available     bool
	Indeterminate bool // dates missing or malformed; no verdict either way
	Conflicts     []DateRange
	CheckedAt     time.Time
}

// BookingChange is a near-real-time notification that a property's bookings
// changed and any cached availability for it is stale.
type BookingChange struct {
	PropertyID int64     `json:"property_id"`
	At         time.Time `json:"at"`
}
