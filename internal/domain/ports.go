package domain

import (
	"context"
	"time"
)

type BookingRepository interface {
	// Write paths
	// CreateIfFree performs the overlap check and the insert as one atomic
	// unit; a client-side availability check is never the correctness
	// guarantee. Returns *ConflictError when the range is taken.
	CreateIfFree(ctx context.Context, b Booking) (Booking, error)
	UpdateStatus(ctx context.Context, id int64, status BookingStatus) error
	// ExpirePending soft-cancels pending holds created before cutoff and
	// returns them so callers can invalidate per-property state.
	ExpirePending(ctx context.Context, cutoff time.Time) ([]Booking, error)

	// Read paths
	GetBooking(ctx context.Context, id int64) (Booking, error)
	ListActiveByProperty(ctx context.Context, propertyID int64) ([]Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]Booking, error)
	ListByHost(ctx context.Context, hostID int64) ([]Booking, error)
}

type PropertyRepository interface {
	UpsertProperty(ctx context.Context, p Property) error
	GetProperty(ctx context.Context, id int64) (Property, error)
	ListProperties(ctx context.Context, q PropertiesQuery) (PropertiesPage, error)
}

type ReviewRepository interface {
	InsertReview(ctx context.Context, rv Review) (Review, error)
	DeleteReview(ctx context.Context, id int64) error
	GetReview(ctx context.Context, id int64) (Review, error)
	HasReviewed(ctx context.Context, bookingID int64) (bool, error)
	ListReviews(ctx context.Context, propertyID int64, pg PageQuery) (ReviewsPage, error)
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, id int64) (Profile, error)
	Stats(ctx context.Context) (Stats, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// ChangeFeed pushes per-property booking-change notifications so open
// sessions can drop cached availability immediately.
type ChangeFeed interface {
	PublishBookingChange(ctx context.Context, propertyID int64) error
	Subscribe(ctx context.Context, propertyID int64) (<-chan BookingChange, func(), error)
}

// HostNotifier delivers reservation events to the property's host.
type HostNotifier interface {
	NotifyBooking(ctx context.Context, b Booking, p Property) error
}
