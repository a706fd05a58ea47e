package app

import (
	"context"
	"fmt"
	"time"

	"stayfinder/internal/domain"
)

// AvailabilityService answers "is this date range free on this property".
// Results are a snapshot of the store at query time; the authoritative gate
// lives in BookingRepository.CreateIfFree, so this service is safe to call
// speculatively on every date change.
type AvailabilityService struct {
	bookings      domain.BookingRepository
	cache         domain.Cache
	cacheTTL      time.Duration
	pendingBlocks bool
	now           func() time.Time
}

func NewAvailabilityService(r domain.BookingRepository, c domain.Cache, ttl time.Duration, pendingBlocks bool) *AvailabilityService {
	return &AvailabilityService{
		bookings:      r,
		cache:         c,
		cacheTTL:      ttl,
		pendingBlocks: pendingBlocks,
		now:           time.Now,
	}
}

func activeBookingsKey(propertyID int64) string {
	return fmt.Sprintf("bookings:active:%d", propertyID)
}

// Check evaluates half-open overlap of the candidate range against every
// non-canceled booking on the property. Missing dates yield an indeterminate
// result without touching the store; a store failure surfaces as LookupError
// and must be treated as "unknown".
func (s *AvailabilityService) Check(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) (domain.AvailabilityResult, error) {
	if checkIn.IsZero() || checkOut.IsZero() {
		return domain.AvailabilityResult{Indeterminate: true, CheckedAt: s.now().UTC()}, nil
	}
	r, err := domain.NewDateRange(checkIn, checkOut)
	if err != nil {
		return domain.AvailabilityResult{Indeterminate: true, CheckedAt: s.now().UTC()}, err
	}

	existing, err := s.activeBookings(ctx, propertyID)
	if err != nil {
		return domain.AvailabilityResult{}, &domain.LookupError{Err: err}
	}

	res := domain.AvailabilityResult{Available: true, CheckedAt: s.now().UTC()}
	for _, b := range existing {
		if !b.Status.Blocks(s.pendingBlocks) {
			continue
		}
		if r.Overlaps(b.Dates) {
			res.Available = false
			res.Conflicts = append(res.Conflicts, b.Dates)
		}
	}
	return res, nil
}

// Invalidate drops the cached booking list for a property. Called on every
// write and on change-feed events.
func (s *AvailabilityService) Invalidate(ctx context.Context, propertyID int64) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, activeBookingsKey(propertyID))
	}
}

// activeBookings is cache-aside over one key per property, so a single Del
// invalidates every range variant at once. The TTL is a staleness bound, not
// a correctness mechanism: Reserve never consults this cache.
func (s *AvailabilityService) activeBookings(ctx context.Context, propertyID int64) ([]domain.Booking, error) {
	key := activeBookingsKey(propertyID)
	if s.cache != nil {
		var cached []domain.Booking
		if ok, _ := s.cache.Get(ctx, key, &cached); ok {
			return cached, nil
		}
	}
	bs, err := s.bookings.ListActiveByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, bs, int(s.cacheTTL.Seconds()))
	}
	return bs, nil
}
