package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"stayfinder/internal/domain"
)

// BookingService owns the reservation lifecycle: reserve, cancel, and the
// per-user and per-host booking reads.
type BookingService struct {
	bookings      domain.BookingRepository
	properties    domain.PropertyRepository
	avail         *AvailabilityService
	feed          domain.ChangeFeed
	notifier      domain.HostNotifier
	defaultStatus domain.BookingStatus
	now           func() time.Time
}

func NewBookingService(
	b domain.BookingRepository,
	p domain.PropertyRepository,
	avail *AvailabilityService,
	feed domain.ChangeFeed,
	notifier domain.HostNotifier,
	defaultStatus domain.BookingStatus,
) *BookingService {
	if defaultStatus != domain.StatusPending {
		defaultStatus = domain.StatusConfirmed
	}
	return &BookingService{
		bookings:      b,
		properties:    p,
		avail:         avail,
		feed:          feed,
		notifier:      notifier,
		defaultStatus: defaultStatus,
		now:           time.Now,
	}
}

type ReserveRequest struct {
	PropertyID int64
	CheckIn    time.Time
	CheckOut   time.Time
	Guests     int
}

// Reserve validates the request, then hands the overlap check and insert to
// the store as one atomic unit. Any availability verdict the caller saw
// earlier is a UX hint only; the store's answer here is the real one.
func (s *BookingService) Reserve(ctx context.Context, sess domain.Session, req ReserveRequest) (domain.Booking, error) {
	r, err := domain.NewDateRange(req.CheckIn, req.CheckOut)
	if err != nil {
		return domain.Booking{}, err
	}
	// Same-day bookings are rejected by policy: check-in must be strictly
	// after today at the caller's clock.
	today := domain.Midnight(s.now())
	if !r.CheckIn.After(today) {
		return domain.Booking{}, domain.Invalid("check-in must be in the future")
	}
	if req.Guests < 1 {
		return domain.Booking{}, domain.Invalid("at least one guest is required")
	}

	p, err := s.properties.GetProperty(ctx, req.PropertyID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Booking{}, domain.ErrNotFound
		}
		return domain.Booking{}, &domain.LookupError{Err: err}
	}
	if req.Guests > p.MaxGuests {
		return domain.Booking{}, domain.Invalid("property sleeps at most %d guests", p.MaxGuests)
	}

	b := domain.Booking{
		PropertyID: p.ID,
		UserID:     sess.UserID,
		Dates:      r,
		Guests:     req.Guests,
		TotalPrice: p.PricePerNight * float64(r.Nights()),
		Status:     s.defaultStatus,
	}
	created, err := s.bookings.CreateIfFree(ctx, b)
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return domain.Booking{}, conflict
		}
		return domain.Booking{}, &domain.WriteError{Err: err}
	}

	s.bookingChanged(ctx, p.ID)
	if s.notifier != nil {
		if err := s.notifier.NotifyBooking(ctx, created, p); err != nil {
			log.Warn().Err(err).Int64("booking", created.ID).Msg("host notification failed")
		}
	}
	return created, nil
}

// Cancel soft-cancels a booking: status flips to canceled, the row stays.
// The caller must be the guest, the property's host, or an admin. Canceling
// an already-canceled booking is a no-op.
func (s *BookingService) Cancel(ctx context.Context, sess domain.Session, id int64) error {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return &domain.LookupError{Err: err}
	}
	if !s.mayCancel(ctx, sess, b) {
		return domain.ErrForbidden
	}
	if b.Status == domain.StatusCanceled {
		return nil
	}
	if err := s.bookings.UpdateStatus(ctx, id, domain.StatusCanceled); err != nil {
		return &domain.WriteError{Err: err}
	}
	s.bookingChanged(ctx, b.PropertyID)
	return nil
}

func (s *BookingService) mayCancel(ctx context.Context, sess domain.Session, b domain.Booking) bool {
	if sess.IsAdmin() || sess.UserID == b.UserID {
		return true
	}
	p, err := s.properties.GetProperty(ctx, b.PropertyID)
	if err != nil {
		return false
	}
	return p.OwnerID != nil && *p.OwnerID == sess.UserID
}

// BookingView decorates a booking with its derived completed flag for reads.
type BookingView struct {
	domain.Booking
	Completed bool
}

func (s *BookingService) ListForUser(ctx context.Context, sess domain.Session) ([]BookingView, error) {
	bs, err := s.bookings.ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, &domain.LookupError{Err: err}
	}
	return s.decorate(bs), nil
}

func (s *BookingService) ListForHost(ctx context.Context, sess domain.Session) ([]BookingView, error) {
	bs, err := s.bookings.ListByHost(ctx, sess.UserID)
	if err != nil {
		return nil, &domain.LookupError{Err: err}
	}
	return s.decorate(bs), nil
}

func (s *BookingService) decorate(bs []domain.Booking) []BookingView {
	now := s.now()
	out := make([]BookingView, 0, len(bs))
	for _, b := range bs {
		out = append(out, BookingView{Booking: b, Completed: b.Completed(now)})
	}
	return out
}

// bookingChanged invalidates cached availability and tells open sessions.
func (s *BookingService) bookingChanged(ctx context.Context, propertyID int64) {
	if s.avail != nil {
		s.avail.Invalidate(ctx, propertyID)
	}
	if s.feed != nil {
		if err := s.feed.PublishBookingChange(ctx, propertyID); err != nil {
			log.Warn().Err(err).Int64("property", propertyID).Msg("change publish failed")
		}
	}
}
