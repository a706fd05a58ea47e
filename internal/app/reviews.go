package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stayfinder/internal/domain"
)

// ReviewService gates review writes on a completed stay and serves the
// property review pages.
type ReviewService struct {
	reviews  domain.ReviewRepository
	bookings domain.BookingRepository
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewReviewService(rv domain.ReviewRepository, b domain.BookingRepository, c domain.Cache, ttl time.Duration) *ReviewService {
	return &ReviewService{reviews: rv, bookings: b, cache: c, cacheTTL: ttl, now: time.Now}
}

type ReviewRequest struct {
	BookingID int64
	Rating    int
	Comment   *string
}

// AddReview accepts one review per booking, written by the guest, only after
// the stay completed.
func (s *ReviewService) AddReview(ctx context.Context, sess domain.Session, req ReviewRequest) (domain.Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return domain.Review{}, domain.Invalid("rating must be between 1 and 5")
	}
	b, err := s.bookings.GetBooking(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Review{}, domain.ErrNotFound
		}
		return domain.Review{}, &domain.LookupError{Err: err}
	}
	if b.UserID != sess.UserID {
		return domain.Review{}, domain.ErrForbidden
	}
	if !b.Completed(s.now()) {
		return domain.Review{}, domain.Invalid("stay has not completed yet")
	}
	done, err := s.reviews.HasReviewed(ctx, b.ID)
	if err != nil {
		return domain.Review{}, &domain.LookupError{Err: err}
	}
	if done {
		return domain.Review{}, domain.Invalid("booking already reviewed")
	}

	rv := domain.Review{
		PropertyID: b.PropertyID,
		BookingID:  b.ID,
		UserID:     sess.UserID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}
	created, err := s.reviews.InsertReview(ctx, rv)
	if err != nil {
		return domain.Review{}, &domain.WriteError{Err: err}
	}
	s.invalidateReviews(ctx, b.PropertyID)
	return created, nil
}

// DeleteReview is allowed for the author or an admin.
func (s *ReviewService) DeleteReview(ctx context.Context, sess domain.Session, id int64) error {
	rv, err := s.reviews.GetReview(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return &domain.LookupError{Err: err}
	}
	if !sess.IsAdmin() && rv.UserID != sess.UserID {
		return domain.ErrForbidden
	}
	if err := s.reviews.DeleteReview(ctx, id); err != nil {
		return &domain.WriteError{Err: err}
	}
	s.invalidateReviews(ctx, rv.PropertyID)
	return nil
}

func (s *ReviewService) ListReviews(ctx context.Context, propertyID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	key := reviewsKey(propertyID, pg.Limit, pg.Sort)
	var out domain.ReviewsPage
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	rs, err := s.reviews.ListReviews(ctx, propertyID, pg)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	if s.cache == nil {
		return rs, nil
	}

	// copy slice to avoid aliasing the repo's backing array
	cp := deepCopyReviewsPage(rs)
	if b, _ := json.Marshal(cp); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
	}
	return cp, nil
}

func reviewsKey(propertyID int64, limit int, sort string) string {
	return fmt.Sprintf("reviews:%d:%d:%s", propertyID, limit, sort)
}

// invalidateReviews clears the common list variants plus the property row,
// whose rating aggregate just moved; the API default is limit=50 sorted
// newest first.
func (s *ReviewService) invalidateReviews(ctx context.Context, propertyID int64) {
	if s.cache == nil {
		return
	}
	for _, lim := range []int{50, 100, 200} {
		_ = s.cache.Del(ctx, reviewsKey(propertyID, lim, "-created_at"))
	}
	_ = s.cache.Del(ctx, fmt.Sprintf("property:%d", propertyID))
}

func deepCopyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	out := domain.ReviewsPage{NextCursor: in.NextCursor}
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.Review, n)
		copy(out.Items, in.Items)
	}
	return out
}
