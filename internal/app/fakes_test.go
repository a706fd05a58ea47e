package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"stayfinder/internal/domain"
)

// ---- fakes shared by the service tests ----

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[int64]domain.Booking
	owners   map[int64]int64 // propertyID -> ownerID, for ListByHost
	nextID   int64
	writes   int
	lists    int
	listErr  error
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: map[int64]domain.Booking{}, owners: map[int64]int64{}}
}

func (f *fakeBookingRepo) seed(b domain.Booking) domain.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	f.bookings[b.ID] = b
	return b
}

// CreateIfFree mirrors the store contract: overlap check and insert under
// one lock, pending and confirmed both gate the write.
func (f *fakeBookingRepo) CreateIfFree(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var conflicts []domain.DateRange
	for _, ex := range f.bookings {
		if ex.PropertyID != b.PropertyID || ex.Status == domain.StatusCanceled {
			continue
		}
		if b.Dates.Overlaps(ex.Dates) {
			conflicts = append(conflicts, ex.Dates)
		}
	}
	if len(conflicts) > 0 {
		return domain.Booking{}, &domain.ConflictError{Conflicts: conflicts}
	}
	f.nextID++
	b.ID = f.nextID
	b.CreatedAt = time.Now().UTC()
	f.bookings[b.ID] = b
	f.writes++
	return b, nil
}

func (f *fakeBookingRepo) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.Status = status
	f.bookings[id] = b
	f.writes++
	return nil
}

func (f *fakeBookingRepo) ExpirePending(ctx context.Context, cutoff time.Time) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for id, b := range f.bookings {
		if b.Status == domain.StatusPending && b.CreatedAt.Before(cutoff) {
			b.Status = domain.StatusCanceled
			f.bookings[id] = b
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeBookingRepo) ListActiveByProperty(ctx context.Context, propertyID int64) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.PropertyID == propertyID && b.Status != domain.StatusCanceled {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) ListByHost(ctx context.Context, hostID int64) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for _, b := range f.bookings {
		if f.owners[b.PropertyID] == hostID {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakePropertyRepo struct {
	mu    sync.Mutex
	props map[int64]domain.Property
}

func newFakePropertyRepo(ps ...domain.Property) *fakePropertyRepo {
	f := &fakePropertyRepo{props: map[int64]domain.Property{}}
	for _, p := range ps {
		f.props[p.ID] = p
	}
	return f
}

func (f *fakePropertyRepo) UpsertProperty(ctx context.Context, p domain.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.props[p.ID] = p
	return nil
}

func (f *fakePropertyRepo) GetProperty(ctx context.Context, id int64) (domain.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.props[id]
	if !ok {
		return domain.Property{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePropertyRepo) ListProperties(ctx context.Context, q domain.PropertiesQuery) (domain.PropertiesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Property
	for _, p := range f.props {
		out = append(out, p)
	}
	return domain.PropertiesPage{Items: out}, nil
}

// fakeCache stores marshaled values so Get works for any destination type.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	dels  []string
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

type fakeFeed struct {
	mu        sync.Mutex
	published []int64
	subs      []chan domain.BookingChange
}

func (f *fakeFeed) PublishBookingChange(ctx context.Context, propertyID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, propertyID)
	for _, ch := range f.subs {
		select {
		case ch <- domain.BookingChange{PropertyID: propertyID, At: time.Now().UTC()}:
		default:
		}
	}
	return nil
}

func (f *fakeFeed) Subscribe(ctx context.Context, propertyID int64) (<-chan domain.BookingChange, func(), error) {
	ch := make(chan domain.BookingChange, 4)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch, func() {}, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []int64
	err      error
}

func (n *fakeNotifier) NotifyBooking(ctx context.Context, b domain.Booking, p domain.Property) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notified = append(n.notified, b.ID)
	return nil
}

type fakeReviewRepo struct {
	mu      sync.Mutex
	reviews map[int64]domain.Review
	nextID  int64
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{reviews: map[int64]domain.Review{}}
}

func (f *fakeReviewRepo) InsertReview(ctx context.Context, rv domain.Review) (domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rv.ID = f.nextID
	rv.CreatedAt = time.Now().UTC()
	f.reviews[rv.ID] = rv
	return rv, nil
}

func (f *fakeReviewRepo) DeleteReview(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reviews[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.reviews, id)
	return nil
}

func (f *fakeReviewRepo) GetReview(ctx context.Context, id int64) (domain.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rv, ok := f.reviews[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return rv, nil
}

func (f *fakeReviewRepo) HasReviewed(ctx context.Context, bookingID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rv := range f.reviews {
		if rv.BookingID == bookingID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReviewRepo) ListReviews(ctx context.Context, propertyID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Review
	for _, rv := range f.reviews {
		if rv.PropertyID == propertyID {
			out = append(out, rv)
		}
	}
	return domain.ReviewsPage{Items: out}, nil
}

// ---- tiny helpers ----

func ptr[T any](v T) *T { return &v }

func mkRange(y int, m time.Month, d1, d2 int) domain.DateRange {
	return domain.DateRange{CheckIn: domain.Day(y, m, d1), CheckOut: domain.Day(y, m, d2)}
}
