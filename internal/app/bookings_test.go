package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stayfinder/internal/app"
	"stayfinder/internal/domain"
)

func futureDay(daysAhead int) time.Time {
	return domain.Midnight(time.Now().UTC()).AddDate(0, 0, daysAhead)
}

func testProperty() domain.Property {
	return domain.Property{
		ID:            7,
		OwnerID:       ptr(int64(99)),
		Title:         "Seaside loft",
		Location:      "Lisbon",
		Type:          "Apartment",
		PricePerNight: 120,
		MaxGuests:     4,
	}
}

func newBookingService(repo *fakeBookingRepo, feed *fakeFeed, notifier domain.HostNotifier, status domain.BookingStatus) *app.BookingService {
	props := newFakePropertyRepo(testProperty())
	avail := app.NewAvailabilityService(repo, newFakeCache(), time.Minute, false)
	return app.NewBookingService(repo, props, avail, feed, notifier, status)
}

func TestReserve_Succeeds(t *testing.T) {
	repo := newFakeBookingRepo()
	feed := &fakeFeed{}
	notifier := &fakeNotifier{}
	svc := newBookingService(repo, feed, notifier, domain.StatusConfirmed)

	b, err := svc.Reserve(context.Background(), domain.Session{UserID: 5}, app.ReserveRequest{
		PropertyID: 7,
		CheckIn:    futureDay(10),
		CheckOut:   futureDay(13),
		Guests:     2,
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if b.Status != domain.StatusConfirmed {
		t.Fatalf("status = %s", b.Status)
	}
	if b.TotalPrice != 360 { // 3 nights × 120
		t.Fatalf("total = %v", b.TotalPrice)
	}
	if len(feed.published) != 1 || feed.published[0] != 7 {
		t.Fatalf("expected one change event for property 7, got %v", feed.published)
	}
	if len(notifier.notified) != 1 {
		t.Fatalf("host not notified: %v", notifier.notified)
	}
}

func TestReserve_PendingPolicy(t *testing.T) {
	repo := newFakeBookingRepo()
	svc := newBookingService(repo, &fakeFeed{}, nil, domain.StatusPending)

	b, err := svc.Reserve(context.Background(), domain.Session{UserID: 5}, app.ReserveRequest{
		PropertyID: 7, CheckIn: futureDay(10), CheckOut: futureDay(12), Guests: 1,
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if b.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending", b.Status)
	}
}

func TestReserve_RejectsSameDayCheckIn(t *testing.T) {
	repo := newFakeBookingRepo()
	svc := newBookingService(repo, &fakeFeed{}, nil, domain.StatusConfirmed)

	_, err := svc.Reserve(context.Background(), domain.Session{UserID: 5}, app.ReserveRequest{
		PropertyID: 7, CheckIn: futureDay(0), CheckOut: futureDay(2), Guests: 1,
	})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if repo.writes != 0 {
		t.Fatalf("validation failure must not write, wrote %d", repo.writes)
	}
}

func TestReserve_RejectsTooManyGuests(t *testing.T) {
	repo := newFakeBookingRepo()
	svc := newBookingService(repo, &fakeFeed{}, nil, domain.StatusConfirmed)

	_, err := svc.Reserve(context.Background(), domain.Session{UserID: 5}, app.ReserveRequest{
		PropertyID: 7, CheckIn: futureDay(10), CheckOut: futureDay(12), Guests: 5, // maxGuests is 4
	})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if repo.writes != 0 {
		t.Fatalf("validation failure must not write, wrote %d", repo.writes)
	}
}

func TestReserve_ConflictCarriesRanges(t *testing.T) {
	repo := newFakeBookingRepo()
	taken := domain.DateRange{CheckIn: futureDay(10), CheckOut: futureDay(14)}
	repo.seed(domain.Booking{PropertyID: 7, UserID: 2, Dates: taken, Status: domain.StatusConfirmed})
	svc := newBookingService(repo, &fakeFeed{}, nil, domain.StatusConfirmed)

	_, err := svc.Reserve(context.Background(), domain.Session{UserID: 5}, app.ReserveRequest{
		PropertyID: 7, CheckIn: futureDay(12), CheckOut: futureDay(16), Guests: 1,
	})
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want ConflictError, got %v", err)
	}
	if len(conflict.Conflicts) != 1 || !conflict.Conflicts[0].CheckIn.Equal(taken.CheckIn) {
		t.Fatalf("conflict ranges: %+v", conflict.Conflicts)
	}
	if repo.writes != 0 {
		t.Fatalf("conflict must not write, wrote %d", repo.writes)
	}
}

// Two clients race for the same range; exactly one insert wins.
func TestReserve_ConcurrentOnlyOneWins(t *testing.T) {
	repo := newFakeBookingRepo()
	svc := newBookingService(repo, &fakeFeed{}, nil, domain.StatusConfirmed)

	req := app.ReserveRequest{PropertyID: 7, CheckIn: futureDay(20), CheckOut: futureDay(22), Guests: 1}
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(context.Background(), domain.Session{UserID: int64(i + 1)}, req)
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		var conflict *domain.ConflictError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &conflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("want exactly one success and one conflict, got ok=%d conflicts=%d", ok, conflicts)
	}
	if repo.writes != 1 {
		t.Fatalf("writes = %d, want 1", repo.writes)
	}
}

func TestCancel(t *testing.T) {
	repo := newFakeBookingRepo()
	feed := &fakeFeed{}
	svc := newBookingService(repo, feed, nil, domain.StatusConfirmed)
	b := repo.seed(domain.Booking{PropertyID: 7, UserID: 5, Dates: mkRange(2024, 6, 1, 5), Status: domain.StatusConfirmed})
	ctx := context.Background()

	if err := svc.Cancel(ctx, domain.Session{UserID: 8}, b.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("stranger cancel: want ErrForbidden, got %v", err)
	}
	if err := svc.Cancel(ctx, domain.Session{UserID: 5}, b.ID); err != nil {
		t.Fatalf("guest cancel: %v", err)
	}
	got, _ := repo.GetBooking(ctx, b.ID)
	if got.Status != domain.StatusCanceled {
		t.Fatalf("status = %s", got.Status)
	}
	if len(feed.published) != 1 {
		t.Fatalf("cancel should publish a change event, got %v", feed.published)
	}

	// soft-cancel is idempotent
	if err := svc.Cancel(ctx, domain.Session{UserID: 5}, b.ID); err != nil {
		t.Fatalf("second cancel: %v", err)
	}

	// the host of the property may cancel too
	b2 := repo.seed(domain.Booking{PropertyID: 7, UserID: 5, Dates: mkRange(2024, 7, 1, 5), Status: domain.StatusConfirmed})
	if err := svc.Cancel(ctx, domain.Session{UserID: 99, Role: domain.RoleHost}, b2.ID); err != nil {
		t.Fatalf("host cancel: %v", err)
	}
}

func TestListForUser_DerivesCompleted(t *testing.T) {
	repo := newFakeBookingRepo()
	svc := newBookingService(repo, &fakeFeed{}, nil, domain.StatusConfirmed)
	past := repo.seed(domain.Booking{PropertyID: 7, UserID: 5, Dates: mkRange(2020, 6, 1, 5), Status: domain.StatusConfirmed})
	future := repo.seed(domain.Booking{PropertyID: 7, UserID: 5,
		Dates: domain.DateRange{CheckIn: futureDay(10), CheckOut: futureDay(12)}, Status: domain.StatusConfirmed})

	views, err := svc.ListForUser(context.Background(), domain.Session{UserID: 5})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	byID := map[int64]bool{}
	for _, v := range views {
		byID[v.ID] = v.Completed
	}
	if !byID[past.ID] {
		t.Fatal("past confirmed stay should read as completed")
	}
	if byID[future.ID] {
		t.Fatal("future stay must not read as completed")
	}
}

func TestListForHost(t *testing.T) {
	repo := newFakeBookingRepo()
	repo.owners[7] = 99
	svc := newBookingService(repo, &fakeFeed{}, nil, domain.StatusConfirmed)
	repo.seed(domain.Booking{PropertyID: 7, UserID: 5, Dates: mkRange(2024, 6, 1, 5), Status: domain.StatusConfirmed})

	views, err := svc.ListForHost(context.Background(), domain.Session{UserID: 99, Role: domain.RoleHost})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("host should see the booking, got %d", len(views))
	}
}
