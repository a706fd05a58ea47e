package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"stayfinder/internal/app"
	"stayfinder/internal/domain"
)

// stubChecker blocks its first call until released so a test can force an
// older request to finish after a newer one.
type stubChecker struct {
	mu          sync.Mutex
	calls       int
	invalidated []int64
	firstGate   chan struct{}
}

func newStubChecker() *stubChecker { return &stubChecker{firstGate: make(chan struct{})} }

func (c *stubChecker) Check(ctx context.Context, propertyID int64, in, out time.Time) (domain.AvailabilityResult, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.mu.Unlock()
	if n == 1 {
		select {
		case <-ctx.Done():
			return domain.AvailabilityResult{}, ctx.Err()
		case <-c.firstGate:
		}
	}
	return domain.AvailabilityResult{Available: true, CheckedAt: time.Now().UTC()}, nil
}

func (c *stubChecker) Invalidate(ctx context.Context, propertyID int64) {
	c.mu.Lock()
	c.invalidated = append(c.invalidated, propertyID)
	c.mu.Unlock()
}

func TestMonitor_SupersededResultIsDropped(t *testing.T) {
	checker := newStubChecker()
	m := app.NewAvailabilityMonitor(checker, 4)
	defer m.Close()
	ctx := context.Background()

	m.Submit(ctx, 7, domain.Day(2024, 6, 1), domain.Day(2024, 6, 3)) // will hang
	gen2 := m.Submit(ctx, 7, domain.Day(2024, 6, 5), domain.Day(2024, 6, 8))
	close(checker.firstGate) // let the stale call finish late

	select {
	case u := <-m.Updates():
		if u.Gen != gen2 {
			t.Fatalf("got update for generation %d, want %d", u.Gen, gen2)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}

	// the superseded result must never surface
	select {
	case u := <-m.Updates():
		t.Fatalf("unexpected second update: %+v", u)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMonitor_ChangeFeedRerunsLatestQuery(t *testing.T) {
	checker := newStubChecker()
	close(checker.firstGate) // no blocking in this test
	feed := &fakeFeed{}
	m := app.NewAvailabilityMonitor(checker, 4)
	defer m.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.WatchChanges(ctx, feed, 7); err != nil {
		t.Fatalf("watch: %v", err)
	}
	m.Submit(ctx, 7, domain.Day(2024, 6, 1), domain.Day(2024, 6, 3))
	<-m.Updates()

	// a booking change re-runs the latest selection
	_ = feed.PublishBookingChange(ctx, 7)
	select {
	case u := <-m.Updates():
		if u.PropertyID != 7 {
			t.Fatalf("update for property %d", u.PropertyID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no re-run after change event")
	}

	checker.mu.Lock()
	invalidated := len(checker.invalidated)
	checker.mu.Unlock()
	if invalidated == 0 {
		t.Fatal("change event should drop cached availability")
	}
}
