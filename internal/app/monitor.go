package app

import (
	"context"
	"sync"
	"time"

	"stayfinder/internal/domain"
)

// AvailabilityChecker is the slice of AvailabilityService the monitor needs.
type AvailabilityChecker interface {
	Check(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) (domain.AvailabilityResult, error)
	Invalidate(ctx context.Context, propertyID int64)
}

// AvailabilityMonitor models the reactive date-picker flow: every new date
// selection supersedes the previous in-flight check, so a slow older
// response can never overwrite a newer selection's status. Change-feed
// events invalidate and re-run the latest query.
type AvailabilityMonitor struct {
	checker AvailabilityChecker
	updates chan Update

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	last   *availabilityQuery
}

type availabilityQuery struct {
	propertyID int64
	checkIn    time.Time
	checkOut   time.Time
}

// Update carries one check outcome. Gen identifies the submission it
// answers; only the highest generation ever reaches the channel.
type Update struct {
	Gen        uint64
	PropertyID int64
	Result     domain.AvailabilityResult
	Err        error
}

func NewAvailabilityMonitor(c AvailabilityChecker, buffer int) *AvailabilityMonitor {
	if buffer < 1 {
		buffer = 1
	}
	return &AvailabilityMonitor{checker: c, updates: make(chan Update, buffer)}
}

func (m *AvailabilityMonitor) Updates() <-chan Update { return m.updates }

// Submit starts a check for the given selection, canceling whatever check
// was still in flight. Returns the generation token assigned to it.
func (m *AvailabilityMonitor) Submit(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) uint64 {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.gen++
	gen := m.gen
	cctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.last = &availabilityQuery{propertyID: propertyID, checkIn: checkIn, checkOut: checkOut}
	m.mu.Unlock()

	go m.run(cctx, gen, propertyID, checkIn, checkOut)
	return gen
}

func (m *AvailabilityMonitor) run(ctx context.Context, gen uint64, propertyID int64, checkIn, checkOut time.Time) {
	res, err := m.checker.Check(ctx, propertyID, checkIn, checkOut)

	m.mu.Lock()
	stale := gen != m.gen
	m.mu.Unlock()
	if stale || ctx.Err() != nil {
		return // superseded; drop the result
	}

	u := Update{Gen: gen, PropertyID: propertyID, Result: res, Err: err}
	select {
	case m.updates <- u:
	default:
		// consumer lagging: evict the oldest queued update, keep the newest
		select {
		case <-m.updates:
		default:
		}
		select {
		case m.updates <- u:
		default:
		}
	}
}

// WatchChanges re-runs the latest selection whenever the store reports a
// booking change on the property, after dropping cached availability.
func (m *AvailabilityMonitor) WatchChanges(ctx context.Context, feed domain.ChangeFeed, propertyID int64) error {
	ch, stop, err := feed.Subscribe(ctx, propertyID)
	if err != nil {
		return err
	}
	go func() {
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				m.checker.Invalidate(ctx, ev.PropertyID)
				m.mu.Lock()
				q := m.last
				m.mu.Unlock()
				if q != nil && q.propertyID == ev.PropertyID {
					m.Submit(ctx, q.propertyID, q.checkIn, q.checkOut)
				}
			}
		}
	}()
	return nil
}

// Close cancels any in-flight check.
func (m *AvailabilityMonitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}
