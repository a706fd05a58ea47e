// internal/adapters/webhook/notifier.go
package webhook

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"stayfinder/internal/domain"
)

// Notifier POSTs booking events to a host-facing webhook endpoint. Delivery
// is best effort; callers must not fail a reservation on a notify error.
type Notifier struct {
	url    string
	secret string
	hc     *http.Client
	rl     *rate.Limiter
}

func New(url, secret string, rps int) (*Notifier, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Notifier{
		url:    url,
		secret: secret,
		hc:     &http.Client{Timeout: 20 * time.Second},
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

type bookingEvent struct {
	Event      string  `json:"event"`
	BookingID  int64   `json:"booking_id"`
	PropertyID int64   `json:"property_id"`
	HostID     *int64  `json:"host_id,omitempty"`
	Title      string  `json:"property_title"`
	CheckIn    string  `json:"check_in"`
	CheckOut   string  `json:"check_out"`
	Guests     int     `json:"guests"`
	TotalPrice float64 `json:"total_price"`
	Status     string  `json:"status"`
}

func (n *Notifier) NotifyBooking(ctx context.Context, b domain.Booking, p domain.Property) error {
	ev := bookingEvent{
		Event:      "booking.created",
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		HostID:     p.OwnerID,
		Title:      p.Title,
		CheckIn:    b.Dates.CheckIn.Format("2006-01-02"),
		CheckOut:   b.Dates.CheckOut.Format("2006-01-02"),
		Guests:     b.Guests,
		TotalPrice: b.TotalPrice,
		Status:     string(b.Status),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.post(ctx, body)
}

// post delivers one payload with client-side rate limiting and retries.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (n *Notifier) post(ctx context.Context, body []byte) error {
	if err := n.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "stayfinder/1.0")
		if n.secret != "" {
			req.Header.Set("X-Webhook-Secret", n.secret)
		}

		resp, err := n.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("webhook %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("webhook rejected with %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms, 800ms...),
// with up to +50% random jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
