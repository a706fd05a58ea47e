package redisad

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"stayfinder/internal/domain"
)

// Feed pushes booking-change notifications over redis pub/sub, one channel
// per property, so open sessions can drop cached availability the moment a
// booking is written.
type Feed struct{ c *redis.Client }

func NewFeed(addr, pass string, db int) *Feed {
	return &Feed{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func channelFor(propertyID int64) string {
	return fmt.Sprintf("property:%d:bookings", propertyID)
}

func (f *Feed) PublishBookingChange(ctx context.Context, propertyID int64) error {
	ev := domain.BookingChange{PropertyID: propertyID, At: time.Now().UTC()}
	b, _ := json.Marshal(ev)
	return f.c.Publish(ctx, channelFor(propertyID), b).Err()
}

// Subscribe delivers change events until stop is called or ctx ends. Events
// that can't be decoded are dropped with a warning rather than closing the
// stream.
func (f *Feed) Subscribe(ctx context.Context, propertyID int64) (<-chan domain.BookingChange, func(), error) {
	ps := f.c.Subscribe(ctx, channelFor(propertyID))
	// force the subscription to be established before we return
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan domain.BookingChange, 8)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var ev domain.BookingChange
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("bad change event payload")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	stop := func() { _ = ps.Close() }
	return out, stop, nil
}
