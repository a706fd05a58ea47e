// The sweeper soft-cancels pending holds older than the hold TTL, then
// invalidates cached availability and publishes a change event for every
// affected property. Run it on a schedule (cron or a systemd timer).
package main

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"stayfinder/internal/adapters/observability"
	redisad "stayfinder/internal/adapters/redis"
	"stayfinder/internal/app"
	"stayfinder/internal/shared"
	mysqlrepo "stayfinder/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Dur("pending_ttl", cfg.PendingTTL).
		Int("workers", cfg.Workers).
		Msg("sweeper starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	feed := redisad.NewFeed(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	avail := app.NewAvailabilityService(repo, cache, cfg.CacheTTL, cfg.PendingBlocks)

	cutoff := time.Now().UTC().Add(-cfg.PendingTTL)
	expired, err := repo.ExpirePending(ctx, cutoff)
	if err != nil {
		log.Fatal().Err(err).Msg("expiring pending holds failed")
	}
	log.Info().Int("expired", len(expired)).Msg("pending holds swept")

	// fan out per property: drop cached availability, then tell listeners
	properties := map[int64]struct{}{}
	for _, b := range expired {
		properties[b.PropertyID] = struct{}{}
	}

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup

	for id := range properties {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(propertyID int64) {
			defer wg.Done()
			defer sem.Release(1)

			avail.Invalidate(ctx, propertyID)
			if err := feed.PublishBookingChange(ctx, propertyID); err != nil {
				log.Warn().Int64("property", propertyID).Err(err).Msg("publish change failed")
				return
			}
			log.Info().Int64("property", propertyID).Msg("availability refreshed")
		}(id)
	}

	wg.Wait()
	log.Info().Msg("sweep completed")
}
