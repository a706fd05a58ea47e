package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	server "stayfinder/internal/adapters/http_server"
	"stayfinder/internal/adapters/observability"
	redisad "stayfinder/internal/adapters/redis"
	"stayfinder/internal/adapters/webhook"
	"stayfinder/internal/app"
	"stayfinder/internal/domain"
	"stayfinder/internal/shared"
	mysqlrepo "stayfinder/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	feed := redisad.NewFeed(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	var notifier domain.HostNotifier
	if cfg.WebhookURL != "" {
		n, err := webhook.New(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize host webhook")
		}
		notifier = n
	}

	avail := app.NewAvailabilityService(repo, cache, cfg.CacheTTL, cfg.PendingBlocks)
	bookings := app.NewBookingService(repo, repo, avail, feed, notifier, domain.BookingStatus(cfg.DefaultStatus))
	catalog := app.NewCatalogService(repo, cache, cfg.CacheTTL)
	reviews := app.NewReviewService(repo, repo, cache, cfg.CacheTTL)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Catalog:      catalog,
		Avail:        avail,
		Bookings:     bookings,
		Reviews:      reviews,
		Profiles:     repo,
		Auth:         server.Auth(cfg.JWTSecret),
		ReserveLimit: rate.NewLimiter(rate.Limit(cfg.ReserveRPS), cfg.ReserveBurst),
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
