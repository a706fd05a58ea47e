package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	JWTSecret string

	WebhookURL    string
	WebhookSecret string
	WebhookRPS    int

	Workers  int
	CacheTTL time.Duration

	// DefaultStatus is the status a fresh reservation is written with;
	// "pending" enables the hold-then-confirm flow, anything else means
	// instant confirmation.
	DefaultStatus string
	// PendingBlocks controls whether pending holds count against
	// availability reads. Writes always treat them as blocking.
	PendingBlocks bool
	PendingTTL    time.Duration

	ReserveRPS   int
	ReserveBurst int
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	abool := func(k string, def bool) bool {
		if v := os.Getenv(k); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/stayfinder?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		JWTSecret: env("JWT_SECRET", ""),

		WebhookURL:    env("HOST_WEBHOOK_URL", ""),
		WebhookSecret: env("HOST_WEBHOOK_SECRET", ""),
		WebhookRPS:    atoi("HOST_WEBHOOK_RPS", 5),

		Workers:  atoi("SWEEP_WORKERS", 8),
		CacheTTL: time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,

		DefaultStatus: env("BOOKING_DEFAULT_STATUS", "confirmed"),
		PendingBlocks: abool("PENDING_BLOCKS_READS", true),
		PendingTTL:    time.Duration(atoi("PENDING_TTL_SECONDS", 1800)) * time.Second,

		ReserveRPS:   atoi("RESERVE_RPS", 10),
		ReserveBurst: atoi("RESERVE_BURST", 20),
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
