package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "parapet/pkg/platform/strings"
)

// Config aggregates everything the server needs so main stays lean.
type Config struct {
	Server   Server
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Review   ReviewConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	LogLevel      string
	JWTSigningKey string
}

// PostgresConfig holds connection settings for the register database.
// An empty DSN selects the in-memory stores.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds connection settings for the review inbox cache.
// An empty URL means Redis is not configured and caching is disabled.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds broker settings for the audit pipeline.
// No brokers means the outbox relay and consumers stay disabled.
type KafkaConfig struct {
	Brokers []string
	GroupID string
}

// Enabled reports whether Kafka publishing is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// ReviewConfig bounds the review inbox aggregation.
type ReviewConfig struct {
	PageSize int
	MaxPages int
	CacheTTL time.Duration
}

// FromEnv builds the full configuration from environment variables.
func FromEnv() Config {
	jwtSigningKey := os.Getenv("PARAPET_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Config{
		Server: Server{
			Addr:          envString("PARAPET_ADDR", ":8080"),
			LogLevel:      envString("PARAPET_LOG_LEVEL", "info"),
			JWTSigningKey: jwtSigningKey,
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("PARAPET_DB_DSN"),
			MaxOpenConns:    envInt("PARAPET_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("PARAPET_DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("PARAPET_DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("PARAPET_REDIS_URL"),
			PoolSize:     envInt("PARAPET_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("PARAPET_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("PARAPET_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("PARAPET_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("PARAPET_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("PARAPET_KAFKA_BROKERS"),
			GroupID: envString("PARAPET_KAFKA_GROUP_ID", "parapet-audit"),
		},
		Review: ReviewConfig{
			PageSize: envInt("PARAPET_REVIEW_PAGE_SIZE", 100),
			MaxPages: envInt("PARAPET_REVIEW_MAX_PAGES", 50),
			CacheTTL: envDuration("PARAPET_REVIEW_CACHE_TTL", 15*time.Second),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	out := pstrings.DedupeAndTrim(strings.Split(v, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
