package config

import (
	"os"
	"strings"
	"time"
)

// Server captures all process configuration. Optional backends degrade
// gracefully: an empty DSN selects the in-memory store, an empty Redis URL
// disables the identity index, empty brokers route notifications to the log.
type Server struct {
	Addr string

	PostgresDSN  string
	RedisURL     string
	KafkaBrokers []string
	KafkaTopic   string

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	RepairInterval  time.Duration
	ShutdownTimeout time.Duration
}

// Redis tuning applied on top of the parsed URL.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:            envOr("BUNKHOUSE_ADDR", ":8080"),
		PostgresDSN:     os.Getenv("BUNKHOUSE_POSTGRES_DSN"),
		RedisURL:        os.Getenv("BUNKHOUSE_REDIS_URL"),
		KafkaTopic:      envOr("BUNKHOUSE_KAFKA_TOPIC", "bunkhouse.notifications"),
		JWTSigningKey:   os.Getenv("BUNKHOUSE_JWT_SIGNING_KEY"),
		JWTIssuer:       envOr("BUNKHOUSE_JWT_ISSUER", "bunkhouse"),
		JWTAudience:     envOr("BUNKHOUSE_JWT_AUDIENCE", "bunkhouse-api"),
		RepairInterval:  durationOr("BUNKHOUSE_REPAIR_INTERVAL", 15*time.Minute),
		ShutdownTimeout: durationOr("BUNKHOUSE_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if cfg.JWTSigningKey == "" {
		// Development default; production deployments must override.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	if brokers := os.Getenv("BUNKHOUSE_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

// Redis returns the redis tuning with defaults applied.
func (s Server) Redis() RedisConfig {
	return RedisConfig{
		URL:          s.RedisURL,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
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
