package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL     string
	RedisURL        string
	NatsURL         string
	KafkaBrokers    string
	GatewayBaseURL  string
	OTLPEndpoint    string
	Port            string
	WebhookCacheTTL time.Duration
}

func Load() *Config {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	gatewayBaseURL := os.Getenv("SIMPLEFI_BASE_URL")
	if gatewayBaseURL == "" {
		gatewayBaseURL = "https://api.simplefi.tech"
	}

	webhookCacheTTL := 2 * time.Second
	if raw := os.Getenv("WEBHOOK_CACHE_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			webhookCacheTTL = d
		}
	}

	return &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		NatsURL:         os.Getenv("NATS_URL"),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		GatewayBaseURL:  gatewayBaseURL,
		OTLPEndpoint:    os.Getenv("OTLP_ENDPOINT"),
		Port:            port,
		WebhookCacheTTL: webhookCacheTTL,
	}
}
