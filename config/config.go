package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Ticket configuration
	QRSealKey          string
	TicketGraceTTL     time.Duration // expiry after meetup end time
	TicketFallbackTTL  time.Duration // expiry when no end time exists
	BlindRevealWindow  time.Duration // identities revealed this long before start

	// Discovery configuration
	DefaultNearbyRadiusKm float64

	// Join serialization
	JoinLockEnabled bool
	JoinLockTTL     time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Tickets
		QRSealKey:         getEnv("QR_SEAL_KEY", "dev-only-qr-seal-key"),
		TicketGraceTTL:    getEnvAsDuration("TICKET_GRACE_TTL", "24h"),
		TicketFallbackTTL: getEnvAsDuration("TICKET_FALLBACK_TTL", "720h"),
		BlindRevealWindow: getEnvAsDuration("BLIND_REVEAL_WINDOW", "2h"),

		// Discovery
		DefaultNearbyRadiusKm: getEnvAsFloat("DEFAULT_NEARBY_RADIUS_KM", 10),

		// Join serialization
		JoinLockEnabled: getEnvAsBool("JOIN_LOCK_ENABLED", false),
		JoinLockTTL:     getEnvAsDuration("JOIN_LOCK_TTL", "5s"),

		// Rate limiting
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
