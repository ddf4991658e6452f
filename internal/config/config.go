package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds application configuration from environment.
type Config struct {
	HTTPPort        string
	DatabaseURL     string
	DBPoolSize      int
	RedisURL        string
	RedisPoolSize   int
	CacheTTL        int // seconds
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaPartitions int
	CareConcurrency int // line items processed in parallel per purchase; 1 = sequential
	JWTSecret       string
	WebhookSecret   string
	CORSOrigins     []string
	LogLevel        string
}

var (
	cfg     *Config
	cfgOnce sync.Once
)

// Get returns the application config (loads once from env).
func Get() *Config {
	cfgOnce.Do(func() {
		cfg = Load()
	})
	return cfg
}

// Load reads the config from the environment without caching it.
func Load() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DBPoolSize:      getIntEnv("DB_POOL_SIZE", 20),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPoolSize:   getIntEnv("REDIS_POOL_SIZE", 50),
		CacheTTL:        getIntEnv("CACHE_TTL_SEC", 120),
		KafkaBrokers:    getSliceEnv("KAFKA_BROKERS", ""),
		KafkaTopic:      getEnv("KAFKA_PURCHASE_TOPIC", "purchase-events"),
		KafkaPartitions: getIntEnv("KAFKA_PARTITIONS", 4),
		CareConcurrency: getIntEnv("CARE_CONCURRENCY", 1),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		WebhookSecret:   os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		CORSOrigins:     getSliceEnv("CORS_ORIGINS", "*"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// KafkaEnabled reports whether any broker is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// getSliceEnv splits a comma separated value. An empty default yields nil.
func getSliceEnv(key, defaultVal string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = defaultVal
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
