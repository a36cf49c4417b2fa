package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Queue     QueueConfig
	App       AppConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// CacheConfig holds the Redis caching layer configuration
type CacheConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	TTL      time.Duration
}

// QueueConfig holds the message broker configuration. An empty URL means
// click events are tracked by the in-process dispatcher instead of being
// published to RabbitMQ.
type QueueConfig struct {
	URL       string
	QueueName string
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	BaseURL          string // Base URL for generating short links
	ShortCodeLen     int
	ShortCodeRetries int
	GuestLinkExpiry  time.Duration
	LookupTimeout    time.Duration
	ClickQueueSize   int
	ClickWorkers     int
	ClickMaxAttempts int
	RateLimit        string // limiter formatted rate, e.g. "100-M"
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	ServiceName  string
	Environment  string // "development", "staging", "production"
	OTLPEndpoint string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()
	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "hoplink"),
			Password: getEnv("DB_PASSWORD", "hoplink_secret"),
			DBName:   getEnv("DB_NAME", "hoplink"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Cache: CacheConfig{
			Host:     getEnv("RDB_HOST", "localhost"),
			Port:     getEnv("RDB_PORT", "6379"),
			User:     getEnv("RDB_USER", ""),
			Password: getEnv("RDB_PASSWORD", ""),
			TTL:      getEnvDuration("CACHE_TTL_MS", 5*time.Minute),
		},
		Queue: QueueConfig{
			URL:       getEnv("AMQP_URL", ""),
			QueueName: getEnv("CLICK_QUEUE_NAME", "click_events"),
		},
		App: AppConfig{
			BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
			ShortCodeLen:     getEnvInt("SHORT_CODE_LENGTH", 7),
			ShortCodeRetries: getEnvInt("SHORT_CODE_MAX_RETRIES", 5),
			GuestLinkExpiry:  7 * 24 * time.Hour,
			LookupTimeout:    getEnvDuration("LOOKUP_TIMEOUT_MS", 2*time.Second),
			ClickQueueSize:   getEnvInt("CLICK_QUEUE_SIZE", 1024),
			ClickWorkers:     getEnvInt("CLICK_WORKERS", 4),
			ClickMaxAttempts: getEnvInt("CLICK_MAX_ATTEMPTS", 3),
			RateLimit:        getEnv("RATE_LIMIT", "100-M"),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("SERVICE_NAME", "hoplink-gateway"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
		},
	}, nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// ConnectionString returns the Redis connection string
func (c *CacheConfig) ConnectionString() string {
	return fmt.Sprintf("redis://%s:%s@%s:%s/0", c.User, c.Password, c.Host, c.Port)
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
