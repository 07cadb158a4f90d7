package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend kinds
const (
	BackendPostgres = "postgres"
	BackendREST     = "rest"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	LogLevel    string
	Backend     BackendConfig
	Auth        AuthConfig
	Redis       RedisConfig
	RabbitMQ    RabbitMQConfig
	Access      AccessConfig
	Readings    ReadingsConfig
	Telemetry   TelemetryConfig
	Validation  ValidationConfig
	Storage     StorageConfig
}

// BackendConfig selects and configures the tabular backend
type BackendConfig struct {
	Kind        string
	DatabaseURL string
	URL         string
	AnonKey     string
	Timeout     time.Duration
}

// AuthConfig holds session token verification settings
type AuthConfig struct {
	JWTSecret   string
	JWTAudience string
}

// RedisConfig holds the snapshot mirror settings
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	SnapshotTTL time.Duration
	// WorkspaceIdle is how long an unused workspace stays in memory
	WorkspaceIdle time.Duration
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL                    string
	AccessExchange         string
	AccessQueue            string
	AccessRoutingKey       string
	DLQQueue               string
	PrefetchCount          int
	AlertExchange          string
	UnboundScopeRoutingKey string
}

// AccessConfig holds grant widening and unbound role alert settings
type AccessConfig struct {
	Widening             string
	UnboundAlertInterval time.Duration
}

// ReadingsConfig holds reading fetch settings
type ReadingsConfig struct {
	BulkLimit   int
	FanoutLimit int
}

// TelemetryConfig holds reading health settings
type TelemetryConfig struct {
	LowBatteryThreshold float64
	StaleAfter          time.Duration
}

// ValidationConfig holds validation settings
type ValidationConfig struct {
	HistoryMaxDays int
}

// StorageConfig holds avatar storage settings
type StorageConfig struct {
	AvatarBucket string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "asset-tracker"),
		ServicePort: getEnvAsInt("SERVICE_PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Backend: BackendConfig{
			Kind:        strings.ToLower(getEnv("BACKEND_KIND", BackendPostgres)),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			URL:         strings.TrimRight(getEnv("BACKEND_URL", ""), "/"),
			AnonKey:     getEnv("BACKEND_ANON_KEY", ""),
			Timeout:     getEnvAsDuration("BACKEND_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("AUTH_JWT_SECRET", ""),
			JWTAudience: getEnv("AUTH_JWT_AUDIENCE", "authenticated"),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvAsInt("REDIS_DB", 0),
			KeyPrefix:     getEnv("REDIS_KEY_PREFIX", "asset-tracker"),
			SnapshotTTL:   getEnvAsDuration("SNAPSHOT_TTL", 5*time.Minute),
			WorkspaceIdle: getEnvAsDuration("WORKSPACE_IDLE", 30*time.Minute),
		},
		RabbitMQ: RabbitMQConfig{
			URL:                    getEnv("RABBITMQ_URL", ""),
			AccessExchange:         getEnv("RABBITMQ_ACCESS_EXCHANGE", "asset-tracker.access.exchange"),
			AccessQueue:            getEnv("RABBITMQ_ACCESS_QUEUE", "asset-tracker.access.queue"),
			AccessRoutingKey:       getEnv("RABBITMQ_ACCESS_ROUTING_KEY", "access.#"),
			DLQQueue:               getEnv("RABBITMQ_DLQ_QUEUE", "asset-tracker.access.dlq"),
			PrefetchCount:          getEnvAsInt("RABBITMQ_PREFETCH", 10),
			AlertExchange:          getEnv("RABBITMQ_ALERT_EXCHANGE", "asset-tracker.alerts.exchange"),
			UnboundScopeRoutingKey: getEnv("RABBITMQ_ALERT_ROUTING_KEY", "access.scope.unbound"),
		},
		Access: AccessConfig{
			Widening:             getEnv("ACCESS_WIDENING", "descendants"),
			UnboundAlertInterval: getEnvAsDuration("UNBOUND_ALERT_INTERVAL", time.Hour),
		},
		Readings: ReadingsConfig{
			BulkLimit:   getEnvAsInt("READINGS_BULK_LIMIT", 1000),
			FanoutLimit: getEnvAsInt("FANOUT_LIMIT", 16),
		},
		Telemetry: TelemetryConfig{
			LowBatteryThreshold: getEnvAsFloat("TELEMETRY_LOW_BATTERY", 20),
			StaleAfter:          getEnvAsDuration("TELEMETRY_STALE_AFTER", 24*time.Hour),
		},
		Validation: ValidationConfig{
			HistoryMaxDays: getEnvAsInt("HISTORY_MAX_DAYS", 31),
		},
		Storage: StorageConfig{
			AvatarBucket: getEnv("STORAGE_AVATAR_BUCKET", "avatars"),
		},
	}

	// Validate required fields
	switch cfg.Backend.Kind {
	case BackendPostgres:
		if cfg.Backend.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
		}
	case BackendREST:
		if cfg.Backend.URL == "" || cfg.Backend.AnonKey == "" {
			return nil, fmt.Errorf("BACKEND_URL and BACKEND_ANON_KEY are required when BACKEND_KIND=rest")
		}
	default:
		return nil, fmt.Errorf("BACKEND_KIND must be %q or %q, got %q", BackendPostgres, BackendREST, cfg.Backend.Kind)
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required but not set in environment variables")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
