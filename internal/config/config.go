package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration for the API service.
type Config struct {
	HTTP        HTTPConfig
	Storage     StorageConfig
	Database    DatabaseConfig
	Stripe      StripeConfig
	Kafka       KafkaConfig
	Redis       RedisConfig
	Telemetry   TelemetryConfig
	Service     ServiceConfig
	AdminAPIKey string
}

type HTTPConfig struct {
	Port          int
	MetricsPath   string
	ShutdownGrace int
}

// StorageConfig selects the persistence backend: "memory" or "postgres".
type StorageConfig struct {
	Backend string
}

type DatabaseConfig struct {
	URL            string
	AutoMigrate    bool
	MigrationsPath string
}

// StripeConfig holds payment provider credentials. An empty SecretKey puts
// the service in demo mode: orders are recorded but no checkout is created.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	Currency      string
	Timeout       time.Duration
}

type KafkaConfig struct {
	Brokers []string
}

// RedisConfig is optional; when Addr is set the processed-events ledger
// lives in Redis instead of the primary store.
type RedisConfig struct {
	Addr string
	TTL  time.Duration
}

type TelemetryConfig struct {
	LogLevel      string
	OTelEndpoint  string
	EnableTracing bool
	EnableMetrics bool
	SampleRate    float64
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

const (
	defaultHTTPPort       = 8080
	defaultMetricsPath    = "/metrics"
	defaultShutdownGrace  = 15
	defaultStorageBackend = "memory"
	defaultMigrationsPath = "migrations"
	defaultAutoMigrate    = true
	defaultBaseURL        = "http://localhost:8080"
	defaultCurrency       = "sar"
	defaultStripeTimeout  = 10 * time.Second
	defaultRedisTTL       = 72 * time.Hour
	defaultServiceName    = "marketplace-api"
	defaultServiceVersion = "0.1.0"
	defaultEnvironment    = "development"
	defaultLogLevel       = "info"
	defaultOTelSampleRate = 1.0
)

// Load reads configuration from the environment, applying defaults when
// needed. A .env file is honored if present but never required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	httpCfg, err := loadHTTPConfig()
	if err != nil {
		return nil, fmt.Errorf("loading HTTP config: %w", err)
	}

	storageCfg, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	stripeCfg, err := loadStripeConfig()
	if err != nil {
		return nil, fmt.Errorf("loading stripe config: %w", err)
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		return nil, fmt.Errorf("loading redis config: %w", err)
	}

	telCfg, err := loadTelemetryConfig()
	if err != nil {
		return nil, fmt.Errorf("loading telemetry config: %w", err)
	}

	return &Config{
		HTTP:        httpCfg,
		Storage:     storageCfg,
		Database:    loadDatabaseConfig(),
		Stripe:      stripeCfg,
		Kafka:       loadKafkaConfig(),
		Redis:       redisCfg,
		Telemetry:   telCfg,
		Service:     loadServiceConfig(),
		AdminAPIKey: os.Getenv("ADMIN_API_KEY"),
	}, nil
}

func loadHTTPConfig() (HTTPConfig, error) {
	port := defaultHTTPPort
	if value, ok := os.LookupEnv("API_HTTP_PORT"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return HTTPConfig{}, fmt.Errorf("invalid API_HTTP_PORT: %w", err)
		}
		port = parsed
	}

	shutdownGrace := defaultShutdownGrace
	if value, ok := os.LookupEnv("API_SHUTDOWN_GRACE_SECONDS"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return HTTPConfig{}, fmt.Errorf("invalid API_SHUTDOWN_GRACE_SECONDS: %w", err)
		}
		shutdownGrace = parsed
	}

	metricsPath := getEnvOrDefault("API_METRICS_PATH", defaultMetricsPath)

	return HTTPConfig{
		Port:          port,
		MetricsPath:   metricsPath,
		ShutdownGrace: shutdownGrace,
	}, nil
}

func loadStorageConfig() (StorageConfig, error) {
	backend := getEnvOrDefault("STORAGE_BACKEND", defaultStorageBackend)
	switch backend {
	case "memory", "postgres":
		return StorageConfig{Backend: backend}, nil
	default:
		return StorageConfig{}, fmt.Errorf("invalid STORAGE_BACKEND %q: must be memory or postgres", backend)
	}
}

func loadDatabaseConfig() DatabaseConfig {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = buildDatabaseURL()
	}

	autoMigrate := defaultAutoMigrate
	if value, ok := os.LookupEnv("AUTO_MIGRATE"); ok {
		autoMigrate = value == "true"
	}

	migrationsPath := getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath)

	return DatabaseConfig{
		URL:            databaseURL,
		AutoMigrate:    autoMigrate,
		MigrationsPath: migrationsPath,
	}
}

func loadStripeConfig() (StripeConfig, error) {
	timeout := defaultStripeTimeout
	if value, ok := os.LookupEnv("STRIPE_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return StripeConfig{}, fmt.Errorf("invalid STRIPE_TIMEOUT: %w", err)
		}
		timeout = parsed
	}

	return StripeConfig{
		SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		BaseURL:       getEnvOrDefault("PUBLIC_BASE_URL", defaultBaseURL),
		Currency:      getEnvOrDefault("STRIPE_CURRENCY", defaultCurrency),
		Timeout:       timeout,
	}, nil
}

func loadKafkaConfig() KafkaConfig {
	var brokers []string
	if value, ok := os.LookupEnv("KAFKA_BROKERS"); ok && value != "" {
		brokers = strings.Split(value, ",")
	}

	return KafkaConfig{
		Brokers: brokers,
	}
}

func loadRedisConfig() (RedisConfig, error) {
	ttl := defaultRedisTTL
	if value, ok := os.LookupEnv("REDIS_EVENT_TTL"); ok {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return RedisConfig{}, fmt.Errorf("invalid REDIS_EVENT_TTL: %w", err)
		}
		ttl = parsed
	}

	return RedisConfig{
		Addr: os.Getenv("REDIS_ADDR"),
		TTL:  ttl,
	}, nil
}

func loadTelemetryConfig() (TelemetryConfig, error) {
	logLevel := getEnvOrDefault("LOG_LEVEL", defaultLogLevel)
	otelEndpoint := getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	enableTracing := getBoolEnv("OTEL_ENABLE_TRACING", true)
	enableMetrics := getBoolEnv("OTEL_ENABLE_METRICS", true)

	sampleRate := defaultOTelSampleRate
	if value, ok := os.LookupEnv("OTEL_SAMPLE_RATE"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return TelemetryConfig{}, fmt.Errorf("invalid OTEL_SAMPLE_RATE: %w", err)
		}
		sampleRate = parsed
	}

	return TelemetryConfig{
		LogLevel:      logLevel,
		OTelEndpoint:  otelEndpoint,
		EnableTracing: enableTracing,
		EnableMetrics: enableMetrics,
		SampleRate:    sampleRate,
	}, nil
}

func loadServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:        getEnvOrDefault("API_SERVICE_NAME", defaultServiceName),
		Version:     getEnvOrDefault("SERVICE_VERSION", defaultServiceVersion),
		Environment: getEnvOrDefault("ENVIRONMENT", defaultEnvironment),
	}
}

func buildDatabaseURL() string {
	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := getEnvOrDefault("DB_PASSWORD", "postgres")
	dbName := getEnvOrDefault("DB_NAME", "marketplace")
	sslMode := getEnvOrDefault("DB_SSLMODE", "disable")

	maxConns := getEnvOrDefault("DB_MAX_CONNS", "25")
	minConns := getEnvOrDefault("DB_MIN_CONNS", "5")
	maxLifetime := getEnvOrDefault("DB_MAX_CONN_LIFETIME", "5m")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%s&pool_min_conns=%s&pool_max_conn_lifetime=%s",
		user, password, host, port, dbName, sslMode, maxConns, minConns, maxLifetime,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return value == "true"
	}
	return defaultValue
}
