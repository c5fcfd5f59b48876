package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Lock backends.
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// Assignment policies for direct status updates.
const (
	AssignmentPolicyNonBlank    = "non_blank"
	AssignmentPolicyLegacyBlank = "legacy_blank"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Downstream DownstreamConfig
	Requests   RequestsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values and the record lock backend.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	LockBackend    string
	LockTTLSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// DownstreamConfig holds collaborator endpoints and the outbound HTTP budget.
type DownstreamConfig struct {
	BackOfficeURL         string
	PaymentURL            string
	OtherServiceURL       string
	SourceService         string
	ConnectTimeoutSeconds int
	ReadTimeoutSeconds    int
}

// RequestsConfig tunes request lifecycle behavior.
type RequestsConfig struct {
	AssignmentPolicy string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "crm-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 60),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			LockBackend:    strings.ToLower(getEnv("LOCK_BACKEND", LockBackendLocal)),
			LockTTLSeconds: getEnvAsInt("LOCK_TTL_SECONDS", 60),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Downstream: DownstreamConfig{
			BackOfficeURL:         getEnv("BACKOFFICE_SERVICE_URL", "http://localhost:8081/api/backoffice/requests"),
			PaymentURL:            getEnv("PAYMENT_SERVICE_URL", "http://localhost:8082"),
			OtherServiceURL:       getEnv("OTHER_SERVICE_URL", "http://localhost:8083"),
			SourceService:         getEnv("CRM_SOURCE_SERVICE", "my-crm-service"),
			ConnectTimeoutSeconds: getEnvAsInt("DOWNSTREAM_CONNECT_TIMEOUT_SECONDS", 10),
			ReadTimeoutSeconds:    getEnvAsInt("DOWNSTREAM_READ_TIMEOUT_SECONDS", 30),
		},
		Requests: RequestsConfig{
			AssignmentPolicy: strings.ToLower(getEnv("CRM_ASSIGNMENT_POLICY", AssignmentPolicyNonBlank)),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Redis.LockBackend {
	case LockBackendLocal, LockBackendRedis:
	default:
		return fmt.Errorf("invalid LOCK_BACKEND %q", c.Redis.LockBackend)
	}
	switch c.Requests.AssignmentPolicy {
	case AssignmentPolicyNonBlank, AssignmentPolicyLegacyBlank:
	default:
		return fmt.Errorf("invalid CRM_ASSIGNMENT_POLICY %q", c.Requests.AssignmentPolicy)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ConnectTimeout bounds dialing a downstream service.
func (d DownstreamConfig) ConnectTimeout() time.Duration {
	return secondsOr(d.ConnectTimeoutSeconds, 10)
}

// ReadTimeout bounds waiting for a downstream response.
func (d DownstreamConfig) ReadTimeout() time.Duration {
	return secondsOr(d.ReadTimeoutSeconds, 30)
}

// ExternalActionsURL is the other microservice's trigger endpoint.
func (d DownstreamConfig) ExternalActionsURL() string {
	return strings.TrimRight(d.OtherServiceURL, "/") + "/api/external/actions"
}

// LockTTL returns how long a record lock may be held.
func (r RedisConfig) LockTTL() time.Duration {
	return secondsOr(r.LockTTLSeconds, 60)
}

func secondsOr(val, fallback int) time.Duration {
	if val <= 0 {
		val = fallback
	}
	return time.Duration(val) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
