package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends for the credential store.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Logger        LoggerConfig
	Auth          AuthConfig
	Presence      PresenceConfig
	Storage       StorageConfig
	CORS          CORSConfig
	LoginThrottle LoginThrottleConfig
	Telemetry     TelemetryConfig
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
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	MinPasswordLength     int
}

// PresenceConfig tunes the online-user tracker.
type PresenceConfig struct {
	StaleAfterSeconds    int
	SweepIntervalSeconds int
	OnlineOnSignup       bool
}

// StorageConfig selects the credential store backing.
type StorageConfig struct {
	Backend string
}

// CORSConfig controls the allowed-origin policy.
type CORSConfig struct {
	AllowOrigins     string
	AllowCredentials bool
}

// LoginThrottleConfig controls the Redis-backed failed-login limiter.
type LoginThrottleConfig struct {
	Enabled       bool
	MaxAttempts   int
	WindowSeconds int
}

// TelemetryConfig configures metric export.
type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	dsn := os.Getenv("POSTGRES_DSN")
	defaultBackend := StorageMemory
	if dsn != "" {
		defaultBackend = StoragePostgres
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "presence-auth-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "5000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            dsn,
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             os.Getenv("AUTH_JWT_SECRET"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 10),
			MinPasswordLength:     getEnvAsInt("AUTH_MIN_PASSWORD_LENGTH", 6),
		},
		Presence: PresenceConfig{
			StaleAfterSeconds:    getEnvAsInt("PRESENCE_STALE_AFTER_SECONDS", 300),
			SweepIntervalSeconds: getEnvAsInt("PRESENCE_SWEEP_INTERVAL_SECONDS", 60),
			OnlineOnSignup:       getEnvAsBool("PRESENCE_ONLINE_ON_SIGNUP", false),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", defaultBackend)),
		},
		CORS: CORSConfig{
			AllowOrigins:     getEnv("CORS_ALLOW_ORIGINS", "*"),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
		},
		LoginThrottle: LoginThrottleConfig{
			Enabled:       getEnvAsBool("LOGIN_THROTTLE_ENABLED", false),
			MaxAttempts:   getEnvAsInt("LOGIN_THROTTLE_MAX_ATTEMPTS", 5),
			WindowSeconds: getEnvAsInt("LOGIN_THROTTLE_WINDOW_SECONDS", 900),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "presence-auth-service"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	if c.Auth.MinPasswordLength <= 0 {
		return errors.New("AUTH_MIN_PASSWORD_LENGTH must be positive")
	}
	if c.Presence.StaleAfterSeconds <= 0 || c.Presence.SweepIntervalSeconds <= 0 {
		return errors.New("presence stale-after and sweep interval must be positive")
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("STORAGE_BACKEND=postgres requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.CORS.AllowCredentials && strings.Contains(c.CORS.AllowOrigins, "*") {
		return errors.New("CORS_ALLOW_CREDENTIALS cannot be combined with a wildcard origin")
	}
	if c.LoginThrottle.Enabled {
		if c.Redis.Addr == "" {
			return errors.New("LOGIN_THROTTLE_ENABLED requires REDIS_ADDR")
		}
		if c.LoginThrottle.MaxAttempts <= 0 || c.LoginThrottle.WindowSeconds <= 0 {
			return errors.New("login throttle attempts and window must be positive")
		}
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

// AccessTokenTTL returns the token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// StaleAfter returns the presence staleness threshold.
func (p PresenceConfig) StaleAfter() time.Duration {
	return time.Duration(p.StaleAfterSeconds) * time.Second
}

// SweepInterval returns the presence sweep period.
func (p PresenceConfig) SweepInterval() time.Duration {
	return time.Duration(p.SweepIntervalSeconds) * time.Second
}

// Window returns the throttle counting window.
func (l LoginThrottleConfig) Window() time.Duration {
	return time.Duration(l.WindowSeconds) * time.Second
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
