package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Graph     GraphConfig
	LLM       LLMConfig
	Pipeline  PipelineConfig
	Scheduler SchedulerConfig
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

// RedisConfig holds Redis connection values.
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
}

// GraphConfig holds Microsoft Graph settings for mail fetching.
type GraphConfig struct {
	// ServiceToken is used for scheduled runs; manual triggers pass the
	// caller's own Graph token instead.
	ServiceToken   string
	Mailbox        string
	TimeoutSeconds int
	UseMock        bool
}

// LLMConfig configures the classifier backend.
type LLMConfig struct {
	APIKey         string
	Model          string
	MaxTokens      int
	Temperature    float64
	TimeoutSeconds int
	UseMock        bool
}

// PipelineConfig holds email-to-ticket decision policy.
type PipelineConfig struct {
	AutoCreateTickets   bool
	ConfidenceThreshold float64
	DefaultDaysBack     int
	DefaultMaxEmails    int
	MaxEmailsCap        int
	DefaultFolder       string
}

// SchedulerConfig controls the background trigger.
type SchedulerConfig struct {
	Enabled           bool
	EmailHourUTC      int
	EmailMinuteUTC    int
	HeartbeatInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	threshold, err := strconv.ParseFloat(getEnv("PIPELINE_CONFIDENCE_THRESHOLD", "0.7"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PIPELINE_CONFIDENCE_THRESHOLD: %w", err)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("PIPELINE_CONFIDENCE_THRESHOLD must be in [0,1], got %v", threshold)
	}

	temperature, err := strconv.ParseFloat(getEnv("LLM_TEMPERATURE", "0.1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_TEMPERATURE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "sapdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Graph: GraphConfig{
			ServiceToken:   os.Getenv("GRAPH_SERVICE_TOKEN"),
			Mailbox:        getEnv("GRAPH_MAILBOX", "me"),
			TimeoutSeconds: getEnvAsInt("GRAPH_TIMEOUT_SECONDS", 30),
			UseMock:        getEnvAsBool("GRAPH_USE_MOCK", false),
		},
		LLM: LLMConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 1024),
			Temperature:    temperature,
			TimeoutSeconds: getEnvAsInt("LLM_TIMEOUT_SECONDS", 30),
			UseMock:        getEnvAsBool("LLM_USE_MOCK", false),
		},
		Pipeline: PipelineConfig{
			AutoCreateTickets:   getEnvAsBool("PIPELINE_AUTO_CREATE_TICKETS", true),
			ConfidenceThreshold: threshold,
			DefaultDaysBack:     getEnvAsInt("PIPELINE_DEFAULT_DAYS_BACK", 1),
			DefaultMaxEmails:    getEnvAsInt("PIPELINE_DEFAULT_MAX_EMAILS", 100),
			MaxEmailsCap:        getEnvAsInt("PIPELINE_MAX_EMAILS_CAP", 500),
			DefaultFolder:       getEnv("PIPELINE_DEFAULT_FOLDER", "inbox"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           getEnvAsBool("SCHEDULER_ENABLED", true),
			EmailHourUTC:      getEnvAsInt("SCHEDULER_EMAIL_HOUR", 8),
			EmailMinuteUTC:    getEnvAsInt("SCHEDULER_EMAIL_MINUTE", 0),
			HeartbeatInterval: time.Duration(getEnvAsInt("SCHEDULER_HEARTBEAT_SECONDS", 300)) * time.Second,
		},
	}

	if cfg.Scheduler.EmailHourUTC < 0 || cfg.Scheduler.EmailHourUTC > 23 {
		return nil, fmt.Errorf("SCHEDULER_EMAIL_HOUR out of range: %d", cfg.Scheduler.EmailHourUTC)
	}
	if cfg.Scheduler.EmailMinuteUTC < 0 || cfg.Scheduler.EmailMinuteUTC > 59 {
		return nil, fmt.Errorf("SCHEDULER_EMAIL_MINUTE out of range: %d", cfg.Scheduler.EmailMinuteUTC)
	}

	return cfg, nil
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

// Timeout returns the Graph call timeout.
func (g GraphConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Timeout returns the per-classification deadline.
func (l LLMConfig) Timeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
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
