// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database DatabaseConfig `json:"database" envPrefix:"DB_"`
	Server   ServerConfig   `json:"server" envPrefix:"SERVER_"`
	SMS      SMSConfig      `json:"sms" envPrefix:"SMS_"`
	Logging  LoggingConfig  `json:"logging" envPrefix:"LOG_"`
	Metrics  MetricsConfig  `json:"metrics" envPrefix:"METRICS_"`
	Cache    CacheConfig    `json:"cache" envPrefix:"CACHE_"`
	Queue    QueueConfig    `json:"queue" envPrefix:"QUEUE_"`
	Dispatch DispatchConfig `json:"dispatch" envPrefix:"DISPATCH_"`
	Storage  StorageConfig  `json:"storage" envPrefix:"STORAGE_"`
	Webhook  WebhookConfig  `json:"webhook" envPrefix:"WEBHOOK_"`
}

type DatabaseConfig struct {
	Host            string        `json:"host" env:"HOST" envDefault:"localhost"`
	Port            int           `json:"port" env:"PORT" envDefault:"5432"`
	Name            string        `json:"name" env:"NAME" envDefault:"smsflow"`
	User            string        `json:"user" env:"USER" envDefault:"postgres"`
	Password        string        `json:"-" env:"PASSWORD"`
	SSLMode         string        `json:"ssl_mode" env:"SSL_MODE" envDefault:"disable"`
	MaxOpenConns    int           `json:"max_open_conns" env:"MAX_OPEN_CONNS" envDefault:"50"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME" envDefault:"15m"`
	SlowQueryTime   time.Duration `json:"slow_query_time" env:"SLOW_QUERY_TIME" envDefault:"500ms"`
}

// DSN returns the key/value connection string used by gorm
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// URL returns the postgres:// form used by golang-migrate
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Host            string        `json:"host" env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `json:"port" env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `json:"read_timeout" env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `json:"write_timeout" env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `json:"idle_timeout" env:"IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	BodyLimit       int           `json:"body_limit" env:"BODY_LIMIT" envDefault:"12582912"`
	AllowedOrigins  []string      `json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

type SMSConfig struct {
	Provider     string        `json:"provider" env:"PROVIDER" envDefault:"mock"` // mock, twilio
	BaseURL      string        `json:"base_url" env:"BASE_URL" envDefault:"https://api.twilio.com"`
	AccountSID   string        `json:"account_sid" env:"ACCOUNT_SID"`
	AuthToken    string        `json:"-" env:"AUTH_TOKEN"`
	SourceNumber string        `json:"source_number" env:"SOURCE_NUMBER"`
	Timeout      time.Duration `json:"timeout" env:"TIMEOUT" envDefault:"60s"`
}

type LoggingConfig struct {
	Level            string `json:"level" env:"LEVEL" envDefault:"info"`      // debug, info, warn, error
	Format           string `json:"format" env:"FORMAT" envDefault:"json"`    // json, console
	Output           string `json:"output" env:"OUTPUT" envDefault:"stdout"`  // stdout, file, both
	FilePath         string `json:"file_path" env:"FILE_PATH" envDefault:"logs/smsflow.log"`
	MaxSize          int    `json:"max_size" env:"MAX_SIZE" envDefault:"100"` // MB
	MaxBackups       int    `json:"max_backups" env:"MAX_BACKUPS" envDefault:"5"`
	MaxAge           int    `json:"max_age" env:"MAX_AGE" envDefault:"30"` // days
	Compress         bool   `json:"compress" env:"COMPRESS" envDefault:"true"`
	EnableCaller     bool   `json:"enable_caller" env:"ENABLE_CALLER" envDefault:"true"`
	EnableStacktrace bool   `json:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
	EnableAccessLog  bool   `json:"enable_access_log" env:"ENABLE_ACCESS_LOG" envDefault:"true"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" env:"ENABLED" envDefault:"true"`
	Path    string `json:"path" env:"PATH" envDefault:"/metrics"`
}

type CacheConfig struct {
	Enabled         bool          `json:"enabled" env:"ENABLED"`
	Provider        string        `json:"provider" env:"PROVIDER" envDefault:"redis"`
	RedisURL        string        `json:"redis_url" env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisDB         int           `json:"redis_db" env:"REDIS_DB"`
	RedisPrefix     string        `json:"redis_prefix" env:"REDIS_PREFIX" envDefault:"smsflow:"`
	LockTTL         time.Duration `json:"lock_ttl" env:"LOCK_TTL" envDefault:"30s"`
	CleanupInterval time.Duration `json:"cleanup_interval" env:"CLEANUP_INTERVAL" envDefault:"30s"`
}

type QueueConfig struct {
	Driver    string `json:"driver" env:"DRIVER" envDefault:"memory"` // memory, amqp
	Buffer    int    `json:"buffer" env:"BUFFER" envDefault:"1000"`
	AMQPURL   string `json:"-" env:"AMQP_URL"`
	QueueName string `json:"queue_name" env:"NAME" envDefault:"campaign_sends"`
	Prefetch  int    `json:"prefetch" env:"PREFETCH" envDefault:"20"`
}

type DispatchConfig struct {
	BatchSize         int           `json:"batch_size" env:"BATCH_SIZE" envDefault:"100"`
	WorkerConcurrency int           `json:"worker_concurrency" env:"WORKER_CONCURRENCY" envDefault:"10"`
	TaskTimeout       time.Duration `json:"task_timeout" env:"TASK_TIMEOUT" envDefault:"60s"`
	MaxAttempts       int           `json:"max_attempts" env:"MAX_ATTEMPTS" envDefault:"3"`
	RetryBackoff      time.Duration `json:"retry_backoff" env:"RETRY_BACKOFF" envDefault:"2s"`
	SchedulerInterval time.Duration `json:"scheduler_interval" env:"SCHEDULER_INTERVAL" envDefault:"15s"`
}

type StorageConfig struct {
	RootDir       string `json:"root_dir" env:"ROOT_DIR" envDefault:"storage/public"`
	PublicBaseURL string `json:"public_base_url" env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080/storage"`
}

type WebhookConfig struct {
	AutoReplyKeywords []string      `json:"auto_reply_keywords" env:"AUTO_REPLY_KEYWORDS" envSeparator:"," envDefault:"appointment,schedule,book,meeting,calendly"`
	CalendlyLink      string        `json:"calendly_link" env:"CALENDLY_LINK" envDefault:"https://calendly.com/gonzalog"`
	MediaTimeout      time.Duration `json:"media_timeout" env:"MEDIA_TIMEOUT" envDefault:"30s"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, err
	}

	cfg := &ProductionConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile populates unset variables from a dotenv file when it exists
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errs []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errs = append(errs, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errs = append(errs, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errs = append(errs, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errs = append(errs, "DB_USER is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errs = append(errs, "SERVER_WRITE_TIMEOUT must be positive")
	}

	// Validate SMS configuration
	switch cfg.SMS.Provider {
	case "mock":
	case "twilio":
		if cfg.SMS.AccountSID == "" {
			errs = append(errs, "SMS_ACCOUNT_SID is required for twilio provider")
		}
		if cfg.SMS.AuthToken == "" {
			errs = append(errs, "SMS_AUTH_TOKEN is required for twilio provider")
		}
		if cfg.SMS.SourceNumber == "" {
			errs = append(errs, "SMS_SOURCE_NUMBER is required for twilio provider")
		}
	default:
		errs = append(errs, "SMS_PROVIDER must be one of: mock, twilio")
	}
	if cfg.SMS.Timeout <= 0 {
		errs = append(errs, "SMS_TIMEOUT must be positive")
	}

	// Validate dispatch configuration
	if cfg.Dispatch.BatchSize < 1 {
		errs = append(errs, "DISPATCH_BATCH_SIZE must be at least 1")
	}
	if cfg.Dispatch.WorkerConcurrency < 1 {
		errs = append(errs, "DISPATCH_WORKER_CONCURRENCY must be at least 1")
	}
	if cfg.Dispatch.MaxAttempts < 1 {
		errs = append(errs, "DISPATCH_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.Dispatch.TaskTimeout <= 0 {
		errs = append(errs, "DISPATCH_TASK_TIMEOUT must be positive")
	}
	if cfg.Dispatch.SchedulerInterval <= 0 {
		errs = append(errs, "DISPATCH_SCHEDULER_INTERVAL must be positive")
	}

	// Validate queue configuration
	switch cfg.Queue.Driver {
	case "memory":
		if cfg.Queue.Buffer < 1 {
			errs = append(errs, "QUEUE_BUFFER must be at least 1")
		}
	case "amqp":
		if cfg.Queue.AMQPURL == "" {
			errs = append(errs, "QUEUE_AMQP_URL is required when queue driver is amqp")
		}
	default:
		errs = append(errs, "QUEUE_DRIVER must be one of: memory, amqp")
	}

	// Validate logging configuration
	validLevels := []string{"debug", "info", "warn", "error"}
	if cfg.Logging.Level != "" && !slices.Contains(validLevels, cfg.Logging.Level) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled && cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
		errs = append(errs, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
