package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server Server `mapstructure:"server" validate:"required"`
	Store  Store  `mapstructure:"store"  validate:"required"`
	Worker Worker `mapstructure:"worker" validate:"required"`
	Upload Upload `mapstructure:"upload" validate:"required"`
	Gemini Gemini `mapstructure:"gemini" validate:"required"`
}

// Server contains all HTTP server related configuration settings.
type Server struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// RateLimitPerMinute caps requests per client IP per minute.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" validate:"gte=0"`
}

// Store contains task store related configuration settings.
type Store struct {
	// Backend selects the store implementation.
	Backend string `mapstructure:"backend" validate:"required,oneof=memory redis"`

	// Retention is the hard TTL after which job entries vanish.
	Retention time.Duration `mapstructure:"retention" validate:"required,gt=0"`

	// SweepInterval controls the memory backend's janitor cadence.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gte=0"`

	// RedisAddr is required when Backend is redis.
	RedisAddr     string `mapstructure:"redis_addr"     validate:"required_if=Backend redis"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"       validate:"gte=0"`
}

// Worker contains extraction worker pool settings.
type Worker struct {
	Count          int           `mapstructure:"count"           validate:"required,gt=0"`
	QueueSize      int           `mapstructure:"queue_size"      validate:"required,gt=0"`
	ExtractTimeout time.Duration `mapstructure:"extract_timeout" validate:"required,gt=0"`
}

// Upload contains upload sandbox settings.
type Upload struct {
	Dir      string `mapstructure:"dir"       validate:"required"`
	MaxBytes int64  `mapstructure:"max_bytes" validate:"required,gt=0"`
}

// Gemini contains the extraction model integration settings.
type Gemini struct {
	APIKey            string `mapstructure:"api_key" validate:"required"`
	Model             string `mapstructure:"model"   validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}
