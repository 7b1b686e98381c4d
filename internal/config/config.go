package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Broker   BrokerConfig   `mapstructure:"broker"   validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"    validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret          string `mapstructure:"jwt_secret"           validate:"required,min=32"`
	TokenLifetimeHours int    `mapstructure:"token_lifetime_hours" validate:"required,gt=0"`
}

// BrokerConfig contains RabbitMQ connection settings.
type BrokerConfig struct {
	URL string `mapstructure:"url" validate:"required"`
	// Exchange is the direct exchange all notification traffic flows through.
	Exchange string `mapstructure:"exchange" validate:"required"`
}

// CacheConfig contains Redis connection and expiry settings.
type CacheConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// NotificationTTL is the expiry for individual notification blobs.
	NotificationTTL time.Duration `mapstructure:"notification_ttl"`
	// UserKeyTTL is the expiry for per-user index and counter keys. It is
	// deliberately longer than NotificationTTL so counters do not silently
	// expire while their list keys survive.
	UserKeyTTL time.Duration `mapstructure:"user_key_ttl"`
}
