package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the resilience layer configuration
type Config struct {
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Alerting  AlertingConfig  `json:"alerting"`
	Retry     RetryConfig     `json:"retry"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   MetricsConfig   `json:"metrics"`
}

// DatabaseConfig contains the error record store connection configuration
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// RedisConfig contains Redis connection configuration for the
// distributed rate-limit counter backend
type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
	Enabled  bool   `json:"enabled"`
}

// RateLimitConfig contains rate limiter configuration
type RateLimitConfig struct {
	DefaultWindow      time.Duration `json:"default_window"`
	DefaultMaxRequests int           `json:"default_max_requests"`
	CleanupInterval    time.Duration `json:"cleanup_interval"`
	ViolationRetention time.Duration `json:"violation_retention"`
}

// AlertingConfig contains alert rule engine configuration
type AlertingConfig struct {
	EvaluationInterval time.Duration `json:"evaluation_interval"`
	DefaultCooldown    time.Duration `json:"default_cooldown"`
	RecentAlertLimit   int           `json:"recent_alert_limit"`
}

// RetryConfig contains retry engine defaults
type RetryConfig struct {
	BaseDelay       time.Duration `json:"base_delay"`
	MaxDelay        time.Duration `json:"max_delay"`
	ExponentialBase float64       `json:"exponential_base"`
	Jitter          bool          `json:"jitter"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Namespace string `json:"namespace"`
	Enabled   bool   `json:"enabled"`
	Addr      string `json:"addr"`
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "flynnai"),
			User:            getEnvString("DB_USER", "flynnai"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
			Enabled:  getEnvBool("REDIS_ENABLED", false),
		},
		RateLimit: RateLimitConfig{
			DefaultWindow:      getEnvDuration("RATELIMIT_DEFAULT_WINDOW", time.Minute),
			DefaultMaxRequests: getEnvInt("RATELIMIT_DEFAULT_MAX_REQUESTS", 60),
			CleanupInterval:    getEnvDuration("RATELIMIT_CLEANUP_INTERVAL", 5*time.Minute),
			ViolationRetention: getEnvDuration("RATELIMIT_VIOLATION_RETENTION", 24*time.Hour),
		},
		Alerting: AlertingConfig{
			EvaluationInterval: getEnvDuration("ALERTING_EVALUATION_INTERVAL", 30*time.Second),
			DefaultCooldown:    getEnvDuration("ALERTING_DEFAULT_COOLDOWN", 10*time.Minute),
			RecentAlertLimit:   getEnvInt("ALERTING_RECENT_ALERT_LIMIT", 10),
		},
		Retry: RetryConfig{
			BaseDelay:       getEnvDuration("RETRY_BASE_DELAY", time.Second),
			MaxDelay:        getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
			ExponentialBase: getEnvFloat("RETRY_EXPONENTIAL_BASE", 2.0),
			Jitter:          getEnvBool("RETRY_JITTER", true),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			Output: getEnvString("LOG_OUTPUT", "stdout"),
		},
		Metrics: MetricsConfig{
			Namespace: getEnvString("METRICS_NAMESPACE", "flynnai"),
			Enabled:   getEnvBool("METRICS_ENABLED", true),
			Addr:      getEnvString("METRICS_ADDR", ":9090"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RateLimit.DefaultMaxRequests <= 0 {
		return fmt.Errorf("rate limit default max requests must be positive")
	}
	if c.RateLimit.DefaultWindow <= 0 {
		return fmt.Errorf("rate limit default window must be positive")
	}
	if c.Alerting.EvaluationInterval <= 0 {
		return fmt.Errorf("alerting evaluation interval must be positive")
	}
	if c.Retry.ExponentialBase < 1 {
		return fmt.Errorf("retry exponential base must be >= 1")
	}
	return nil
}

// DatabaseURL returns the database connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
