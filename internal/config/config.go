package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"slotbook/internal/models"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SLOTBOOK_DATABASE_PATH.
const EnvPrefix = "SLOTBOOK_"

type Config struct {
	App        AppConfig        `yaml:"app" envPrefix:"APP_"`
	Database   DatabaseConfig   `yaml:"database" envPrefix:"DATABASE_"`
	Redis      RedisConfig      `yaml:"redis" envPrefix:"REDIS_"`
	Backup     BackupConfig     `yaml:"backup" envPrefix:"BACKUP_"`
	Monitoring MonitoringConfig `yaml:"monitoring" envPrefix:"MONITORING_"`
	Logging    LoggingConfig    `yaml:"logging" envPrefix:"LOG_"`
	API        APIConfig        `yaml:"api" envPrefix:"API_"`
	Booking    BookingConfig    `yaml:"booking" envPrefix:"BOOKING_"`
	Events     EventsConfig     `yaml:"events" envPrefix:"EVENTS_"`
}

type BookingConfig struct {
	MaxAdvanceDays   int   `yaml:"max_advance_days" env:"MAX_ADVANCE_DAYS"`
	AllowedDurations []int `yaml:"allowed_durations" env:"ALLOWED_DURATIONS"`
	// SlotCacheTTL время жизни кэша слотов, секунды; отрицательное значение отключает кэш
	SlotCacheTTL      int `yaml:"slot_cache_ttl" env:"SLOT_CACHE_TTL"`
	RateLimitAttempts int `yaml:"rate_limit_attempts" env:"RATE_LIMIT_ATTEMPTS"`
	RateLimitWindow   int `yaml:"rate_limit_window" env:"RATE_LIMIT_WINDOW"`
}

type EventsConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	QueueKey      string `yaml:"queue_key" env:"QUEUE_KEY"`
	DeadLetterKey string `yaml:"dead_letter_key" env:"DEAD_LETTER_KEY"`
	MaxRetries    int    `yaml:"max_retries" env:"MAX_RETRIES"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled" env:"ENABLED"`
	HTTP      APIHTTPConfig      `yaml:"http" envPrefix:"HTTP_"`
	GRPC      APIGRPCConfig      `yaml:"grpc" envPrefix:"GRPC_"`
	Auth      APIAuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	Port    int  `yaml:"port" env:"PORT"`
}

type APIGRPCConfig struct {
	Enabled bool         `yaml:"enabled" env:"ENABLED"`
	Port    int          `yaml:"port" env:"PORT"`
	TLS     APITLSConfig `yaml:"tls" envPrefix:"TLS_"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled" env:"ENABLED"`
	CertFile          string `yaml:"cert_file" env:"CERT_FILE"`
	KeyFile           string `yaml:"key_file" env:"KEY_FILE"`
	ClientCAFile      string `yaml:"client_ca_file" env:"CLIENT_CA_FILE"`
	RequireClientCert bool   `yaml:"require_client_cert" env:"REQUIRE_CLIENT_CERT"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled" env:"ENABLED"`
	HeaderAPIKey string         `yaml:"header_api_key" env:"HEADER_API_KEY"`
	HeaderExtra  string         `yaml:"header_extra" env:"HEADER_EXTRA"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps" env:"RPS"`
	Burst int     `yaml:"burst" env:"BURST"`
}

type AppConfig struct {
	Name        string `yaml:"name" env:"NAME"`
	Environment string `yaml:"environment" env:"ENVIRONMENT"`
	Version     string `yaml:"version" env:"VERSION"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// RedisConfig: пустой address включает in-memory кэш вместо Redis.
type RedisConfig struct {
	Address  string `yaml:"address" env:"ADDRESS"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	PoolSize int    `yaml:"pool_size" env:"POOL_SIZE"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	Schedule      string `yaml:"schedule" env:"SCHEDULE"`
	RetentionDays int    `yaml:"retention_days" env:"RETENTION_DAYS"`
	StoragePath   string `yaml:"storage_path" env:"STORAGE_PATH"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled" env:"PROMETHEUS_ENABLED"`
	PrometheusPort    int  `yaml:"prometheus_port" env:"PROMETHEUS_PORT"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" env:"LEVEL"`
	Format   string `yaml:"format" env:"FORMAT"`
	Output   string `yaml:"output" env:"OUTPUT"`
	FilePath string `yaml:"file_path" env:"FILE_PATH"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Booking.MaxAdvanceDays < 0 {
		return errors.New("booking.max_advance_days must not be negative")
	}
	if len(c.Booking.AllowedDurations) == 0 {
		return errors.New("booking.allowed_durations must not be empty")
	}
	for _, d := range c.Booking.AllowedDurations {
		if d <= 0 || d > 24*60 {
			return fmt.Errorf("invalid service duration %d in booking.allowed_durations", d)
		}
	}

	if c.API.Enabled && c.API.Auth.Enabled {
		return ValidateAPIKeys(c.API.Auth.APIKeys)
	}
	return nil
}

func ValidateAPIKeys(keys []APIClientKey) error {
	if len(keys) == 0 {
		return errors.New("api auth is enabled but no api_keys are configured")
	}
	seen := make(map[string]bool)
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "slotbook"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	// Booking defaults
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	if len(c.Booking.AllowedDurations) == 0 {
		c.Booking.AllowedDurations = append([]int(nil), models.AllowedDurations...)
	}
	if c.Booking.SlotCacheTTL == 0 {
		c.Booking.SlotCacheTTL = models.DefaultSlotCacheTTL
	}
	if c.Booking.RateLimitAttempts == 0 {
		c.Booking.RateLimitAttempts = models.DefaultBookingAttempts
	}
	if c.Booking.RateLimitWindow == 0 {
		c.Booking.RateLimitWindow = models.DefaultBookingAttemptsWindow
	}

	if c.Events.QueueKey == "" {
		c.Events.QueueKey = "bookings:events"
	}
	if c.Events.DeadLetterKey == "" {
		c.Events.DeadLetterKey = "bookings:events:dead"
	}
	if c.Events.MaxRetries == 0 {
		c.Events.MaxRetries = 5
	}

	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "./backups"
	}
}
