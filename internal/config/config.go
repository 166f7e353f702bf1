package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Document store.
	StoreBackend string
	SQLitePath   string
	RedisAddr    string
	RedisPrefix  string
	FieldsFile   string

	// Calibration audit events.
	KafkaBrokers      []string
	KafkaAuditTopic   string
	AuditKafkaEnabled bool

	// Weather provider.
	WeatherBaseURL      string
	WeatherTimeout      time.Duration
	WeatherCacheSize    int
	WeatherHistoryDays  int
	WeatherForecastDays int
	WeatherFixture      string // offline fixture file; replaces the HTTP provider when set

	// Model and calibration.
	CooldownHours       float64
	HysteresisPoints    int
	WriteConcurrency    int
	RebuildWindowDays   int
	ETAHorizonHours     int
	RollForwardInterval time.Duration

	// Edit permission.
	AuthJWTSecret string
	AuthDisabled  bool
}

// LogSettings returns the level and format for the logger.
func (c *Config) LogSettings() (level, format string) {
	return c.LogLevel, c.LogFormat
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	weatherTimeout, err := parseDuration("WEATHER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	rollForward, err := parseDuration("ROLLFORWARD_INTERVAL", "24h")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		StoreBackend: strings.ToLower(sharedcfg.EnvOrDefault("STORE_BACKEND", BackendSQLite)),
		SQLitePath:   sharedcfg.EnvOrDefault("SQLITE_PATH", "readiness.db"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisPrefix:  sharedcfg.EnvOrDefault("REDIS_PREFIX", "readiness"),
		FieldsFile:   os.Getenv("FIELDS_FILE"),

		KafkaAuditTopic: sharedcfg.EnvOrDefault("KAFKA_AUDIT_TOPIC", "calibration-adjustments"),

		WeatherBaseURL: sharedcfg.EnvOrDefault("WEATHER_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		WeatherTimeout: weatherTimeout,
		WeatherFixture: os.Getenv("WEATHER_FIXTURE"),

		RollForwardInterval: rollForward,

		AuthJWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		AuthDisabled:  os.Getenv("AUTH_DISABLED") == "true",
	}

	for _, p := range []struct {
		key string
		def int
		dst *int
	}{
		{"WEATHER_CACHE_SIZE", 256, &cfg.WeatherCacheSize},
		{"WEATHER_HISTORY_DAYS", 30, &cfg.WeatherHistoryDays},
		{"WEATHER_FORECAST_DAYS", 7, &cfg.WeatherForecastDays},
		{"HYSTERESIS_POINTS", 2, &cfg.HysteresisPoints},
		{"WRITE_CONCURRENCY", 4, &cfg.WriteConcurrency},
		{"REBUILD_WINDOW_DAYS", 30, &cfg.RebuildWindowDays},
		{"ETA_HORIZON_HOURS", 168, &cfg.ETAHorizonHours},
	} {
		v, err := parsePositiveInt(p.key, p.def)
		if err != nil {
			return nil, err
		}
		*p.dst = v
	}

	cooldown, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("COOLDOWN_HOURS", "72"), 64)
	if err != nil || cooldown <= 0 {
		return nil, errors.New("invalid COOLDOWN_HOURS")
	}
	cfg.CooldownHours = cooldown

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}
	cfg.AuditKafkaEnabled = len(cfg.KafkaBrokers) > 0
	if v := os.Getenv("AUDIT_KAFKA_ENABLED"); v != "" {
		cfg.AuditKafkaEnabled = v == "true"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.StoreBackend)
	}
	if c.AuditKafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("AUDIT_KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if c.AuditKafkaEnabled && c.KafkaAuditTopic == "" {
		return errors.New("KAFKA_AUDIT_TOPIC is required")
	}
	if c.HysteresisPoints > 50 {
		return errors.New("HYSTERESIS_POINTS must be at most 50")
	}
	if !c.AuthDisabled && c.AuthJWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
