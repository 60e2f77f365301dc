package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config holds every setting of the application.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Auth      AuthConfig      `toml:"auth"`
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
	Engine    EngineConfig    `toml:"engine"`
	R2        R2Config        `toml:"r2"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

type DatabaseConfig struct {
	Driver         string        `toml:"driver" env:"DATABASE_DRIVER"`
	URL            string        `toml:"url" env:"DATABASE_URL"`
	ConnectTimeout time.Duration `toml:"connect_timeout" env:"DATABASE_CONNECT_TIMEOUT"`
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret" env:"JWT_SECRET_KEY"`
}

type ServerConfig struct {
	Port               int      `toml:"port" env:"SERVER_PORT"`
	RateLimitRPS       float64  `toml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst     int      `toml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

type LogConfig struct {
	Level string `toml:"level" env:"LOG_LEVEL"`
}

// EngineConfig carries the tournament engine defaults.
type EngineConfig struct {
	DefaultQuorum         int `toml:"default_quorum" env:"DEFAULT_QUORUM"`
	PointsPerWin          int `toml:"points_per_win" env:"POINTS_PER_WIN"`
	DefaultJudgesPerMatch int `toml:"default_judges_per_match" env:"DEFAULT_JUDGES_PER_MATCH"`
}

// R2Config configures ballot and audio storage. Leaving every field empty
// disables media uploads.
type R2Config struct {
	AccountID       string `toml:"account_id" env:"R2_ACCOUNT_ID"`
	AccessKeyID     string `toml:"access_key_id" env:"R2_ACCESS_KEY_ID"`
	SecretAccessKey string `toml:"secret_access_key" env:"R2_SECRET_ACCESS_KEY"`
	BucketName      string `toml:"bucket_name" env:"R2_BUCKET_NAME"`
	PublicBaseURL   string `toml:"public_base_url" env:"R2_PUBLIC_BASE_URL"`
	Endpoint        string `toml:"endpoint" env:"R2_ENDPOINT"`
}

func (c R2Config) required() map[string]string {
	return map[string]string{
		"R2_ACCOUNT_ID":        c.AccountID,
		"R2_ACCESS_KEY_ID":     c.AccessKeyID,
		"R2_SECRET_ACCESS_KEY": c.SecretAccessKey,
		"R2_BUCKET_NAME":       c.BucketName,
		"R2_PUBLIC_BASE_URL":   c.PublicBaseURL,
	}
}

// Enabled reports whether any storage credential was supplied.
func (c R2Config) Enabled() bool {
	for _, v := range c.required() {
		if v != "" {
			return true
		}
	}
	return false
}

type TelemetryConfig struct {
	Endpoint    string `toml:"endpoint" env:"OTEL_ENDPOINT"`
	ServiceName string `toml:"service_name" env:"OTEL_SERVICE_NAME"`
}

// Default holds the defaults of settings where zero is a valid choice, such
// as DEFAULT_JUDGES_PER_MATCH=0 or RATE_LIMIT_RPS=0 (limiter off). Files and
// the environment override only the keys they set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Engine: EngineConfig{
			DefaultQuorum:         1,
			PointsPerWin:          1,
			DefaultJudgesPerMatch: 1,
		},
	}
}

// Load builds the configuration. Values from the optional TOML file at path
// are overridden by the environment, which may be seeded from a .env file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("decode config file: %w", err)
		}
	}

	// A missing .env file is fine outside local development.
	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FillDefaults sets the settings whose zero value means "not configured".
func (c *Config) FillDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = 5 * time.Second
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "debetter"
	}
}

// Validate checks everything except the JWT secret, which only some
// commands need; see RequireJWTSecret.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable is not set"))
	}
	if c.Database.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("DATABASE_CONNECT_TIMEOUT must not be negative, got %s", c.Database.ConnectTimeout))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Engine.DefaultQuorum < 1 {
		errs = append(errs, fmt.Errorf("DEFAULT_QUORUM must be at least 1, got %d", c.Engine.DefaultQuorum))
	}
	if c.Engine.PointsPerWin < 0 {
		errs = append(errs, fmt.Errorf("POINTS_PER_WIN must not be negative, got %d", c.Engine.PointsPerWin))
	}
	if c.Engine.DefaultJudgesPerMatch < 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_JUDGES_PER_MATCH must not be negative, got %d", c.Engine.DefaultJudgesPerMatch))
	}
	if c.R2.Enabled() {
		var missing []string
		for name, v := range c.R2.required() {
			if v == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			slices.Sort(missing)
			errs = append(errs, fmt.Errorf("incomplete R2 configuration, missing %s", strings.Join(missing, ", ")))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) RequireJWTSecret() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET_KEY environment variable is not set")
	}
	return nil
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", s)
	}
	return level, nil
}
