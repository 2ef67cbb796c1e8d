package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"recurring-planner/internal/recurrence"
)

// Config keeps runtime settings for the bot and the maintenance commands.
type Config struct {
	TelegramToken  string        `yaml:"telegram_token"`
	DatabaseURL    string        `yaml:"database_url"`
	ReportInterval time.Duration `yaml:"report_interval"`
	// ReconcileAt is the HH:MM time of the daily duplicate reconciliation.
	ReconcileAt    string `yaml:"reconcile_at"`
	HorizonMonths  int    `yaml:"horizon_months"`
	MaxOccurrences int    `yaml:"max_occurrences"`
	Timezone       string `yaml:"timezone"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DatabaseURL:    "planner.db",
		ReportInterval: 5 * time.Hour,
		ReconcileAt:    "03:30",
		HorizonMonths:  1,
		MaxOccurrences: 500,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by PLANNER_CONFIG and the environment, in that order.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("PLANNER_CONFIG")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, fmt.Errorf("config.Load: %w", err)
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return cfg, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.TelegramToken, "TELEGRAM_TOKEN")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.ReconcileAt, "RECONCILE_AT")
	setString(&c.Timezone, "PLANNER_TIMEZONE")
	setString(&c.LogLevel, "PLANNER_LOG_LEVEL")
	setString(&c.LogFormat, "PLANNER_LOG_FORMAT")

	if raw := getEnv("REPORT_INTERVAL_HOURS"); raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil || hours <= 0 {
			return fmt.Errorf("REPORT_INTERVAL_HOURS must be a positive number, got %q", raw)
		}
		c.ReportInterval = time.Duration(hours * float64(time.Hour))
	}
	if err := setInt(&c.HorizonMonths, "HORIZON_MONTHS"); err != nil {
		return err
	}
	return setInt(&c.MaxOccurrences, "MAX_OCCURRENCES")
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL must not be empty")
	}
	if c.ReportInterval < time.Minute {
		return fmt.Errorf("report interval must be at least 1m, got %s", c.ReportInterval)
	}
	if _, err := time.Parse("15:04", c.ReconcileAt); err != nil {
		return fmt.Errorf("RECONCILE_AT must be HH:MM, got %q", c.ReconcileAt)
	}
	if c.HorizonMonths < 1 {
		return fmt.Errorf("HORIZON_MONTHS must be >= 1, got %d", c.HorizonMonths)
	}
	if c.MaxOccurrences < 1 {
		return fmt.Errorf("MAX_OCCURRENCES must be >= 1, got %d", c.MaxOccurrences)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// ValidateBot checks the settings only the Telegram bot needs.
func (c Config) ValidateBot() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}
	return nil
}

// Location resolves Timezone; empty means the local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("PLANNER_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Materialize returns the materialization bounds.
func (c Config) Materialize() recurrence.Options {
	return recurrence.Options{HorizonMonths: c.HorizonMonths, MaxOccurrences: c.MaxOccurrences}
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, key string) {
	if v := getEnv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	raw := getEnv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	*dst = v
	return nil
}
