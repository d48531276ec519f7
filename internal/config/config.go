package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/pcdogyu/trader-clock/internal/market"
)

type Config struct {
	DBPath   string `yaml:"db_path"`
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`

	TickIntervalMS int `yaml:"tick_interval_ms"`
	RetentionDays  int `yaml:"retention_days"`

	Poll struct {
		IntervalMS       int `yaml:"interval_ms"`
		CompatIntervalMS int `yaml:"compat_interval_ms"`
	} `yaml:"poll"`

	Cleanup struct {
		Enabled *bool  `yaml:"enabled"`
		RunAt   string `yaml:"run_at"`
	} `yaml:"cleanup"`

	Alerts struct {
		CreatePerMinute int `yaml:"create_per_minute"`
		Burst           int `yaml:"burst"`
	} `yaml:"alerts"`

	Telegram TelegramConfig `yaml:"telegram"`

	Settlement struct {
		Zone string `yaml:"zone"`
	} `yaml:"settlement"`

	Zones    []market.Zone    `yaml:"zones"`
	Sessions []market.Session `yaml:"sessions"`
	Overlaps []market.Overlap `yaml:"overlaps"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != 0
}

// envOverrides are read from TCLOCK_* variables. Zero values leave the file setting alone.
type envOverrides struct {
	DBPath         string `envconfig:"DB_PATH"`
	HTTPAddr       string `envconfig:"HTTP_ADDR"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
	TickIntervalMS int    `envconfig:"TICK_INTERVAL_MS"`
	RetentionDays  int    `envconfig:"RETENTION_DAYS"`
	TelegramToken  string `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `envconfig:"TELEGRAM_CHAT_ID"`
}

// Load reads the YAML file at path (a missing file yields defaults), applies a .env file
// from the working directory when present, then TCLOCK_* overrides.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := NormalizeAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("tclock", &env); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	if env.DBPath != "" {
		cfg.DBPath = env.DBPath
	}
	if env.HTTPAddr != "" {
		cfg.HTTPAddr = env.HTTPAddr
	}
	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}
	if env.TickIntervalMS != 0 {
		cfg.TickIntervalMS = env.TickIntervalMS
	}
	if env.RetentionDays != 0 {
		cfg.RetentionDays = env.RetentionDays
	}
	if env.TelegramToken != "" {
		cfg.Telegram.Token = env.TelegramToken
	}
	if env.TelegramChatID != 0 {
		cfg.Telegram.ChatID = env.TelegramChatID
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = "data/tclock.db"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.TickIntervalMS == 0 {
		cfg.TickIntervalMS = 1000
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 30
	}
	if cfg.Poll.IntervalMS == 0 {
		cfg.Poll.IntervalMS = 1000
	}
	if cfg.Poll.CompatIntervalMS == 0 {
		cfg.Poll.CompatIntervalMS = 2000
	}
	if cfg.Cleanup.Enabled == nil {
		v := true
		cfg.Cleanup.Enabled = &v
	}
	if cfg.Cleanup.RunAt == "" {
		cfg.Cleanup.RunAt = "03:10"
	}
	if cfg.Alerts.CreatePerMinute == 0 {
		cfg.Alerts.CreatePerMinute = 30
	}
	if cfg.Alerts.Burst == 0 {
		cfg.Alerts.Burst = 10
	}
	if cfg.Settlement.Zone == "" {
		cfg.Settlement.Zone = market.ZoneServer
	}
	// Tables are replaced wholesale, never merged with the defaults.
	if len(cfg.Zones) == 0 {
		cfg.Zones = market.DefaultZones()
	}
	if len(cfg.Sessions) == 0 {
		cfg.Sessions = market.DefaultSessions()
	}
	if cfg.Overlaps == nil {
		cfg.Overlaps = market.DefaultOverlaps()
	}
}

// NormalizeAndValidate applies defaults and checks invariants.
func NormalizeAndValidate(cfg *Config) error {
	applyDefaults(cfg)
	if cfg.TickIntervalMS < 100 {
		return fmt.Errorf("tick_interval_ms must be >= 100")
	}
	if cfg.Poll.IntervalMS <= 0 || cfg.Poll.CompatIntervalMS <= 0 {
		return fmt.Errorf("poll intervals must be > 0")
	}
	if cfg.RetentionDays < 1 {
		return fmt.Errorf("retention_days must be >= 1")
	}
	if _, err := time.Parse("15:04", cfg.Cleanup.RunAt); err != nil {
		return fmt.Errorf("cleanup.run_at must be HH:MM: %w", err)
	}
	if cfg.Alerts.CreatePerMinute < 0 || cfg.Alerts.Burst < 1 {
		return fmt.Errorf("alerts rate limit must be positive")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug|info|warn|error")
	}
	return cfg.Market().Validate()
}

// Market returns the engine tables described by the config.
func (c Config) Market() market.Config {
	return market.Config{
		Zones:    append([]market.Zone(nil), c.Zones...),
		Sessions: append([]market.Session(nil), c.Sessions...),
		Overlaps: append([]market.Overlap(nil), c.Overlaps...),
		Settlement: market.Settlement{Zone: c.Settlement.Zone},
	}
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}
