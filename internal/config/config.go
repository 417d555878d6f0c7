package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken     string `envconfig:"BOT_TOKEN" required:"true"`
	AdminGroupID int64  `envconfig:"ADMIN_GROUP_ID" required:"true"` // Telegram group ID, must be negative

	DBPath string `envconfig:"DB_PATH" default:"./data/alerts.db"`

	ShopBaseURL   string        `envconfig:"SHOP_BASE_URL" default:"https://shop.amul.com"`
	CheckInterval time.Duration `envconfig:"CHECK_INTERVAL" default:"5m"`

	BotTZ           string `envconfig:"BOT_TZ" default:"Asia/Kolkata"`
	TrialDays       int    `envconfig:"TRIAL_DAYS" default:"30"`
	DailyDigestHour int    `envconfig:"DAILY_DIGEST_HOUR" default:"9"` // hour of day, bot TZ

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"` // healthz
}

// Load reads environment variables into Config and validates them.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if cfg.AdminGroupID >= 0 {
		return cfg, errors.New("ADMIN_GROUP_ID must be a negative Telegram group ID")
	}
	if cfg.DailyDigestHour < 0 || cfg.DailyDigestHour > 23 {
		return cfg, errors.New("DAILY_DIGEST_HOUR must be in 0..23")
	}
	if cfg.TrialDays < 1 {
		return cfg, errors.New("TRIAL_DAYS must be at least 1")
	}
	if _, err := time.LoadLocation(cfg.BotTZ); err != nil {
		return cfg, errors.New("BOT_TZ is not a valid IANA timezone")
	}
	return cfg, nil
}

// Location returns the bot timezone. Config is validated at Load time,
// so a failure here falls back to UTC instead of erroring again.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BotTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}
