package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ant0n-grachev/telegram-reservation-bot/booking"
)

const EnvPrefix = "RESERVEBOT"

type Config struct {
	LogLevel string `mapstructure:"log_level"`
	Timezone string `mapstructure:"timezone"`

	Booking  Booking  `mapstructure:"booking"`
	Store    Store    `mapstructure:"store"`
	Telegram Telegram `mapstructure:"telegram"`
	HTTP     HTTP     `mapstructure:"http"`
	LLM      LLM      `mapstructure:"llm"`
}

type Booking struct {
	Endpoint      string        `mapstructure:"endpoint"`
	RestaurantID  string        `mapstructure:"restaurant_id"`
	OpeningHourID string        `mapstructure:"opening_hour_id"`
	LanguageCode  string        `mapstructure:"language_code"`
	Referrer      string        `mapstructure:"referrer"`
	Origin        string        `mapstructure:"origin"`
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerMinute int           `mapstructure:"rate_per_minute"`
}

type Store struct {
	Driver        string        `mapstructure:"driver"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type Telegram struct {
	Token string `mapstructure:"token"`
}

type HTTP struct {
	Addr string `mapstructure:"addr"`
}

type LLM struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

func (l LLM) Enabled() bool {
	return l.APIKey != ""
}

func (b Booking) Venue() booking.Venue {
	return booking.Venue{
		RestaurantID:  b.RestaurantID,
		OpeningHourID: b.OpeningHourID,
		LanguageCode:  b.LanguageCode,
		Referrer:      b.Referrer,
		Origin:        b.Origin,
		UserAgent:     b.UserAgent,
	}
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("timezone", "America/Los_Angeles")

	v.SetDefault("booking.endpoint", booking.DefaultEndpoint)
	v.SetDefault("booking.restaurant_id", booking.DefaultVenue.RestaurantID)
	v.SetDefault("booking.opening_hour_id", booking.DefaultVenue.OpeningHourID)
	v.SetDefault("booking.language_code", booking.DefaultVenue.LanguageCode)
	v.SetDefault("booking.referrer", booking.DefaultVenue.Referrer)
	v.SetDefault("booking.origin", booking.DefaultVenue.Origin)
	v.SetDefault("booking.user_agent", booking.DefaultVenue.UserAgent)
	v.SetDefault("booking.timeout", booking.DefaultTimeout)
	v.SetDefault("booking.rate_per_minute", 30)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.ttl", 24*time.Hour)

	v.SetDefault("telegram.token", "")
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")
}

// Load reads path, when it exists, then environment overrides such as
// RESERVEBOT_TELEGRAM_TOKEN. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			slog.Info("No config file found, using defaults and environment", "path", path)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Booking.Timeout <= 0 {
		return fmt.Errorf("booking timeout must be positive, got %s", c.Booking.Timeout)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
