// Package config loads runtime settings from the environment, an optional
// .env file and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pfrederiksen/civic-events/internal/feed"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "CIVIC"

// MaxFeedItems is the largest community feed a deployment may serve.
const MaxFeedItems = feed.DefaultMaxItems

// Store and cache drivers.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	CacheMemory   = "memory"
	CacheRedis    = "redis"
)

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Sources  SourcesConfig
	Feed     FeedConfig
	Events   EventsConfig
	Store    StoreConfig
	Cache    CacheConfig
	Calendar CalendarConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string
	Format string
}

// SourcesConfig locates the upstream civic sites.
type SourcesConfig struct {
	ISDURL    string
	CityURL   string
	Timeout   time.Duration
	UserAgent string
}

// FeedConfig bounds the community feed and its cache window.
type FeedConfig struct {
	MaxItems             int
	MaxAge               time.Duration
	StaleWhileRevalidate time.Duration
}

// EventsConfig is the cache window advertised for event responses.
type EventsConfig struct {
	MaxAge               time.Duration
	StaleWhileRevalidate time.Duration
}

// StoreConfig selects where canonical events and fallback items come from.
type StoreConfig struct {
	Driver       string
	EventsPath   string
	FallbackPath string
	DSN          string
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// CalendarConfig customises the ICS export.
type CalendarConfig struct {
	TZID   string
	Domain string
	Name   string
	ProdID string
}

// Load reads configuration. configFile may be empty; when set it must exist.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("civic-events")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}

	cfg.Server = ServerConfig{
		Addr:            v.GetString("server.addr"),
		ShutdownTimeout: parseDuration(v.GetString("server.shutdown_timeout"), 10*time.Second),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	cfg.Sources = SourcesConfig{
		ISDURL:    v.GetString("sources.isd_url"),
		CityURL:   v.GetString("sources.city_url"),
		Timeout:   parseDuration(v.GetString("sources.timeout"), 8*time.Second),
		UserAgent: v.GetString("sources.user_agent"),
	}

	cfg.Feed = FeedConfig{
		MaxItems:             v.GetInt("feed.max_items"),
		MaxAge:               parseDuration(v.GetString("feed.max_age"), 6*time.Hour),
		StaleWhileRevalidate: parseDuration(v.GetString("feed.stale_while_revalidate"), 24*time.Hour),
	}

	cfg.Events = EventsConfig{
		MaxAge:               parseDuration(v.GetString("events.max_age"), time.Hour),
		StaleWhileRevalidate: parseDuration(v.GetString("events.stale_while_revalidate"), 24*time.Hour),
	}

	cfg.Store = StoreConfig{
		Driver:       strings.ToLower(v.GetString("store.driver")),
		EventsPath:   v.GetString("store.events_path"),
		FallbackPath: v.GetString("store.fallback_path"),
		DSN:          v.GetString("store.dsn"),
	}

	cfg.Cache = CacheConfig{
		Driver:        strings.ToLower(v.GetString("cache.driver")),
		RedisAddr:     v.GetString("cache.redis_addr"),
		RedisPassword: v.GetString("cache.redis_password"),
		RedisDB:       v.GetInt("cache.redis_db"),
		RedisPrefix:   v.GetString("cache.redis_prefix"),
	}

	cfg.Calendar = CalendarConfig{
		TZID:   v.GetString("calendar.tzid"),
		Domain: v.GetString("calendar.domain"),
		Name:   v.GetString("calendar.name"),
		ProdID: v.GetString("calendar.prodid"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and settings a driver cannot run without.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreFile:
	case StorePostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Cache.Driver {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}

	if c.Feed.MaxItems <= 0 || c.Feed.MaxItems > MaxFeedItems {
		return fmt.Errorf("feed.max_items must be between 1 and %d, got %d", MaxFeedItems, c.Feed.MaxItems)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("sources.isd_url", "https://isd.lakeview.example.org/news")
	v.SetDefault("sources.city_url", "https://lakeview.example.gov/calendar")
	v.SetDefault("sources.timeout", "8s")
	v.SetDefault("sources.user_agent", "civic-events/1.0 (github.com/pfrederiksen/civic-events)")

	v.SetDefault("feed.max_items", 5)
	v.SetDefault("feed.max_age", "6h")
	v.SetDefault("feed.stale_while_revalidate", "24h")

	v.SetDefault("events.max_age", "1h")
	v.SetDefault("events.stale_while_revalidate", "24h")

	v.SetDefault("store.driver", StoreFile)
	v.SetDefault("store.events_path", "")
	v.SetDefault("store.fallback_path", "")
	v.SetDefault("store.dsn", "")

	v.SetDefault("cache.driver", CacheMemory)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.redis_prefix", "civic-events:")

	v.SetDefault("calendar.tzid", "America/Chicago")
	v.SetDefault("calendar.domain", "civic-events.org")
	v.SetDefault("calendar.name", "Civic Events")
	v.SetDefault("calendar.prodid", "-//Civic Events//civic-events//EN")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
