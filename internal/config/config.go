package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	TokenStoreMemory = "memory"
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
)

type Config struct {
	App      AppConfig      `toml:"app"`
	API      APIConfig      `toml:"api"`
	Session  SessionConfig  `toml:"session"`
	Console  ConsoleConfig  `toml:"console"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	RabbitMQ RabbitMQConfig `toml:"rabbitmq"`
}

type AppConfig struct {
	Name     string `toml:"name"`
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
}

type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
	PollWorkers    int    `toml:"poll_workers"`
}

type SessionConfig struct {
	Store        string `toml:"store"`
	File         string `toml:"file"`
	RedisKey     string `toml:"redis_key"`
	RedisChannel string `toml:"redis_channel"`
}

type ConsoleConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// RedisConfig is optional; an empty Addr disables the history cache and the
// redis token store.
type RedisConfig struct {
	Addr                   string `toml:"addr"`
	Password               string `toml:"password"`
	DB                     int    `toml:"db"`
	PoolSize               int    `toml:"pool_size"`
	MinIdleConns           int    `toml:"min_idle_conns"`
	TimeoutMS              int    `toml:"timeout_ms"`
	HistoryTTLSeconds      int    `toml:"history_ttl_seconds"`
	HistoryDirtyTTLSeconds int    `toml:"history_dirty_ttl_seconds"`
}

// RabbitMQConfig is optional; without a URL journal events are written
// straight to the database.
type RabbitMQConfig struct {
	URL                string `toml:"url"`
	DocumentEventQueue string `toml:"document_event_queue"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/docqa.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ConsoleAddr() string {
	return fmt.Sprintf("%s:%d", c.Console.Host, c.Console.Port)
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.API.PollIntervalMS) * time.Millisecond
}

func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

func (c *Config) RabbitMQEnabled() bool {
	return c.RabbitMQ.URL != ""
}

func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base url %q", c.API.BaseURL)
	}
	switch c.Session.Store {
	case TokenStoreMemory, TokenStoreFile:
	case TokenStoreRedis:
		if !c.RedisEnabled() {
			return fmt.Errorf("token store %q requires redis addr", c.Session.Store)
		}
	default:
		return fmt.Errorf("unknown token store %q", c.Session.Store)
	}
	if c.API.PollIntervalMS <= 0 {
		return fmt.Errorf("poll interval must be positive, got %dms", c.API.PollIntervalMS)
	}
	return nil
}

func defaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		App: AppConfig{
			Name:     "docqa",
			Env:      "dev",
			LogLevel: "info",
		},
		API: APIConfig{
			BaseURL:        "http://localhost:8000/api/v1",
			TimeoutSeconds: 30,
			PollIntervalMS: 2000,
			PollWorkers:    8,
		},
		Session: SessionConfig{
			Store:        TokenStoreFile,
			File:         filepath.Join(dataDir, "token"),
			RedisKey:     "docqa:session:token",
			RedisChannel: "docqa:session:changed",
		},
		Console: ConsoleConfig{
			Host:    "127.0.0.1",
			Port:    8090,
			GinMode: "release",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(dataDir, "journal.db"),
		},
		Redis: RedisConfig{
			PoolSize:               4,
			TimeoutMS:              2000,
			HistoryTTLSeconds:      60,
			HistoryDirtyTTLSeconds: 5,
		},
		RabbitMQ: RabbitMQConfig{
			DocumentEventQueue: "docqa.document.event",
		},
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".docqa"
	}
	return filepath.Join(dir, "docqa")
}

func overrideByEnv(cfg *Config) {
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)

	cfg.API.BaseURL = getEnv("DOCQA_API_URL", cfg.API.BaseURL)
	cfg.API.TimeoutSeconds = getEnvAsInt("DOCQA_API_TIMEOUT_SECONDS", cfg.API.TimeoutSeconds)
	cfg.API.PollIntervalMS = getEnvAsInt("DOCQA_POLL_INTERVAL_MS", cfg.API.PollIntervalMS)
	cfg.API.PollWorkers = getEnvAsInt("DOCQA_POLL_WORKERS", cfg.API.PollWorkers)

	cfg.Session.Store = getEnv("DOCQA_TOKEN_STORE", cfg.Session.Store)
	cfg.Session.File = getEnv("DOCQA_TOKEN_FILE", cfg.Session.File)
	cfg.Session.RedisKey = getEnv("DOCQA_TOKEN_REDIS_KEY", cfg.Session.RedisKey)
	cfg.Session.RedisChannel = getEnv("DOCQA_TOKEN_REDIS_CHANNEL", cfg.Session.RedisChannel)

	cfg.Console.Host = getEnv("CONSOLE_HOST", cfg.Console.Host)
	cfg.Console.Port = getEnvAsInt("CONSOLE_PORT", cfg.Console.Port)
	cfg.Console.GinMode = getEnv("GIN_MODE", cfg.Console.GinMode)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("DB_DSN", cfg.Database.DSN)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.PoolSize = getEnvAsInt("REDIS_POOL_SIZE", cfg.Redis.PoolSize)
	cfg.Redis.MinIdleConns = getEnvAsInt("REDIS_MIN_IDLE_CONNS", cfg.Redis.MinIdleConns)
	cfg.Redis.TimeoutMS = getEnvAsInt("REDIS_TIMEOUT_MS", cfg.Redis.TimeoutMS)
	cfg.Redis.HistoryTTLSeconds = getEnvAsInt("REDIS_HISTORY_TTL_SECONDS", cfg.Redis.HistoryTTLSeconds)
	cfg.Redis.HistoryDirtyTTLSeconds = getEnvAsInt("REDIS_HISTORY_DIRTY_TTL_SECONDS", cfg.Redis.HistoryDirtyTTLSeconds)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.DocumentEventQueue = getEnv("RABBITMQ_DOCUMENT_EVENT_QUEUE", cfg.RabbitMQ.DocumentEventQueue)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
