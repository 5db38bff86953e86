package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/MosinFAM/graphql-channels/internal/graph"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	BusMemory   = "memory"
	BusPostgres = "postgres"
	BusRedis    = "redis"
	BusNATS     = "nats"
)

// Config - настройки сервера. Источники по возрастанию приоритета:
// значения по умолчанию, YAML-файл CONFIG_FILE, переменные окружения (.env в том числе).
type Config struct {
	Addr                 string        `mapstructure:"ADDR"`
	StorageType          string        `mapstructure:"STORAGE_TYPE"`
	BusType              string        `mapstructure:"BUS_TYPE"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	MigrationsDir        string        `mapstructure:"MIGRATIONS_DIR"`
	RedisAddr            string        `mapstructure:"REDIS_ADDR"`
	NATSURL              string        `mapstructure:"NATS_URL"`
	SeedFile             string        `mapstructure:"SEED_FILE"`
	DateLayout           string        `mapstructure:"DATE_LAYOUT"`
	SubscriberMaxPending int           `mapstructure:"SUBSCRIBER_MAX_PENDING"`
	KeepAlive            time.Duration `mapstructure:"KEEP_ALIVE"`
	ShutdownTimeout      time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	LogFormat            string        `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]any{
	"ADDR":                   ":4000",
	"STORAGE_TYPE":           StorageMemory,
	"BUS_TYPE":               BusMemory,
	"DATABASE_URL":           "",
	"MIGRATIONS_DIR":         "migrations",
	"REDIS_ADDR":             "localhost:6379",
	"NATS_URL":               "nats://127.0.0.1:4222",
	"SEED_FILE":              "",
	"DATE_LAYOUT":            graph.DefaultDateLayout,
	"SUBSCRIBER_MAX_PENDING": 0,
	"KEEP_ALIVE":             10 * time.Second,
	"SHUTDOWN_TIMEOUT":       5 * time.Second,
	"LOG_LEVEL":              "info",
	"LOG_FORMAT":             "text",
}

// LoadEnv подгружает .env, если он есть. Отсутствие файла не ошибка.
func LoadEnv(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load собирает конфигурацию через viper
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetDefault("CONFIG_FILE", "")
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageType {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("unknown STORAGE_TYPE %q", c.StorageType)
	}

	switch c.BusType {
	case BusMemory, BusPostgres, BusRedis, BusNATS:
	default:
		return fmt.Errorf("unknown BUS_TYPE %q", c.BusType)
	}

	if (c.StorageType == StoragePostgres || c.BusType == BusPostgres) && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for postgres")
	}
	if c.SubscriberMaxPending < 0 {
		return fmt.Errorf("SUBSCRIBER_MAX_PENDING must not be negative, got %d", c.SubscriberMaxPending)
	}
	return nil
}
