package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds application configuration from the optional TOML file and environment.
type Config struct {
	HTTPPort        string   `toml:"http_port"`
	DatabaseURL     string   `toml:"database_url"`
	DBPoolSize      int      `toml:"db_pool_size"`
	RedisURL        string   `toml:"redis_url"`
	RedisPoolSize   int      `toml:"redis_pool_size"`
	CacheTTL        int      `toml:"cache_ttl_sec"` // seconds
	KafkaBrokers    []string `toml:"kafka_brokers"`
	KafkaTopic      string   `toml:"kafka_topic"`
	KafkaPartitions int      `toml:"kafka_partitions"`
	KafkaGroupID    string   `toml:"kafka_group_id"`
	JWTSecret       string   `toml:"jwt_secret"`
	LogLevel        string   `toml:"log_level"`

	ReminderInterval int `toml:"reminder_interval_sec"`
	ReminderWindow   int `toml:"reminder_window_hours"`
}

var (
	cfg     *Config
	cfgErr  error
	cfgOnce sync.Once
)

// Default returns the configuration used when neither file nor environment set a key.
func Default() Config {
	return Config{
		HTTPPort:         "8080",
		DatabaseURL:      "todos.db",
		DBPoolSize:       20,
		RedisPoolSize:    50,
		CacheTTL:         300,
		KafkaTopic:       "todo-events",
		KafkaPartitions:  4,
		KafkaGroupID:     "todo-cache-invalidators",
		LogLevel:         "info",
		ReminderInterval: 0,
		ReminderWindow:   24,
	}
}

// Get returns the application config (loads once from CONFIG_FILE and env).
// A broken config file is reported through LoadErr; Get then falls back to defaults plus env.
func Get() *Config {
	cfgOnce.Do(func() {
		cfg, cfgErr = Load(os.Getenv("CONFIG_FILE"))
		if cfgErr != nil {
			fallback := Default()
			applyEnv(&fallback)
			cfg = &fallback
		}
	})
	return cfg
}

// LoadErr returns the error hit while loading the config file in Get, if any.
func LoadErr() error {
	Get()
	return cfgErr
}

// Load builds a Config from defaults, the TOML file at path (skipped when empty)
// and environment overrides, in that order.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := toml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	applyEnv(&c)
	return &c, nil
}

func applyEnv(c *Config) {
	setString(&c.HTTPPort, "HTTP_PORT")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setInt(&c.DBPoolSize, "DB_POOL_SIZE")
	setString(&c.RedisURL, "REDIS_URL")
	setInt(&c.RedisPoolSize, "REDIS_POOL_SIZE")
	setInt(&c.CacheTTL, "CACHE_TTL_SEC")
	setSlice(&c.KafkaBrokers, "KAFKA_BROKERS")
	setString(&c.KafkaTopic, "KAFKA_TODO_TOPIC")
	setInt(&c.KafkaPartitions, "KAFKA_PARTITIONS")
	setString(&c.KafkaGroupID, "KAFKA_GROUP_ID")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.LogLevel, "LOG_LEVEL")
	setInt(&c.ReminderInterval, "REMINDER_INTERVAL_SEC")
	setInt(&c.ReminderWindow, "REMINDER_WINDOW_HOURS")
}

// UsesPostgres reports whether DatabaseURL points at Postgres rather than a SQLite file.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func (c *Config) RedisEnabled() bool { return c.RedisURL != "" }

func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func (c *Config) AuthEnabled() bool { return c.JWTSecret != "" }

func (c *Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

func (c *Config) ReminderIntervalDuration() time.Duration {
	return time.Duration(c.ReminderInterval) * time.Second
}

func (c *Config) ReminderWindowDuration() time.Duration {
	return time.Duration(c.ReminderWindow) * time.Hour
}

// LoadEnvFile reads a .env file and sets env vars (only if not already set).
func LoadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		val = unquote(strings.TrimSpace(val))
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
}

func unquote(val string) string {
	if len(val) >= 2 {
		if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
			return val[1 : len(val)-1]
		}
	}
	return val
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
