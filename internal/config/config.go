// Package config loads the postcache server configuration from YAML and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Memcache  MemcacheConfig  `mapstructure:"memcache"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Bigcache  BigcacheConfig  `mapstructure:"bigcache"`
	Ristretto RistrettoConfig `mapstructure:"ristretto"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	MetricsPath     string        `mapstructure:"metrics_path"     validate:"omitempty,startswith=/"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Backend of the cache library's own log records; the server logs with logrus.
	Backend string `mapstructure:"backend" validate:"required,oneof=logrus zap slog glog"`

	// HookSampling logs every nth collection gap and corrupt entry event.
	HookSampling uint64 `mapstructure:"hook_sampling"`
}

type CacheConfig struct {
	Namespace     string `mapstructure:"namespace"`
	Provider      string `mapstructure:"provider"      validate:"required,oneof=memory bigcache ristretto redis memcache postgres"`
	Codec         string `mapstructure:"codec"         validate:"required,oneof=json cbor msgpack"`
	RemoveMode    string `mapstructure:"remove_mode"   validate:"required,oneof=leave_gap swap_last"`
	VersionStore  string `mapstructure:"version_store" validate:"required,oneof=local redis"`
	SkipCorrupt   bool   `mapstructure:"skip_corrupt"`
	MaxPageSize   int    `mapstructure:"max_page_size" validate:"gte=0"`
	MaxCollection int    `mapstructure:"max_collection_size" validate:"gte=0,lte=16777216"`
	DefaultPage   int    `mapstructure:"default_page_size" validate:"gte=1"`
	MaxPayload    int    `mapstructure:"max_payload_bytes" validate:"gte=0"`
}

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"        validate:"required_if=Enabled true"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"          validate:"gte=0"`
	VersionTTL time.Duration `mapstructure:"version_ttl"`
	Enabled    bool          `mapstructure:"-"`
}

type MemcacheConfig struct {
	Servers []string `mapstructure:"servers" validate:"required_if=Enabled true,dive,hostname_port"`
	Enabled bool     `mapstructure:"-"`
}

type PostgresConfig struct {
	DSN         string `mapstructure:"dsn"          validate:"required_if=Enabled true"`
	TablePrefix string `mapstructure:"table_prefix"`
	Enabled     bool   `mapstructure:"-"`
}

type BigcacheConfig struct {
	Shards             int `mapstructure:"shards"                 validate:"gte=0"`
	MaxEntriesInWindow int `mapstructure:"max_entries_in_window"  validate:"gte=0"`
	MaxEntrySize       int `mapstructure:"max_entry_size"         validate:"gte=0"`
	HardMaxCacheSizeMB int `mapstructure:"hard_max_cache_size_mb" validate:"gte=0"`
}

type RistrettoConfig struct {
	NumCounters int64 `mapstructure:"num_counters" validate:"gte=0"`
	MaxCost     int64 `mapstructure:"max_cost"     validate:"gte=0"`
}

// Load reads path (or ./configs/postcache.yaml, ./postcache.yaml when empty).
// A missing file is not an error; every key has a default and can be set from
// the environment as POSTCACHE_<SECTION>_<KEY>.
func Load(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("postcache")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix("postcache")
	vip.AutomaticEnv()
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(vip)

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// sections are only required when selected
	cfg.Redis.Enabled = cfg.Cache.Provider == "redis" || cfg.Cache.VersionStore == "redis"
	cfg.Memcache.Enabled = cfg.Cache.Provider == "memcache"
	cfg.Postgres.Enabled = cfg.Cache.Provider == "postgres"

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.addr", ":8080")
	vip.SetDefault("server.shutdown_timeout", 10*time.Second)
	vip.SetDefault("server.metrics_path", "/metrics")

	vip.SetDefault("log.level", "info")
	vip.SetDefault("log.format", "text")
	vip.SetDefault("log.backend", "logrus")
	vip.SetDefault("log.hook_sampling", 1)

	vip.SetDefault("cache.namespace", "blog:posts")
	vip.SetDefault("cache.provider", "memory")
	vip.SetDefault("cache.codec", "json")
	vip.SetDefault("cache.remove_mode", "leave_gap")
	vip.SetDefault("cache.version_store", "local")
	vip.SetDefault("cache.skip_corrupt", false)
	vip.SetDefault("cache.max_page_size", 10_000)
	vip.SetDefault("cache.max_collection_size", 1_000_000)
	vip.SetDefault("cache.default_page_size", 20)
	vip.SetDefault("cache.max_payload_bytes", 1<<20)

	vip.SetDefault("redis.addr", "localhost:6379")
	vip.SetDefault("redis.db", 0)
	vip.SetDefault("redis.version_ttl", 24*time.Hour)
	vip.SetDefault("memcache.servers", []string{"localhost:11211"})
	vip.SetDefault("postgres.table_prefix", "rwcache")
	vip.SetDefault("bigcache.shards", 1024)
	vip.SetDefault("bigcache.max_entries_in_window", 10_000)
	vip.SetDefault("bigcache.max_entry_size", 4096)
	vip.SetDefault("ristretto.num_counters", 1_000_000)
	vip.SetDefault("ristretto.max_cost", 64<<20)
}
