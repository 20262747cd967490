// Package config loads configuration for the mindcase consistency layer.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration. Values come from config.yaml or
// environment variables; env always overrides YAML, and secrets are
// env-only.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"`

	// DataDir roots local durable state: the outbox directory and the blob
	// store used in single-node deployments.
	DataDir string `yaml:"data_dir" env:"DATA_DIR" env-default:"./data"`

	// TrustWeightsPath optionally overrides the compiled-in trust weight
	// table with a YAML file.
	TrustWeightsPath string `yaml:"trust_weights_path" env:"TRUST_WEIGHTS_PATH" env-default:""`

	// MigrationsPath points at the SQL migrations applied to each regional
	// shard at startup.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`

	Queue   QueueConfig   `yaml:"queue"`
	Regions RegionsConfig `yaml:"regions"`
	Redis   RedisConfig   `yaml:"redis"`

	// ActorTokenSecret is the HS256 secret shared with the platform auth
	// service for resolving actor ids from bearer tokens.
	ActorTokenSecret string `yaml:"-" env:"ACTOR_TOKEN_SECRET"`
}

// QueueConfig tunes the durable mutation queue.
type QueueConfig struct {
	// MaxRetries is the per-mutation retry budget before dead-lettering.
	MaxRetries int `yaml:"max_retries" env:"QUEUE_MAX_RETRIES" env-default:"5"`

	// Session scopes outbox keys so several sessions can share a storage.
	Session string `yaml:"session" env:"QUEUE_SESSION" env-default:"default"`

	// Backend selects the durable storage: file or redis.
	Backend string `yaml:"backend" env:"QUEUE_BACKEND" env-default:"file"`
}

// RegionsConfig declares the regional shards and tenant assignments.
type RegionsConfig struct {
	// ShardsStr is a comma-separated list of region=postgres-url pairs.
	// Format: "eu-west=postgres://...,us-east=postgres://..."
	ShardsStr string `yaml:"-" env:"REGION_SHARDS"`

	// Shards is parsed from ShardsStr.
	Shards map[string]string `yaml:"-"`

	// TenantsStr assigns tenants to regions: "tenant1=eu-west,tenant2=us-east".
	TenantsStr string `yaml:"tenants" env:"REGION_TENANTS" env-default:""`

	// Tenants is parsed from TenantsStr.
	Tenants map[string]string `yaml:"-"`

	// DefaultRegion serves tenants without an explicit assignment.
	DefaultRegion string `yaml:"default_region" env:"REGION_DEFAULT" env-default:""`
}

// RedisConfig holds the optional Redis outbox backend settings.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Load reads config.yaml (when present) with environment overrides.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read environment: %w", err)
		}
	}

	cfg.Regions.Shards = parsePairs(cfg.Regions.ShardsStr)
	cfg.Regions.Tenants = parsePairs(cfg.Regions.TenantsStr)

	if cfg.Queue.Backend != "file" && cfg.Queue.Backend != "redis" {
		return nil, fmt.Errorf("invalid queue backend %q (want file or redis)", cfg.Queue.Backend)
	}
	if cfg.Queue.Backend == "redis" && cfg.Redis.Host == "" {
		return nil, fmt.Errorf("queue backend redis requires REDIS_HOST")
	}

	return cfg, nil
}

// parsePairs parses "key1=value1,key2=value2" into a map.
func parsePairs(value string) map[string]string {
	pairs := make(map[string]string)
	if value == "" {
		return pairs
	}
	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			pairs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return pairs
}
