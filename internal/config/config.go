package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/Hojaeaga/replyguy-monorepo/internal/ai"
	"github.com/Hojaeaga/replyguy-monorepo/internal/pipeline"
	"github.com/Hojaeaga/replyguy-monorepo/internal/queue"
	"github.com/Hojaeaga/replyguy-monorepo/internal/social"
	pkgconfig "github.com/Hojaeaga/replyguy-monorepo/pkg/config"
)

// Config holds configuration for both the ingestion API and the worker.
type Config struct {
	Server   ServerConfig
	Queue    queue.Config
	Database DatabaseConfig
	AI       ai.Config
	Social   social.Config
	Pipeline pipeline.Config
	Log      LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string `mapstructure:"db_name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type LogConfig struct {
	Level string
}

// Load reads configuration from config.yaml and environment variables.
func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("queue.driver", "redis")
	v.SetDefault("queue.redis.address", "localhost:6379")
	v.SetDefault("queue.redis.password", "")
	v.SetDefault("queue.redis.db", 0)
	v.SetDefault("queue.redis.group", "replyguy-workers")
	v.SetDefault("queue.redis.read_block", "2s")
	v.SetDefault("queue.redis.read_count", 1)
	v.SetDefault("queue.redis.claim_min_idle", "5m")
	v.SetDefault("queue.kafka.brokers", "localhost:9092")
	v.SetDefault("queue.kafka.group_id", "replyguy-workers")
	v.SetDefault("queue.kafka.auto_offset_reset", "latest")
	v.SetDefault("queue.kafka.partitions", 1)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "replyguy")
	v.SetDefault("database.db_name", "replyguy")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("ai.base_url", "http://localhost:8000")
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("social.base_url", "https://api.neynar.com/v2/farcaster")
	v.SetDefault("social.timeout", "15s")
	v.SetDefault("pipeline.similarity_threshold", 0.4)
	v.SetDefault("pipeline.max_peers", 3)
	v.SetDefault("pipeline.fan_out_limit", 5)
	v.SetDefault("log.level", "info")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("queue.driver", "QUEUE_DRIVER")
	v.BindEnv("queue.redis.address", "REDIS_ADDRESS")
	v.BindEnv("queue.redis.password", "REDIS_PASSWORD")
	v.BindEnv("queue.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("ai.base_url", "AI_AGENT_URL")
	v.BindEnv("social.api_key", "NEYNAR_API_KEY")
	v.BindEnv("social.signer_uuid", "NEYNAR_SIGNER_UUID")
	v.BindEnv("social.webhook_id", "NEYNAR_WEBHOOK_ID")
	v.BindEnv("social.webhook_url", "NEYNAR_WEBHOOK_URL")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Queue.Redis.ReadBlock = parseDuration(v, "queue.redis.read_block", 2*time.Second)
	cfg.Queue.Redis.ClaimMinIdle = parseDuration(v, "queue.redis.claim_min_idle", 5*time.Minute)
	cfg.AI.Timeout = parseDuration(v, "ai.timeout", 60*time.Second)
	cfg.Social.Timeout = parseDuration(v, "social.timeout", 15*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
