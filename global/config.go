package global

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"CollabProject/tools/ids"
)

// AppConfig is the whole gateway configuration, loaded once at startup from
// an optional yaml file plus COLLAB_* environment overrides.
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Nats    NatsConfig    `mapstructure:"nats"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr   string `mapstructure:"addr"`
	WSPath string `mapstructure:"ws_path"`
}

type GatewayConfig struct {
	ID                 string         `mapstructure:"id"`
	MaxFrameBytes      int64          `mapstructure:"max_frame_bytes"`
	SendQueueSize      int            `mapstructure:"send_queue_size"`
	PingInterval       time.Duration  `mapstructure:"ping_interval"`
	WriteTimeout       time.Duration  `mapstructure:"write_timeout"`
	SessionTTL         time.Duration  `mapstructure:"session_ttl"`
	MessageWindow      time.Duration  `mapstructure:"message_window"`
	MessageLimit       int64          `mapstructure:"message_limit"`
	ConnAdmissionWin   time.Duration  `mapstructure:"conn_admission_window"`
	ConnAdmissionLimit int64          `mapstructure:"conn_admission_limit"`
	TierLimits         map[string]int `mapstructure:"tier_limits"`
	DedupeCooldown     time.Duration  `mapstructure:"dedupe_cooldown"`
	AllowedOrigins     []string       `mapstructure:"allowed_origins"`
	UpgradePerSec      float64        `mapstructure:"upgrade_per_sec"`
	UpgradeBurst       int            `mapstructure:"upgrade_burst"`
	DependencyTimeout  time.Duration  `mapstructure:"dependency_timeout"`
}

type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	PoolSize   int    `mapstructure:"pool_size"`
	ClusterTag bool   `mapstructure:"cluster_tag"`
}

type NatsConfig struct {
	Servers []string `mapstructure:"servers"`
	Name    string   `mapstructure:"name"`
	Subject string   `mapstructure:"subject"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	Topic             string   `mapstructure:"topic"`
	Compression       string   `mapstructure:"compression"`
	Retries           int      `mapstructure:"retries"`
	EnsureTopic       bool     `mapstructure:"ensure_topic"`
	Partitions        int32    `mapstructure:"partitions"`
	ReplicationFactor int16    `mapstructure:"replication_factor"`
}

type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	Collection  string `mapstructure:"collection"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	MaxPoolSize int    `mapstructure:"max_pool_size"`
	MaxRetry    int    `mapstructure:"max_retry"`
}

type AuthConfig struct {
	Secret string        `mapstructure:"secret"`
	Alg    string        `mapstructure:"alg"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// C is the loaded configuration singleton.
var C *AppConfig

// Load reads the config file (optional) with env overrides and defaults,
// resolves the gateway instance ID, and sets the singleton.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COLLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Gateway.ID = resolveGatewayID(cfg.Gateway.ID)
	UseClusterTag = cfg.Redis.ClusterTag
	C = cfg
	return cfg, nil
}

// MustLoad is Load for main(); it panics on a broken config file.
func MustLoad(path string) *AppConfig {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.ws_path", "/ws")

	v.SetDefault("gateway.max_frame_bytes", 65536)
	v.SetDefault("gateway.send_queue_size", 256)
	v.SetDefault("gateway.ping_interval", "30s")
	v.SetDefault("gateway.write_timeout", "10s")
	v.SetDefault("gateway.session_ttl", "1h")
	v.SetDefault("gateway.message_window", "60s")
	v.SetDefault("gateway.message_limit", 120)
	v.SetDefault("gateway.conn_admission_window", "60s")
	v.SetDefault("gateway.conn_admission_limit", 30)
	v.SetDefault("gateway.tier_limits", map[string]int{"free": 1, "pro": 5, "enterprise": 100})
	v.SetDefault("gateway.dedupe_cooldown", "2s")
	v.SetDefault("gateway.upgrade_per_sec", 5.0)
	v.SetDefault("gateway.upgrade_burst", 10)
	v.SetDefault("gateway.dependency_timeout", "3s")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.pool_size", 64)

	v.SetDefault("nats.name", "collab-gateway")
	v.SetDefault("nats.subject", "collab.room.broadcast")

	v.SetDefault("kafka.topic", "collab.events")
	v.SetDefault("kafka.compression", "snappy")
	v.SetDefault("kafka.retries", 3)
	v.SetDefault("kafka.partitions", 8)
	v.SetDefault("kafka.replication_factor", 1)

	v.SetDefault("mongo.database", "collab")
	v.SetDefault("mongo.collection", "session_logs")
	v.SetDefault("mongo.max_pool_size", 20)
	v.SetDefault("mongo.max_retry", 3)

	v.SetDefault("auth.alg", "HS256")
	v.SetDefault("auth.ttl", "2h")

	v.SetDefault("log.level", "info")
}

// resolveGatewayID prefers the configured value, then the GATEWAY_ID env,
// then hostname plus a snowflake suffix so two processes on one host differ.
func resolveGatewayID(configured string) string {
	if configured != "" {
		return configured
	}
	if env := os.Getenv("GATEWAY_ID"); env != "" {
		return env
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "gw"
	}
	return host + "-" + ids.GenerateString()
}
