package config

import (
	"time"

	pkgconfig "github.com/weiawesome/wes-auction/pkg/config"
	"github.com/weiawesome/wes-auction/pkg/pubsub"
	"github.com/weiawesome/wes-auction/pkg/storage"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	PubSub     pubsub.Config  `mapstructure:"pubsub"`
	Storage    storage.Config `mapstructure:"storage"`
	Auth       AuthConfig
	Reconciler ReconcilerConfig
	Cache      CacheConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	TimeZone        string `mapstructure:"timezone"`
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig configures the follows CDC consumer. Empty brokers disable it.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type ReconcilerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	TopN     int           `mapstructure:"top_n"`
}

type CacheConfig struct {
	ListTTL   time.Duration `mapstructure:"list_ttl"`
	URLExpiry time.Duration `mapstructure:"url_expiry"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var defaults = map[string]any{
	"server.host":                "0.0.0.0",
	"server.port":                8096,
	"database.driver":            "postgres",
	"database.host":              "localhost",
	"database.port":              5432,
	"database.user":              "postgres",
	"database.password":          "postgres",
	"database.dbname":            "postgres",
	"database.sslmode":           "disable",
	"database.timezone":          "UTC",
	"database.file_path":         "./data/author.db",
	"database.max_idle_conns":    10,
	"database.max_open_conns":    100,
	"database.conn_max_lifetime": 60,
	"database.log_level":         "warn",
	"database.auto_migrate":      true,
	"redis.address":              "localhost:6379",
	"redis.password":             "",
	"redis.db":                   0,
	"kafka.brokers":              "",
	"kafka.topic":                "dbserver1.public.follows",
	"kafka.group_id":             "author-service",
	"pubsub.driver":              "redis",
	"pubsub.redis.address":       "localhost:6379",
	"pubsub.kafka.brokers":       "localhost:9092",
	"pubsub.kafka.partitions":    3,
	"storage.driver":             "local",
	"storage.local.public_url":   "/images",
	"storage.s3.region":          "us-east-1",
	"storage.s3.use_path_style":  false,
	"auth.enabled":               false,
	"auth.jwt_secret":            "",
	"auth.issuer":                "wes-auction",
	"reconciler.interval":        "60s",
	"reconciler.top_n":           100,
	"cache.list_ttl":             "30s",
	"cache.url_expiry":           "15m",
	"log.level":                  "info",
}

var envs = map[string]string{
	"server.port":                  "PORT",
	"database.driver":              "DB_DRIVER",
	"database.host":                "DB_HOST",
	"database.port":                "DB_PORT",
	"database.user":                "DB_USER",
	"database.password":            "DB_PASSWORD",
	"database.dbname":              "DB_NAME",
	"database.sslmode":             "DB_SSLMODE",
	"database.file_path":           "DB_FILE_PATH",
	"database.max_idle_conns":      "DB_MAX_IDLE_CONNS",
	"database.max_open_conns":      "DB_MAX_OPEN_CONNS",
	"database.conn_max_lifetime":   "DB_CONN_MAX_LIFETIME",
	"database.log_level":           "DB_LOG_LEVEL",
	"database.auto_migrate":        "DB_AUTO_MIGRATE",
	"redis.address":                "REDIS_ADDRESS",
	"redis.password":               "REDIS_PASSWORD",
	"redis.db":                     "REDIS_DB",
	"kafka.brokers":                "KAFKA_BROKERS",
	"kafka.topic":                  "KAFKA_TOPIC",
	"kafka.group_id":               "KAFKA_GROUP_ID",
	"pubsub.driver":                "PUBSUB_DRIVER",
	"pubsub.redis.address":         "PUBSUB_REDIS_ADDRESS",
	"pubsub.kafka.brokers":         "PUBSUB_KAFKA_BROKERS",
	"storage.driver":               "STORAGE_DRIVER",
	"storage.local.public_url":     "STORAGE_LOCAL_PUBLIC_URL",
	"storage.s3.endpoint":          "S3_ENDPOINT",
	"storage.s3.region":            "S3_REGION",
	"storage.s3.bucket":            "S3_BUCKET",
	"storage.s3.access_key_id":     "S3_ACCESS_KEY_ID",
	"storage.s3.secret_access_key": "S3_SECRET_ACCESS_KEY",
	"storage.s3.use_path_style":    "S3_USE_PATH_STYLE",
	"storage.s3.public_url":        "S3_PUBLIC_URL",
	"auth.enabled":                 "AUTH_ENABLED",
	"auth.jwt_secret":              "JWT_SECRET",
	"auth.issuer":                  "JWT_ISSUER",
	"reconciler.interval":          "RECONCILER_INTERVAL",
	"reconciler.top_n":             "RECONCILER_TOP_N",
	"cache.list_ttl":               "CACHE_LIST_TTL",
	"cache.url_expiry":             "CACHE_URL_EXPIRY",
	"log.level":                    "LOG_LEVEL",
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	pkgconfig.SetDefaults(v, defaults)
	if err := pkgconfig.BindEnvs(v, envs); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
