package config

import (
	"time"

	pkgconfig "github.com/poornimax/crushline/pkg/config"
	"github.com/poornimax/crushline/pkg/database"
	pkglog "github.com/poornimax/crushline/pkg/log"
	"github.com/poornimax/crushline/pkg/pubsub"
	"github.com/poornimax/crushline/pkg/storage"
)

type Config struct {
	Server       ServerConfig
	Database     database.Config
	Redis        RedisConfig
	PubSub       pubsub.Config `mapstructure:"pubsub"`
	Kafka        KafkaConfig
	Auth         AuthConfig
	WebSocket    WebSocketConfig `mapstructure:"websocket"`
	Relationship RelationshipConfig
	Archive      storage.Config
	Reconciler   ReconcilerConfig
	Log          pkglog.Config
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	StatsTTL time.Duration `mapstructure:"stats_ttl"`
}

// KafkaConfig configures domain event production. An empty broker list
// disables it.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type WebSocketConfig struct {
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type RelationshipConfig struct {
	MaxRetries  int           `mapstructure:"max_retries"`
	LockBackend string        `mapstructure:"lock_backend"` // "local", "redis"
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	LockWait    time.Duration `mapstructure:"lock_wait"`
}

type ReconcilerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	TopN     int           `mapstructure:"top_n"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "crushline")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/crushline.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stats_ttl", "10m")
	v.SetDefault("pubsub.driver", "memory")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.redis.read_timeout", "3s")
	v.SetDefault("pubsub.redis.write_timeout", "3s")
	v.SetDefault("pubsub.kafka.group_id", "crushline-relay")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "crushline.relationship-events")
	v.SetDefault("auth.issuer", "crushline")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("relationship.max_retries", 3)
	v.SetDefault("relationship.lock_backend", "local")
	v.SetDefault("relationship.lock_ttl", "5s")
	v.SetDefault("relationship.lock_wait", "3s")
	v.SetDefault("archive.driver", "local")
	v.SetDefault("archive.local.base_path", "./data/archive")
	v.SetDefault("archive.s3.region", "us-east-1")
	v.SetDefault("reconciler.interval", "60s")
	v.SetDefault("reconciler.top_n", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "crushline")

	err = pkgconfig.BindEnvs(v, map[string]string{
		"server.port":                  "PORT",
		"database.driver":              "DB_DRIVER",
		"database.host":                "DB_HOST",
		"database.port":                "DB_PORT",
		"database.user":                "DB_USER",
		"database.password":            "DB_PASSWORD",
		"database.dbname":              "DB_NAME",
		"database.sslmode":             "DB_SSLMODE",
		"database.file_path":           "DB_FILE_PATH",
		"redis.address":                "REDIS_ADDRESS",
		"redis.password":               "REDIS_PASSWORD",
		"redis.db":                     "REDIS_DB",
		"pubsub.driver":                "PUBSUB_DRIVER",
		"pubsub.redis.address":         "PUBSUB_REDIS_ADDRESS",
		"pubsub.kafka.brokers":         "PUBSUB_KAFKA_BROKERS",
		"kafka.brokers":                "KAFKA_BROKERS",
		"kafka.topic":                  "KAFKA_TOPIC",
		"auth.jwt_secret":              "JWT_SECRET",
		"auth.issuer":                  "JWT_ISSUER",
		"relationship.max_retries":     "RELATIONSHIP_MAX_RETRIES",
		"relationship.lock_backend":    "RELATIONSHIP_LOCK_BACKEND",
		"archive.driver":               "ARCHIVE_DRIVER",
		"archive.local.base_path":      "ARCHIVE_BASE_PATH",
		"archive.s3.endpoint":          "ARCHIVE_S3_ENDPOINT",
		"archive.s3.bucket":            "ARCHIVE_S3_BUCKET",
		"archive.s3.access_key_id":     "ARCHIVE_S3_ACCESS_KEY_ID",
		"archive.s3.secret_access_key": "ARCHIVE_S3_SECRET_ACCESS_KEY",
		"reconciler.interval":          "RECONCILER_INTERVAL",
		"reconciler.top_n":             "RECONCILER_TOP_N",
		"log.level":                    "LOG_LEVEL",
		"log.pretty":                   "LOG_PRETTY",
	})
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
