package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	GRPC      GRPCConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Kafka     KafkaConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Name string
	Env  string
	// InstanceID tags events this process forwards to kafka
	InstanceID string
}

type HTTPConfig struct {
	Port               string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
}

type GRPCConfig struct {
	Port string
}

type StorageConfig struct {
	Driver   string // memory, redis, sqlite, postgres, mongo
	TTL      time.Duration
	Redis    RedisConfig
	SQLite   SQLiteConfig
	Postgres PostgresConfig
	Mongo    MongoConfig
	Breaker  BreakerConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type SQLiteConfig struct {
	Path string
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

type BreakerConfig struct {
	Enabled      bool
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type TelemetryConfig struct {
	Enabled     bool
	ServiceName string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "milkshop")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.instance_id", "")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_request_body_size", 1<<20)

	v.SetDefault("grpc.port", "50051")

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.ttl", time.Duration(0))
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "milkshop")
	v.SetDefault("storage.sqlite.path", "milkshop.db")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.user", "milkshop")
	v.SetDefault("storage.postgres.dbname", "milkshop")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo.database", "milkshop")
	v.SetDefault("storage.mongo.collection", "kv")
	v.SetDefault("storage.breaker.enabled", true)
	v.SetDefault("storage.breaker.max_requests", 3)
	v.SetDefault("storage.breaker.interval", time.Minute)
	v.SetDefault("storage.breaker.timeout", 30*time.Second)
	v.SetDefault("storage.breaker.failure_ratio", 0.6)
	v.SetDefault("storage.breaker.min_requests", 5)

	v.SetDefault("auth.issuer", "")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "milkshop-events")
	v.SetDefault("kafka.group_id", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "milkshop")
}

// Load reads configuration in order of precedence:
// MILKSHOP_* environment variables (a .env file is loaded into the
// environment first), config.yaml, built-in defaults.
func Load() (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/milkshop")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MILKSHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:       v.GetString("app.name"),
			Env:        v.GetString("app.env"),
			InstanceID: v.GetString("app.instance_id"),
		},
		HTTP: HTTPConfig{
			Port:               v.GetString("http.port"),
			RequestTimeout:     v.GetDuration("http.request_timeout"),
			ShutdownTimeout:    v.GetDuration("http.shutdown_timeout"),
			MaxRequestBodySize: v.GetInt64("http.max_request_body_size"),
		},
		GRPC: GRPCConfig{
			Port: v.GetString("grpc.port"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(v.GetString("storage.driver")),
			TTL:    v.GetDuration("storage.ttl"),
			Redis: RedisConfig{
				Addr:     v.GetString("storage.redis.addr"),
				Password: v.GetString("storage.redis.password"),
				DB:       v.GetInt("storage.redis.db"),
				Prefix:   v.GetString("storage.redis.prefix"),
			},
			SQLite: SQLiteConfig{
				Path: v.GetString("storage.sqlite.path"),
			},
			Postgres: PostgresConfig{
				Host:     v.GetString("storage.postgres.host"),
				Port:     v.GetInt("storage.postgres.port"),
				User:     v.GetString("storage.postgres.user"),
				Password: v.GetString("storage.postgres.password"),
				DBName:   v.GetString("storage.postgres.dbname"),
				SSLMode:  v.GetString("storage.postgres.sslmode"),
			},
			Mongo: MongoConfig{
				URI:        v.GetString("storage.mongo.uri"),
				Database:   v.GetString("storage.mongo.database"),
				Collection: v.GetString("storage.mongo.collection"),
			},
			Breaker: BreakerConfig{
				Enabled:      v.GetBool("storage.breaker.enabled"),
				MaxRequests:  v.GetUint32("storage.breaker.max_requests"),
				Interval:     v.GetDuration("storage.breaker.interval"),
				Timeout:      v.GetDuration("storage.breaker.timeout"),
				FailureRatio: v.GetFloat64("storage.breaker.failure_ratio"),
				MinRequests:  v.GetUint32("storage.breaker.min_requests"),
			},
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
		},
		Kafka: KafkaConfig{
			Enabled: v.GetBool("kafka.enabled"),
			Brokers: splitList(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
			GroupID: v.GetString("kafka.group_id"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:     v.GetBool("telemetry.enabled"),
			ServiceName: v.GetString("telemetry.service_name"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "redis", "sqlite", "postgres", "mongo":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}
	return nil
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
