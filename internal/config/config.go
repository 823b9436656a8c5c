package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the immutable process-wide configuration. It is constructed once
// at startup and passed by reference to the components that need it; nothing
// reads the environment after Load returns.
type Config struct {
	Environment string

	Server     ServerConfig
	Redis      RedisConfig
	Scylla     ScyllaConfig
	Clickhouse ClickhouseConfig
	Kafka      KafkaConfig
	SMS        SMSConfig
	JWT        JWTConfig
	OTP        OTPConfig
	RateLimit  RateLimitConfig
	Hashing    HashingConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CertFile     string
	KeyFile      string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type ClickhouseConfig struct {
	URL      string
	Database string
	Username string
	Password string
}

type KafkaConfig struct {
	Brokers            []string
	SecurityEventTopic string
}

// SMSConfig carries the delivery gateway credentials. An incomplete SMSConfig
// is a valid degraded state: codes are logged instead of delivered.
type SMSConfig struct {
	Endpoint   string
	SenderID   string
	TemplateID string
	AuthKey    string
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

type OTPConfig struct {
	Expiry time.Duration
}

// RateLimitConfig holds per-route fixed-window limits. A zero limit disables
// the check for that route.
type RateLimitConfig struct {
	SendOTPLimit   int
	VerifyOTPLimit int
	Window         time.Duration
}

type HashingConfig struct {
	Argon2MemoryCost  int
	Argon2TimeCost    int
	Argon2Parallelism int
	Pepper            string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load builds the configuration from the environment. A .env file is honored
// when present. Missing JWT secret is a hard error: token signing must be
// configured before the process serves a single request.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			CertFile:     os.Getenv("SERVER_CERT_FILE"),
			KeyFile:      os.Getenv("SERVER_KEY_FILE"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Scylla: ScyllaConfig{
			Nodes:    splitList(getEnv("SCYLLA_NODES", "localhost:9042")),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "sentinel_auth"),
			Username: os.Getenv("SCYLLA_USERNAME"),
			Password: os.Getenv("SCYLLA_PASSWORD"),
		},
		Clickhouse: ClickhouseConfig{
			URL:      getEnv("CLICKHOUSE_URL", "http://localhost:8123"),
			Database: getEnv("CLICKHOUSE_DATABASE", "sentinel_auth"),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		},
		Kafka: KafkaConfig{
			Brokers:            splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			SecurityEventTopic: getEnv("KAFKA_SECURITY_EVENT_TOPIC", "auth.security-events"),
		},
		SMS: SMSConfig{
			Endpoint:   os.Getenv("SMS_ENDPOINT"),
			SenderID:   os.Getenv("SMS_SENDER_ID"),
			TemplateID: os.Getenv("SMS_TEMPLATE_ID"),
			AuthKey:    os.Getenv("SMS_AUTH_KEY"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Expiry: getEnvDuration("JWT_EXPIRY", 168*time.Hour),
			Issuer: getEnv("JWT_ISSUER", "sentinel-auth"),
		},
		OTP: OTPConfig{
			Expiry: getEnvDuration("OTP_EXPIRY", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			SendOTPLimit:   getEnvInt("RATE_LIMIT_SEND_OTP", 3),
			VerifyOTPLimit: getEnvInt("RATE_LIMIT_VERIFY_OTP", 5),
			Window:         getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Hashing: HashingConfig{
			Argon2MemoryCost:  getEnvInt("ARGON2_MEMORY_COST", 64*1024),
			Argon2TimeCost:    getEnvInt("ARGON2_TIME_COST", 1),
			Argon2Parallelism: getEnvInt("ARGON2_PARALLELISM", 4),
			Pepper:            os.Getenv("OTP_HASH_PEPPER"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set: refusing to start without a signing secret")
	}
	if cfg.Hashing.Pepper == "" {
		// Codes must survive process restarts, so the pepper comes from
		// config rather than being generated in memory.
		cfg.Hashing.Pepper = cfg.JWT.Secret
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return !c.IsProduction()
}

// SMSConfigured reports whether every gateway credential is present. Partial
// configuration counts as unconfigured.
func (c *Config) SMSConfigured() bool {
	s := c.SMS
	return s.Endpoint != "" && s.SenderID != "" && s.TemplateID != "" && s.AuthKey != ""
}

func (c *Config) ServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
