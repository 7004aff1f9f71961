// Package config loads service configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "linkage/pkg/platform/strings"
)

// Config holds all configuration values, grouped by concern.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Auth      AuthConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Profiles  ProfilesConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  slog.Level
	Format string // "json" or "text"
}

// AuthConfig carries the operator token and admin surface secrets.
type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	TokenTTL      time.Duration
	AdminToken    string
}

// PostgresConfig carries the audit outbox database settings.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig carries the shared budget store settings. An empty URL
// disables Redis and the service falls back to in-process budgeting.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig carries the audit trail broker settings. An empty broker list
// disables the relay and consumers.
type KafkaConfig struct {
	Brokers           []string
	GroupID           string
	TopicPartitions   int32
	ReplicationFactor int16
}

// RateLimitConfig carries the request budget table.
type RateLimitConfig struct {
	Disabled      bool
	DetectBudget  int
	DetectWindow  time.Duration
	ReadBudget    int
	ReadWindow    time.Duration
	WriteBudget   int
	WriteWindow   time.Duration
	BypassTenants []string
}

// AuditConfig tunes the outbox relay.
type AuditConfig struct {
	RelayInterval  time.Duration
	RelayBatchSize int
}

// ProfilesConfig locates match profile definitions. When Dir is empty only
// the built-in profiles are registered.
type ProfilesConfig struct {
	Dir string
}

// FromEnv builds the full configuration from LINKAGE_* environment
// variables so main stays lean. Missing values fall back to development
// defaults; production deployments override them.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Addr:            getEnv("LINKAGE_ADDR", ":8080"),
			ShutdownTimeout: getDuration("LINKAGE_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Log: LogConfig{
			Level:  parseLogLevel(getEnv("LINKAGE_LOG_LEVEL", "INFO")),
			Format: getEnv("LINKAGE_LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSigningKey: getEnv("LINKAGE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     getEnv("LINKAGE_JWT_ISSUER", "linkage"),
			JWTAudience:   getEnv("LINKAGE_JWT_AUDIENCE", "linkage-operators"),
			TokenTTL:      getDuration("LINKAGE_TOKEN_TTL", time.Hour),
			AdminToken:    os.Getenv("LINKAGE_ADMIN_TOKEN"),
		},
		Postgres: PostgresConfig{
			URL:             os.Getenv("LINKAGE_POSTGRES_URL"),
			MaxOpenConns:    getInt("LINKAGE_POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("LINKAGE_POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("LINKAGE_POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("LINKAGE_REDIS_URL"),
			PoolSize:     getInt("LINKAGE_REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("LINKAGE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("LINKAGE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("LINKAGE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("LINKAGE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           strutil.SplitList(os.Getenv("LINKAGE_KAFKA_BROKERS")),
			GroupID:           getEnv("LINKAGE_KAFKA_GROUP_ID", "linkage-audit"),
			TopicPartitions:   int32(getInt("LINKAGE_KAFKA_TOPIC_PARTITIONS", 3)),
			ReplicationFactor: int16(getInt("LINKAGE_KAFKA_REPLICATION_FACTOR", 1)),
		},
		RateLimit: RateLimitConfig{
			Disabled:      getBool("LINKAGE_RATELIMIT_DISABLED", false),
			DetectBudget:  getInt("LINKAGE_RATELIMIT_DETECT_BUDGET", 5000),
			DetectWindow:  getDuration("LINKAGE_RATELIMIT_DETECT_WINDOW", time.Minute),
			ReadBudget:    getInt("LINKAGE_RATELIMIT_READ_BUDGET", 300),
			ReadWindow:    getDuration("LINKAGE_RATELIMIT_READ_WINDOW", time.Minute),
			WriteBudget:   getInt("LINKAGE_RATELIMIT_WRITE_BUDGET", 60),
			WriteWindow:   getDuration("LINKAGE_RATELIMIT_WRITE_WINDOW", time.Minute),
			BypassTenants: strutil.SplitList(os.Getenv("LINKAGE_RATELIMIT_BYPASS_TENANTS")),
		},
		Audit: AuditConfig{
			RelayInterval:  getDuration("LINKAGE_AUDIT_RELAY_INTERVAL", time.Second),
			RelayBatchSize: getInt("LINKAGE_AUDIT_RELAY_BATCH_SIZE", 100),
		},
		Profiles: ProfilesConfig{
			Dir: os.Getenv("LINKAGE_PROFILES_DIR"),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1"
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
