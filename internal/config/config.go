package config

import (
	"os"
	"strconv"
	"strings"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Kafka     KafkaConfig     `json:"kafka"`
	Logger    LoggerConfig    `json:"logger"`
	Coupons   CouponsConfig   `json:"coupons"`
	Analytics AnalyticsConfig `json:"analytics"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
}

// DatabaseConfig represents the database connection settings
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig represents the Redis connection settings
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// KafkaConfig represents the Kafka connection settings
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	GroupID string   `json:"group_id"`
	Topics  Topics   `json:"topics"`
}

// Topics lists the Kafka topics used by the service
type Topics struct {
	Coupons  string `json:"coupons"`
	Offers   string `json:"offers"`
	Partners string `json:"partners"`
}

// LoggerConfig represents the logger settings
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// CouponsConfig holds coupon code and token generation settings
type CouponsConfig struct {
	CodeLength     int `json:"code_length"`
	TokenBytes     int `json:"token_bytes"`
	MaxCodeRetries int `json:"max_code_retries"`
}

// AnalyticsConfig holds analytics aggregation settings
type AnalyticsConfig struct {
	CacheTTLMinutes       int `json:"cache_ttl_minutes"`
	MaxRangeDays          int `json:"max_range_days"`
	TopOffersLimit        int `json:"top_offers_limit"`
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`
}

// RateLimitConfig describes rate limiting settings
type RateLimitConfig struct {
	Enabled       bool   `json:"enabled"`
	Requests      int    `json:"requests"`
	WindowSeconds int    `json:"window_seconds"`
	KeyPrefix     string `json:"key_prefix"`
}

// Load reads the configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "deals_user"),
			Password: getEnv("DB_PASSWORD", "deals_pass"),
			DBName:   getEnv("DB_NAME", "deals_system"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "deals-service"),
			Topics: Topics{
				Coupons:  getEnv("KAFKA_TOPIC_COUPONS", "coupons"),
				Offers:   getEnv("KAFKA_TOPIC_OFFERS", "offers"),
				Partners: getEnv("KAFKA_TOPIC_PARTNERS", "partners"),
			},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Coupons: CouponsConfig{
			CodeLength:     getEnvAsInt("COUPON_CODE_LENGTH", 10),
			TokenBytes:     getEnvAsInt("COUPON_TOKEN_BYTES", 32),
			MaxCodeRetries: getEnvAsInt("COUPON_CODE_MAX_RETRIES", 5),
		},
		Analytics: AnalyticsConfig{
			CacheTTLMinutes:       getEnvAsInt("ANALYTICS_CACHE_TTL_MINUTES", 10),
			MaxRangeDays:          getEnvAsInt("ANALYTICS_MAX_RANGE_DAYS", 365),
			TopOffersLimit:        getEnvAsInt("ANALYTICS_TOP_OFFERS_LIMIT", 5),
			RequestTimeoutSeconds: getEnvAsInt("ANALYTICS_REQUEST_TIMEOUT_SECONDS", 5),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", false),
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			KeyPrefix:     getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
		},
	}
}

// getEnv returns the environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns the environment variable parsed as int or a default
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool returns the environment variable parsed as bool or a default
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(getEnv(key, ""))
	if valueStr == "true" || valueStr == "1" || valueStr == "yes" {
		return true
	}
	if valueStr == "false" || valueStr == "0" || valueStr == "no" {
		return false
	}
	return defaultValue
}
