package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string

	HTTPAddr string

	B2BAPIURL     string
	B2BAPIKey     string
	B2BSiteID     int64
	EncryptionKey string

	APITimeout    time.Duration
	SyncFrequency time.Duration
	LockTTL       time.Duration
	FetchDetail   bool

	MediaRoot string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	syncFrequency := time.Duration(getenvInt64("INVENTORY_SYNC_FREQUENCY", 60)) * time.Minute
	if syncFrequency < time.Minute {
		syncFrequency = time.Minute
	}

	apiTimeout := time.Duration(getenvInt64("INVENTORY_API_TIMEOUT", 30)) * time.Second
	if apiTimeout <= 0 {
		apiTimeout = 30 * time.Second
	}

	return Config{
		AppName:       getenv("APP_SERVICE", "boutique"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		B2BAPIURL:     strings.TrimRight(getenv("B2B_API_URL", "https://www.bolibanastock.com/api/v1"), "/"),
		B2BAPIKey:     strings.TrimSpace(getenv("B2B_API_KEY", "")),
		B2BSiteID:     getenvInt64("B2B_SITE_ID", 0),
		EncryptionKey: getenv("INVENTORY_ENCRYPTION_KEY", ""),
		APITimeout:    apiTimeout,
		SyncFrequency: syncFrequency,
		LockTTL:       getenvDuration("INVENTORY_LOCK_TTL", 30*time.Minute),
		FetchDetail:   getenvBool("INVENTORY_FETCH_DETAIL", false),
		MediaRoot:     getenv("MEDIA_ROOT", "./media"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       int(getenvInt64("REDIS_DB", 0)),
		DBType:        getenv("DATABASE_TYPE", "postgres"),
		DBHost:        getenv("DATABASE_HOST", "localhost"),
		DBPort:        getenv("DATABASE_PORT", "5432"),
		DBName:        getenv("DATABASE_NAME", "boutique"),
		DBUser:        getenv("DATABASE_USER", "postgres"),
		DBPassword:    getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:     getenv("DATABASE_SSLMODE", "disable"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
