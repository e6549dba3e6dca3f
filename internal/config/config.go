package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort     string
	PublicURL      string
	DevMode        bool
	LogLevel       string
	DBDriver       string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	RedisURL       string
	UserCacheTTL   time.Duration
	JWTSecret      string
	TokenTTL       time.Duration
	UploadDir      string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	AuthTimeout    time.Duration
}

func Load() *Config {
	port := getEnv("SERVER_PORT", "8080")

	cfg := &Config{
		ServerPort:     port,
		PublicURL:      getEnv("PUBLIC_URL", "http://localhost:"+port),
		DevMode:        getEnv("DEV_MODE", "") == "1",
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DBDriver:       getEnv("DB_DRIVER", "postgres"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "relay"),
		DBPassword:     getEnv("DB_PASSWORD", "relay_dev_password"),
		DBName:         getEnv("DB_NAME", "relay"),
		RedisURL:       getEnv("REDIS_URL", ""),
		UserCacheTTL:   getEnvDuration("USER_CACHE_TTL", 5*time.Minute),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:       getEnvDuration("TOKEN_TTL", 24*time.Hour),
		UploadDir:      getEnv("UPLOAD_DIR", "data/uploads"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
		AuthTimeout:    getEnvDuration("AUTH_TIMEOUT", 10*time.Second),
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}

	return cfg
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, exists := os.LookupEnv(key)
	if !exists || val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go duration strings ("30s", "5m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists || val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
