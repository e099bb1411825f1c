package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Addr           string
	DBPath         string
	SecureCookies  bool
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
	BcryptCost     int
}

// loadConfig reads .env, if present, and then the process environment.
func loadConfig() Config {
	godotenv.Load()

	return Config{
		Addr:           getEnv("ADDR", ":8080"),
		DBPath:         getEnv("DB_PATH", "blog.db"),
		SecureCookies:  getEnvBool("SECURE_COOKIES", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		BcryptCost:     getEnvInt("BCRYPT_COST", bcrypt.DefaultCost),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
