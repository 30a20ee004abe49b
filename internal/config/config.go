package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port               string
	DBConnectionString string
	GitHub             GitHubConfig
	JWTSecret          string
	TokenTTL           time.Duration
	RefreshInterval    time.Duration
}

func Load() (*Config, error) {
	port := getEnv("PORT", "8080")
	dbConnStr := getEnv("DB_CONNECTION_STRING", "")
	jwtSecret := getEnv("JWT_SECRET", "")

	refreshInterval, err := strconv.Atoi(getEnv("REFRESH_INTERVAL_MINUTES", "0"))
	if err != nil {
		return nil, err
	}

	tokenTTL, err := strconv.Atoi(getEnv("TOKEN_TTL_HOURS", "24"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:               port,
		DBConnectionString: dbConnStr,
		GitHub:             loadGitHubConfig(),
		JWTSecret:          jwtSecret,
		TokenTTL:           time.Duration(tokenTTL) * time.Hour,
		RefreshInterval:    time.Duration(refreshInterval) * time.Minute,
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
