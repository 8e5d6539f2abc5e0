package config

import (
	"os"
	"strconv"
)

// Environment variables that override the config file
const (
	EnvCatalogURL  = "DIBIT_CATALOG_URL"
	EnvPostgresURL = "DIBIT_POSTGRES_URL"
	EnvRabbitMQURL = "DIBIT_RABBITMQ_URL"
	EnvStorage     = "DIBIT_STORAGE"
	EnvPort        = "DIBIT_PORT"
	EnvLogLevel    = "DIBIT_LOG_LEVEL"
	EnvUserID      = "DIBIT_USER_ID"
	EnvQueue       = "DIBIT_QUEUE"
)

// applyEnv overlays environment variables onto cfg
func applyEnv(cfg *LocalConfig) {
	cfg.Catalog.BaseURL = getEnv(EnvCatalogURL, cfg.Catalog.BaseURL)
	cfg.Sync.PostgresURL = getEnv(EnvPostgresURL, cfg.Sync.PostgresURL)
	cfg.Sync.UserID = getEnv(EnvUserID, cfg.Sync.UserID)
	cfg.Queue.RabbitMQURL = getEnv(EnvRabbitMQURL, cfg.Queue.RabbitMQURL)
	cfg.Queue.Enabled = getEnvBool(EnvQueue, cfg.Queue.Enabled)
	cfg.Storage.Backend = getEnv(EnvStorage, cfg.Storage.Backend)
	cfg.Daemon.Port = getEnvInt(EnvPort, cfg.Daemon.Port)
	cfg.Daemon.LogLevel = getEnv(EnvLogLevel, cfg.Daemon.LogLevel)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
