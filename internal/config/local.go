package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageLocal  = "local"
	StorageSQLite = "sqlite"
)

// LocalConfig holds configuration for the CLI and the local daemon
type LocalConfig struct {
	Daemon   DaemonConfig   `yaml:"daemon"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Storage  StorageConfig  `yaml:"storage"`
	Calendar CalendarConfig `yaml:"calendar"`
	Sync     SyncConfig     `yaml:"sync"`
	Queue    QueueConfig    `yaml:"queue"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"`
	LogLevel string `yaml:"log_level"`
}

// CatalogConfig holds course catalog settings
type CatalogConfig struct {
	BaseURL          string `yaml:"base_url"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	MaxAttempts      int    `yaml:"max_attempts"`
	CacheTTLHours    int    `yaml:"cache_ttl_hours"`
	PrefetchUpcoming bool   `yaml:"prefetch_upcoming"`
}

// Timeout returns the per-request timeout
func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long a persisted catalog document is fresh
func (c CatalogConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// StorageConfig selects where the selection document lives
type StorageConfig struct {
	Backend string `yaml:"backend"`
}

// CalendarConfig holds export settings
type CalendarConfig struct {
	Timezone string `yaml:"timezone"`
}

// SyncConfig holds cloud sync settings
type SyncConfig struct {
	UserID      string `yaml:"user_id"`
	Table       string `yaml:"table"`
	PostgresURL string `yaml:"-"` // Loaded from secrets.yaml
}

// QueueConfig holds prefetch queue settings
type QueueConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Workers     int    `yaml:"workers"`
	RabbitMQURL string `yaml:"-"` // Loaded from secrets.yaml
}

// SecretsConfig holds connection strings loaded from secrets.yaml
type SecretsConfig struct {
	PostgresURL string `yaml:"postgres_url,omitempty"`
	RabbitMQURL string `yaml:"rabbitmq_url,omitempty"`
}

// DibitDir returns the path to ~/.dibit
func DibitDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".dibit"), nil
}

// EnsureDibitDir creates ~/.dibit and subdirectories if they don't exist
func EnsureDibitDir() (string, error) {
	dir, err := DibitDir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "data", "cache", "custom"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:     7433,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		Catalog: CatalogConfig{
			BaseURL:          "https://arazim-project.com/data",
			TimeoutSeconds:   30,
			MaxAttempts:      3,
			CacheTTLHours:    12,
			PrefetchUpcoming: true,
		},
		Storage: StorageConfig{
			Backend: StorageLocal,
		},
		Calendar: CalendarConfig{
			Timezone: "Asia/Jerusalem",
		},
		Sync: SyncConfig{
			Table: "dibit_documents",
		},
		Queue: QueueConfig{
			Enabled: false,
			Workers: 2,
		},
	}
}

// Validate checks settings that would otherwise fail late
func (c *LocalConfig) Validate() error {
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port %d out of range", c.Daemon.Port)
	}
	switch c.Storage.Backend {
	case StorageLocal, StorageSQLite:
	default:
		return fmt.Errorf("storage.backend %q: want %q or %q", c.Storage.Backend, StorageLocal, StorageSQLite)
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url must be set")
	}
	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		return fmt.Errorf("calendar.timezone: %w", err)
	}
	return nil
}

// LoadLocalConfig loads configuration from ~/.dibit/config.yaml and applies
// environment overrides
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := DibitDir()
	if err != nil {
		return nil, err
	}
	return LoadLocalConfigFrom(dir)
}

// LoadLocalConfigFrom loads configuration from dir/config.yaml
func LoadLocalConfigFrom(dir string) (*LocalConfig, error) {
	cfg := DefaultLocalConfig()

	configPath := filepath.Join(dir, "config.yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// loadSecrets loads connection strings from secrets.yaml
func loadSecrets(dir string, cfg *LocalConfig) error {
	secretsPath := filepath.Join(dir, "secrets.yaml")

	data, err := os.ReadFile(secretsPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	cfg.Sync.PostgresURL = secrets.PostgresURL
	cfg.Queue.RabbitMQURL = secrets.RabbitMQURL
	return nil
}

// SaveLocalConfig saves configuration to ~/.dibit/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureDibitDir()
	if err != nil {
		return err
	}
	return SaveLocalConfigTo(dir, cfg)
}

// SaveLocalConfigTo saves configuration to dir/config.yaml
func SaveLocalConfigTo(dir string, cfg *LocalConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// SaveSecrets saves connection strings to ~/.dibit/secrets.yaml
func SaveSecrets(secrets SecretsConfig) error {
	dir, err := EnsureDibitDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// Owner read/write only
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}

	return nil
}
