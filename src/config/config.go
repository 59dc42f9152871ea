package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"signal-hub/src/helpers"
	"signal-hub/src/models"

	"gopkg.in/yaml.v3"
)

// Environment overrides applied after the YAML file is read.
const (
	envPort   = "SIGNAL_HUB_PORT"
	envDBPath = "SIGNAL_HUB_DB_PATH"
	envDBDSN  = "SIGNAL_HUB_DB_DSN"
	envPush   = "SIGNAL_HUB_PUSH_URL"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, helpers.NewConfigurationError(fmt.Sprintf("failed to read config file '%s'", configPath), err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a validated Config from raw YAML.
func Parse(data []byte) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, helpers.NewConfigurationError("failed to parse config from YAML", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()
	if err := config.applyEnv(); err != nil {
		return nil, helpers.NewConfigurationError("invalid environment override", err)
	}

	if err := config.Validate(); err != nil {
		return nil, helpers.NewConfigurationError("config validation failed", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Storage.Schema == "" {
		c.Storage.Schema = "signal_hub"
	}
	if c.Storage.DataRetentionDays == 0 {
		c.Storage.DataRetentionDays = 30
	}
	if c.Storage.CleanupIntervalMinutes == 0 {
		c.Storage.CleanupIntervalMinutes = 60
	}

	h := &c.Hub
	if h.MaxSubscriptions == 0 {
		h.MaxSubscriptions = 200
	}
	if h.SendBufferSize == 0 {
		h.SendBufferSize = 256
	}
	if h.EventQueueSize == 0 {
		h.EventQueueSize = 256
	}
	if h.WriteWaitSeconds == 0 {
		h.WriteWaitSeconds = 2
	}
	if h.PongWaitSeconds == 0 {
		h.PongWaitSeconds = 60
	}
	if h.MaxMessageBytes == 0 {
		h.MaxMessageBytes = 64 * 1024
	}
	if h.SubscriptionStore == "" {
		h.SubscriptionStore = "memory"
	}
	if h.PushTimeoutSeconds == 0 {
		h.PushTimeoutSeconds = 5
	}

	if c.Ingest.CalendarMIC == "" {
		c.Ingest.CalendarMIC = "xnys"
	}
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(envPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envPort, v, err)
		}
		c.Port = port
	}
	if v := os.Getenv(envDBPath); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv(envDBDSN); v != "" {
		c.Storage.DBConnectionString = v
	}
	if v := os.Getenv(envPush); v != "" {
		c.Hub.PushURL = v
	}
	return nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}

	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}
	if c.Storage.DataRetentionDays < 0 {
		return fmt.Errorf("data retention days cannot be negative")
	}

	if c.Hub.MaxSubscriptions < 0 {
		return fmt.Errorf("max subscriptions cannot be negative")
	}
	if c.Hub.SendBufferSize < 0 || c.Hub.EventQueueSize < 0 {
		return fmt.Errorf("hub buffer sizes cannot be negative")
	}
	switch c.Hub.SubscriptionStore {
	case "memory", "database":
	default:
		return fmt.Errorf("unsupported subscription store: %s", c.Hub.SubscriptionStore)
	}
	if c.Hub.PushRetries < 0 {
		return fmt.Errorf("push retries cannot be negative")
	}

	if c.Ingest.RateLimitRPS < 0 || c.Ingest.RateLimitBurst < 0 {
		return fmt.Errorf("ingest rate limit cannot be negative")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
