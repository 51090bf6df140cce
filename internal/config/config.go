package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/reports/archive"
	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuation"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Logging   LoggingConfig   `json:"logging"`
	Valuation ValuationConfig `json:"valuation"`
	Archive   archive.Config  `json:"archive"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// ValuationConfig tunes the engine, the lookup cache and the revaluation worker
type ValuationConfig struct {
	MaxConcurrentBlocks   int    `json:"max_concurrent_blocks"`
	CalculationVersion    string `json:"calculation_version"`
	LookupCacheTTLSeconds int    `json:"lookup_cache_ttl_seconds"`

	// RevaluationSchedule is a standard five-field cron expression
	RevaluationSchedule   string `json:"revaluation_schedule"`
	RevaluationBatchSize  int    `json:"revaluation_batch_size"`
	RevaluationConcurrent int    `json:"revaluation_concurrent"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	// A missing file is not an error; env vars may carry everything
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "valuation_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Valuation: ValuationConfig{
			MaxConcurrentBlocks:   4,
			CalculationVersion:    valuation.CurrentCalculationVersion,
			LookupCacheTTLSeconds: 300,
			RevaluationSchedule:   "0 2 * * *",
			RevaluationBatchSize:  100,
			RevaluationConcurrent: 4,
		},
		Archive: archive.DefaultConfig(),
	}
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		config.Database.SSLMode = sslMode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if n := os.Getenv("VALUATION_MAX_CONCURRENT_BLOCKS"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			config.Valuation.MaxConcurrentBlocks = v
		}
	}
	if ttl := os.Getenv("VALUATION_LOOKUP_CACHE_TTL_SECONDS"); ttl != "" {
		if v, err := strconv.Atoi(ttl); err == nil {
			config.Valuation.LookupCacheTTLSeconds = v
		}
	}
	if schedule := os.Getenv("VALUATION_REVALUATION_SCHEDULE"); schedule != "" {
		config.Valuation.RevaluationSchedule = schedule
	}
	if bucket := os.Getenv("ARCHIVE_BUCKET"); bucket != "" {
		config.Archive.Bucket = bucket
		config.Archive.Enabled = true
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.Archive.Region = region
	}
}

// Validate rejects settings the binaries cannot start with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Valuation.MaxConcurrentBlocks < 0 {
		return fmt.Errorf("max_concurrent_blocks must not be negative")
	}
	if c.Valuation.LookupCacheTTLSeconds < 0 {
		return fmt.Errorf("lookup_cache_ttl_seconds must not be negative")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive is enabled but no bucket is set")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LookupCacheTTL returns the lookup cache lifetime; zero disables caching
func (c ValuationConfig) LookupCacheTTL() time.Duration {
	return time.Duration(c.LookupCacheTTLSeconds) * time.Second
}

// EngineConfig returns the engine settings
func (c ValuationConfig) EngineConfig() valuation.EngineConfig {
	return valuation.EngineConfig{
		MaxConcurrentBlocks: c.MaxConcurrentBlocks,
		CalculationVersion:  c.CalculationVersion,
	}
}
