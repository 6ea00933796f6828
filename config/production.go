// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/outreach-autopilot/utils"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Deployment DeploymentConfig `json:"deployment"`
	Autopilot  AutopilotConfig  `json:"autopilot"`
	Ranker     ProviderConfig   `json:"ranker"`
	ContentGen ProviderConfig   `json:"content_gen"`
	Delivery   ProviderConfig   `json:"delivery"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	EnableCompression bool          `json:"enable_compression"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per minute
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// API Security
	RequireAPIKey  bool     `json:"require_api_key"`
	APIKeyHeader   string   `json:"api_key_header"`
	AllowedAPIKeys []string `json:"allowed_api_keys"`
	IPBlacklist    []string `json:"ip_blacklist"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	// Access Logs
	EnableAccessLog bool `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled       bool          `json:"enabled"`
	RedisURL      string        `json:"redis_url"`
	RedisDB       int           `json:"redis_db"`
	RedisPassword string        `json:"redis_password"`
	RedisPrefix   string        `json:"redis_prefix"`
	DefaultTTL    time.Duration `json:"default_ttl"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// AutopilotConfig tunes the scheduled runs
type AutopilotConfig struct {
	Enabled             bool          `json:"enabled"`
	Interval            time.Duration `json:"interval"`
	InterSendInterval   time.Duration `json:"inter_send_interval"`
	CallTimeout         time.Duration `json:"call_timeout"`
	RunTimeout          time.Duration `json:"run_timeout"`
	CampaignConcurrency int           `json:"campaign_concurrency"`
	LockTTL             time.Duration `json:"lock_ttl"`
	DrainBatch          int           `json:"drain_batch"`
	LogFilePath         string        `json:"log_file_path"`
}

// ProviderConfig describes an external HTTP collaborator; Provider "mock" uses the in-process fake
type ProviderConfig struct {
	Provider string        `json:"provider"`
	BaseURL  string        `json:"base_url"`
	APIKey   string        `json:"api_key"`
	Timeout  time.Duration `json:"timeout"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "postgres"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "X-Request-ID", "X-API-Key"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", false),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 600),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			RequireAPIKey:    getEnvBool("REQUIRE_API_KEY", false),
			APIKeyHeader:     getEnvString("API_KEY_HEADER", "X-API-Key"),
			AllowedAPIKeys:   getEnvStringSlice("ALLOWED_API_KEYS", []string{}),
			IPBlacklist:      getEnvStringSlice("IP_BLACKLIST", []string{}),
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Output:          getEnvString("LOG_OUTPUT", "both"),
			FilePath:        getEnvString("LOG_FILE_PATH", "data/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:       getEnvBool("CACHE_ENABLED", true),
			RedisURL:      getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:       getEnvInt("CACHE_REDIS_DB", 0),
			RedisPassword: getEnvString("REDIS_PASSWORD", ""),
			RedisPrefix:   getEnvString("CACHE_REDIS_PREFIX", "outreach:"),
			DefaultTTL:    getEnvDuration("CACHE_DEFAULT_TTL", 10*time.Minute),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
		Autopilot: AutopilotConfig{
			Enabled:             getEnvBool("AUTOPILOT_ENABLED", true),
			Interval:            getEnvDuration("AUTOPILOT_INTERVAL", utils.DefaultRunInterval),
			InterSendInterval:   getEnvDuration("AUTOPILOT_INTER_SEND_INTERVAL", utils.DefaultInterSendInterval),
			CallTimeout:         getEnvDuration("AUTOPILOT_CALL_TIMEOUT", utils.DefaultCallTimeout),
			RunTimeout:          getEnvDuration("AUTOPILOT_RUN_TIMEOUT", utils.DefaultRunTimeout),
			CampaignConcurrency: getEnvInt("AUTOPILOT_CAMPAIGN_CONCURRENCY", 1),
			LockTTL:             getEnvDuration("AUTOPILOT_LOCK_TTL", utils.DefaultRunTimeout+5*time.Minute),
			DrainBatch:          getEnvInt("AUTOPILOT_DRAIN_BATCH", utils.DefaultDrainBatch),
			LogFilePath:         getEnvString("AUTOPILOT_LOG_FILE_PATH", "data/autopilot.log"),
		},
		Ranker: ProviderConfig{
			Provider: getEnvString("RANKER_PROVIDER", "mock"),
			BaseURL:  getEnvString("RANKER_BASE_URL", ""),
			APIKey:   getEnvString("RANKER_API_KEY", ""),
			Timeout:  getEnvDuration("RANKER_TIMEOUT", utils.DefaultCallTimeout),
		},
		ContentGen: ProviderConfig{
			Provider: getEnvString("CONTENT_GEN_PROVIDER", "mock"),
			BaseURL:  getEnvString("CONTENT_GEN_BASE_URL", ""),
			APIKey:   getEnvString("CONTENT_GEN_API_KEY", ""),
			Timeout:  getEnvDuration("CONTENT_GEN_TIMEOUT", utils.DefaultCallTimeout),
		},
		Delivery: ProviderConfig{
			Provider: getEnvString("DELIVERY_PROVIDER", "mock"),
			BaseURL:  getEnvString("DELIVERY_BASE_URL", ""),
			APIKey:   getEnvString("DELIVERY_API_KEY", ""),
			Timeout:  getEnvDuration("DELIVERY_TIMEOUT", utils.DefaultCallTimeout),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	// Open .env file
	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	// Read file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Use standard library strings.Split and strings.TrimSpace
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	if cfg.Security.RequireAPIKey && len(cfg.Security.AllowedAPIKeys) == 0 {
		errors = append(errors, "ALLOWED_API_KEYS is required when REQUIRE_API_KEY is set")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" && !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.Logging.Level) {
		errors = append(errors, "LOG_LEVEL must be one of: [debug info warn error]")
	}
	if !slices.Contains([]string{"stdout", "file", "both"}, cfg.Logging.Output) {
		errors = append(errors, "LOG_OUTPUT must be one of: [stdout file both]")
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.FilePath == "" {
		errors = append(errors, "LOG_FILE_PATH is required when logging to a file")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled")
	}

	// Validate autopilot configuration
	if cfg.Autopilot.Interval <= 0 {
		errors = append(errors, "AUTOPILOT_INTERVAL must be positive")
	}
	if cfg.Autopilot.InterSendInterval < 0 {
		errors = append(errors, "AUTOPILOT_INTER_SEND_INTERVAL must not be negative")
	}
	if cfg.Autopilot.CallTimeout <= 0 {
		errors = append(errors, "AUTOPILOT_CALL_TIMEOUT must be positive")
	}
	if cfg.Autopilot.RunTimeout <= 0 {
		errors = append(errors, "AUTOPILOT_RUN_TIMEOUT must be positive")
	}
	if cfg.Autopilot.CampaignConcurrency < 1 {
		errors = append(errors, "AUTOPILOT_CAMPAIGN_CONCURRENCY must be at least 1")
	}
	if cfg.Autopilot.LockTTL < cfg.Autopilot.RunTimeout {
		errors = append(errors, "AUTOPILOT_LOCK_TTL must not be shorter than AUTOPILOT_RUN_TIMEOUT")
	}
	if cfg.Autopilot.DrainBatch <= 0 {
		errors = append(errors, "AUTOPILOT_DRAIN_BATCH must be positive")
	}

	// Validate collaborators; mock providers need no credentials
	errors = append(errors, validateProvider("RANKER", cfg.Ranker)...)
	errors = append(errors, validateProvider("CONTENT_GEN", cfg.ContentGen)...)
	errors = append(errors, validateProvider("DELIVERY", cfg.Delivery)...)

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

func validateProvider(prefix string, p ProviderConfig) []string {
	var errors []string
	switch p.Provider {
	case "mock":
		return nil
	case "http":
		if p.BaseURL == "" {
			errors = append(errors, prefix+"_BASE_URL is required for http provider")
		}
		if p.APIKey == "" {
			errors = append(errors, prefix+"_API_KEY is required for http provider")
		}
		if p.Timeout <= 0 {
			errors = append(errors, prefix+"_TIMEOUT must be positive")
		}
	default:
		errors = append(errors, prefix+"_PROVIDER must be one of: [mock http]")
	}
	return errors
}
