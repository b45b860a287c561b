package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	AI            AIConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration for the usage-record sink.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds JWT authentication configuration for the API surface
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// AIConfig holds the role-based AI invocation configuration.
// Each logical role (main/research/fallback) resolves to a concrete
// provider+model pair plus generation parameters.
type AIConfig struct {
	Roles        map[string]RoleSettings
	Catalog      ModelCatalog
	DebugRetries bool // log each retry attempt when enabled
}

// RoleSettings holds the provider/model binding and generation parameters for one role
type RoleSettings struct {
	Provider    string
	ModelID     string
	MaxTokens   int
	Temperature float64
	BaseURL     string // optional endpoint override
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists (non-fatal when missing)
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "task-master-api"),
		},
		AI: AIConfig{
			Roles: map[string]RoleSettings{
				"main": {
					Provider:    getEnv("AI_MAIN_PROVIDER", "anthropic"),
					ModelID:     getEnv("AI_MAIN_MODEL", "claude-3-7-sonnet-20250219"),
					MaxTokens:   getEnvAsInt("AI_MAIN_MAX_TOKENS", 64000),
					Temperature: getEnvAsFloat("AI_MAIN_TEMPERATURE", 0.2),
					BaseURL:     getEnv("AI_MAIN_BASE_URL", ""),
				},
				"research": {
					Provider:    getEnv("AI_RESEARCH_PROVIDER", "openai"),
					ModelID:     getEnv("AI_RESEARCH_MODEL", "gpt-4o"),
					MaxTokens:   getEnvAsInt("AI_RESEARCH_MAX_TOKENS", 8700),
					Temperature: getEnvAsFloat("AI_RESEARCH_TEMPERATURE", 0.1),
					BaseURL:     getEnv("AI_RESEARCH_BASE_URL", ""),
				},
				"fallback": {
					Provider:    getEnv("AI_FALLBACK_PROVIDER", "anthropic"),
					ModelID:     getEnv("AI_FALLBACK_MODEL", "claude-3-5-sonnet-20241022"),
					MaxTokens:   getEnvAsInt("AI_FALLBACK_MAX_TOKENS", 8192),
					Temperature: getEnvAsFloat("AI_FALLBACK_TEMPERATURE", 0.2),
					BaseURL:     getEnv("AI_FALLBACK_BASE_URL", ""),
				},
			},
			Catalog:      DefaultModelCatalog(),
			DebugRetries: getEnvAsBool("AI_DEBUG_RETRIES", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	// Auth validation (required in production)
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required in production")
	}

	// Role validation: a role binding may be incomplete (the orchestrator
	// skips such roles), but the role set itself must be intact
	for _, role := range []string{"main", "research", "fallback"} {
		if _, ok := c.AI.Roles[role]; !ok {
			return fmt.Errorf("missing AI role configuration: %s", role)
		}
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Role configuration accessors. These satisfy the orchestrator's RoleConfig
// interface so the AI layer never reads the environment directly.

// ProviderForRole returns the provider name bound to a role ("" when unset)
func (c *Config) ProviderForRole(role string) string {
	return c.AI.Roles[role].Provider
}

// ModelForRole returns the model ID bound to a role ("" when unset)
func (c *Config) ModelForRole(role string) string {
	return c.AI.Roles[role].ModelID
}

// ParametersForRole returns the generation parameters for a role
func (c *Config) ParametersForRole(role string) (maxTokens int, temperature float64) {
	s := c.AI.Roles[role]
	return s.MaxTokens, s.Temperature
}

// BaseURLForRole returns the endpoint override for a role ("" when unset)
func (c *Config) BaseURLForRole(role string) string {
	return c.AI.Roles[role].BaseURL
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "taskmaster"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
