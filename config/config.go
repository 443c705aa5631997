package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Router policy names accepted by ROUTER_POLICY.
const (
	PolicyStateful = "stateful"
	PolicyFallback = "fallback"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Providers     ProvidersConfig
	Router        RouterConfig
	SaaS          SaaSConfig
	Usage         UsageConfig
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

// DatabaseConfig holds PostgreSQL database configuration.
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

// ProvidersConfig holds upstream LLM provider settings.
// APIKeys and BaseURLs are keyed by provider key (openrouter, longcat, deepseek).
type ProvidersConfig struct {
	TableFile string // Optional YAML provider table; built-in table when empty
	Watch     bool   // Reload TableFile on change
	Timeout   time.Duration
	APIKeys   map[string]string
	BaseURLs  map[string]string
}

// APIKey returns the credential configured for a provider key, or "".
func (c *ProvidersConfig) APIKey(key string) string {
	if c.APIKeys == nil {
		return ""
	}
	return c.APIKeys[key]
}

// HasAnyKey reports whether at least one provider has a credential.
func (c *ProvidersConfig) HasAnyKey() bool {
	for _, v := range c.APIKeys {
		if v != "" {
			return true
		}
	}
	return false
}

// RouterConfig holds provider routing settings
type RouterConfig struct {
	Policy         string // stateful or fallback
	ErrorThreshold int
	MaxAttempts    int
	BaseDelay      time.Duration
	ResetSchedule  string // cron expression; empty disables scheduled resets
}

// SaaSConfig holds multi-tenant session settings
type SaaSConfig struct {
	Enabled       bool
	SessionSecret string
}

// UsageConfig holds the async usage recorder settings
type UsageConfig struct {
	BufferSize int
	Workers    int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists (backend/.env when run from project root, .env when run from backend/)
	_ = godotenv.Load("backend/.env")
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
		Database:  loadDatabaseConfig(),
		Providers: loadProvidersConfig(),
		Router: RouterConfig{
			Policy:         strings.ToLower(getEnv("ROUTER_POLICY", PolicyStateful)),
			ErrorThreshold: getEnvAsInt("ROUTER_ERROR_THRESHOLD", 5),
			MaxAttempts:    getEnvAsInt("ROUTER_MAX_ATTEMPTS", 3),
			BaseDelay:      getEnvAsDuration("ROUTER_BASE_DELAY", time.Second),
			ResetSchedule:  getEnv("ROUTER_RESET_SCHEDULE", ""),
		},
		SaaS: SaaSConfig{
			// Only the literal "true" enables SaaS mode.
			Enabled:       os.Getenv("SAAS_MODE") == "true",
			SessionSecret: getEnv("SESSION_SECRET", ""),
		},
		Usage: UsageConfig{
			BufferSize: getEnvAsInt("USAGE_BUFFER_SIZE", 1000),
			Workers:    getEnvAsInt("USAGE_WORKERS", 2),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
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

	// Provider validation (at least one provider API key required in production)
	if c.IsProduction() && !c.Providers.HasAnyKey() {
		return fmt.Errorf("at least one LLM provider must be configured in production")
	}

	if err := c.Router.Validate(); err != nil {
		return err
	}

	if c.SaaS.Enabled && c.SaaS.SessionSecret == "" {
		return fmt.Errorf("session secret is required when SAAS_MODE is enabled")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// Validate checks router settings. Zero values are accepted and replaced by
// defaults downstream, so only explicit nonsense is rejected.
func (c *RouterConfig) Validate() error {
	switch c.Policy {
	case "", PolicyStateful, PolicyFallback:
	default:
		return fmt.Errorf("unknown router policy %q (want %s or %s)", c.Policy, PolicyStateful, PolicyFallback)
	}
	if c.ErrorThreshold < 0 {
		return fmt.Errorf("router error threshold must not be negative")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("router max attempts must not be negative")
	}
	if c.BaseDelay < 0 {
		return fmt.Errorf("router base delay must not be negative")
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
		User:            getEnv("DB_USER", "bolt"),
		Password:        getEnv("DB_PASSWORD", "bolt"),
		Database:        getEnv("DB_NAME", "bolt"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadProvidersConfig reads credentials and endpoint overrides for the built-in providers.
// OpenRouter accepts both OPENROUTER_API_KEY and OPEN_ROUTER_API_KEY.
func loadProvidersConfig() ProvidersConfig {
	cfg := ProvidersConfig{
		TableFile: getEnv("PROVIDERS_FILE", ""),
		Watch:     getEnvAsBool("PROVIDERS_WATCH", false),
		Timeout:   getEnvAsDuration("PROVIDER_TIMEOUT", 60*time.Second),
		APIKeys: map[string]string{
			"openrouter": getEnv("OPENROUTER_API_KEY", getEnv("OPEN_ROUTER_API_KEY", "")),
			"longcat":    getEnv("LONGCAT_API_KEY", ""),
			"deepseek":   getEnv("DEEPSEEK_API_KEY", ""),
		},
		BaseURLs: map[string]string{},
	}

	overrides := map[string]string{
		"openrouter": "OPENROUTER_BASE_URL",
		"longcat":    "LONGCAT_BASE_URL",
		"deepseek":   "DEEPSEEK_BASE_URL",
	}
	for key, env := range overrides {
		if v := os.Getenv(env); v != "" {
			cfg.BaseURLs[key] = strings.TrimRight(v, "/")
		}
	}
	return cfg
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
