package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// HTTP server
	HTTPPort string

	// Database configuration
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string

	// Redis configuration
	RedisHost     string
	RedisPassword string
	RedisPort     string

	Logging   LoggingConfig
	Sources   SourcesConfig
	Webhooks  WebhookConfig
	Warehouse WarehouseConfig

	// AnalysisFile optionally points at a YAML file overriding Analysis.
	AnalysisFile string
	Analysis     AnalysisConfig
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level       string
	Format      string
	Environment string
}

// SourcesConfig selects and tunes the upstream data feeds
type SourcesConfig struct {
	UseMock        bool
	ProtonURL      string
	KpURL          string
	IceURL         string
	TemperatureURL string
	OzoneFile      string

	RequestsPerSecond float64
	Timeout           time.Duration
	CacheTTL          time.Duration

	// CollectInterval schedules periodic batch runs in server mode. Zero disables them.
	CollectInterval time.Duration
}

// WebhookConfig holds alert webhook targets
type WebhookConfig struct {
	URLs       []string
	AuthHeader string
	AuthToken  string
	ActiveOnly bool
}

// WarehouseConfig holds the optional ClickHouse sink
type WarehouseConfig struct {
	Enabled  bool
	Address  string
	Database string
	Table    string
	User     string
	Password string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	return fromEnv()
}

func fromEnv() *Config {
	return &Config{
		HTTPPort: getEnvOrDefault("PORT", "8080"),

		// Database configuration
		DatabaseHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DatabasePort:     getEnvOrDefault("DB_PORT", "5432"),
		DatabaseName:     getEnvOrDefault("DB_NAME", "solar_impact"),
		DatabaseUser:     getEnvOrDefault("DB_USER", "solar"),
		DatabasePassword: getEnvOrDefault("DB_PASSWORD", "solar123"),

		// Redis configuration
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		Logging: LoggingConfig{
			Level:       getEnvOrDefault("LOG_LEVEL", "info"),
			Format:      getEnvOrDefault("LOG_FORMAT", "json"),
			Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		},

		Sources: SourcesConfig{
			UseMock:           getEnvBool("USE_MOCK_DATA", true),
			ProtonURL:         getEnvOrDefault("SOURCE_PROTON_URL", ""),
			KpURL:             getEnvOrDefault("SOURCE_KP_URL", ""),
			IceURL:            getEnvOrDefault("SOURCE_ICE_URL", ""),
			TemperatureURL:    getEnvOrDefault("SOURCE_TEMPERATURE_URL", ""),
			OzoneFile:         getEnvOrDefault("SOURCE_OZONE_FILE", ""),
			RequestsPerSecond: getEnvFloat("SOURCE_REQUESTS_PER_SECOND", 1),
			Timeout:           time.Duration(getEnvInt("SOURCE_TIMEOUT_SECONDS", 30)) * time.Second,
			CacheTTL:          time.Duration(getEnvInt("SOURCE_CACHE_TTL_MINUTES", 60)) * time.Minute,
			CollectInterval:   time.Duration(getEnvInt("COLLECT_INTERVAL_HOURS", 0)) * time.Hour,
		},

		Webhooks: WebhookConfig{
			URLs:       getEnvList("ALERT_WEBHOOK_URLS"),
			AuthHeader: getEnvOrDefault("ALERT_WEBHOOK_AUTH_HEADER", "Authorization"),
			AuthToken:  getEnvOrDefault("ALERT_WEBHOOK_TOKEN", ""),
			ActiveOnly: getEnvBool("ALERT_WEBHOOK_ACTIVE_ONLY", true),
		},

		Warehouse: WarehouseConfig{
			Enabled:  getEnvBool("CLICKHOUSE_ENABLED", false),
			Address:  getEnvOrDefault("CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnvOrDefault("CLICKHOUSE_DB", "solar"),
			Table:    getEnvOrDefault("CLICKHOUSE_TABLE", "sep_daily"),
			User:     getEnvOrDefault("CLICKHOUSE_USER", "default"),
			Password: getEnvOrDefault("CLICKHOUSE_PASSWORD", ""),
		},

		AnalysisFile: getEnvOrDefault("ANALYSIS_CONFIG_FILE", ""),
		Analysis:     analysisFromEnv(),
	}
}

func analysisFromEnv() AnalysisConfig {
	a := DefaultAnalysisConfig()
	a.RecordAlerts = getEnvBool("RECORD_ALERTS", false)
	return a
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	if c.Sources.CollectInterval < 0 {
		return fmt.Errorf("COLLECT_INTERVAL_HOURS must not be negative")
	}
	if c.Sources.RequestsPerSecond <= 0 {
		return fmt.Errorf("SOURCE_REQUESTS_PER_SECOND must be positive, got %v", c.Sources.RequestsPerSecond)
	}
	return c.Analysis.Validate()
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvFloat gets environment variable as float64 or returns default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var floatValue float64
	if _, err := fmt.Sscanf(value, "%f", &floatValue); err != nil {
		return defaultValue
	}
	return floatValue
}

// getEnvBool accepts true/false, 1/0 and yes/no
func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
