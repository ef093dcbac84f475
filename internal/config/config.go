package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	OpenAI    OpenAIConfig
	Email     EmailConfig
	Retention RetentionConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// MongoDBConfig holds MongoDB connection details
type MongoDBConfig struct {
	URI        string
	Username   string
	Password   string
	Host       string
	Port       string
	Database   string
	Collection string
	AuthSource string // Database to authenticate against (default: admin)
}

// OpenAIConfig holds the AI provider configuration
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // Optional, for OpenAI-compatible providers
	Model          string
	Temperature    float64
	MaxTokens      int
	TimeoutSeconds int
	MaxRetries     int
}

// EmailConfig holds SendGrid email configuration
type EmailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// RetentionConfig holds the retention sweep configuration
type RetentionConfig struct {
	SweepSchedule    string // cron spec with seconds
	ArchiveAfterDays int    // exported dossiers older than this are archived
	JobTTLMinutes    int    // finished express jobs older than this are purged
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8086"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		MongoDB: MongoDBConfig{
			URI:        getEnv("MONGODB_URI", ""),
			Username:   getEnv("MONGODB_USERNAME", ""),
			Password:   getEnv("MONGODB_PASSWORD", ""),
			Host:       getEnv("MONGODB_HOST", ""),
			Port:       getEnv("MONGODB_PORT", "27017"),
			Database:   getEnv("MONGODB_DATABASE", "fiscaal"),
			Collection: getEnv("MONGODB_COLLECTION", "dossiers"),
			AuthSource: getEnv("MONGODB_AUTH_SOURCE", "admin"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_BASE_URL", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature:    getEnvFloat("OPENAI_TEMPERATURE", 0.2),
			MaxTokens:      getEnvInt("OPENAI_MAX_TOKENS", 0), // 0 means no limit
			TimeoutSeconds: getEnvInt("OPENAI_TIMEOUT_SECONDS", 120),
			MaxRetries:     getEnvInt("OPENAI_MAX_RETRIES", 2),
		},
		Email: EmailConfig{
			APIKey:    getEnv("SENDGRID_API_KEY", ""),
			FromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
			FromName:  getEnv("SENDGRID_FROM_NAME", "Fiscaal Rapportage"),
		},
		Retention: RetentionConfig{
			SweepSchedule:    getEnv("RETENTION_SWEEP_SCHEDULE", "0 0 3 * * *"),
			ArchiveAfterDays: getEnvInt("RETENTION_ARCHIVE_AFTER_DAYS", 90),
			JobTTLMinutes:    getEnvInt("RETENTION_JOB_TTL_MINUTES", 60),
		},
	}

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ValidateConfig validates that required configuration values are present
func ValidateConfig(config *Config) error {
	if config.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if config.OpenAI.Model == "" {
		return fmt.Errorf("OPENAI_MODEL must not be empty")
	}
	if config.Email.APIKey != "" && config.Email.FromEmail == "" {
		return fmt.Errorf("SENDGRID_FROM_EMAIL is required when SENDGRID_API_KEY is set")
	}
	return nil
}

// Helper functions for environment variable access
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
