package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	Port            string
	DatabaseURL     string // sqlite path by default; postgres:// and mysql:// URLs supported
	Version         string
	LogLevel        string
	DBEncryptionKey string // passphrase for encrypted-at-rest columns

	APIBaseURL string // public base URL embedded in open-tracking pixels

	LLMAPIKey  string // key for the OpenAI-compatible completion endpoint
	LLMBaseURL string
	LLMModel   string
	LLMTimeout int // completion timeout in seconds

	SMTPServer   string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	PageFetchTimeout int // per-page scrape fetch timeout in seconds
}

// Load initializes and returns application configuration
func Load() *Config {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:            getEnv("PORT", "8000"),
		DatabaseURL:     getEnv("DATABASE_URL", "app.db"),
		Version:         getEnv("VERSION", "1.0.0"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DBEncryptionKey: os.Getenv("DB_ENCRYPTION_KEY"),

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8000"),

		LLMAPIKey:  os.Getenv("GROQ_API_KEY"),
		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		LLMModel:   getEnv("LLM_MODEL", "llama3-8b-8192"),
		LLMTimeout: getEnvInt("LLM_TIMEOUT", 60),

		SMTPServer:   os.Getenv("SMTP_SERVER"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),

		PageFetchTimeout: getEnvInt("PAGE_FETCH_TIMEOUT", 7),
	}

	return config
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as integer with a default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// SetupLogger configures zerolog with JSON output and single-line format
func (c *Config) SetupLogger() zerolog.Logger {
	// Configure zerolog to output JSON without newlines
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Create logger with JSON output to stdout
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "coldreach").
		Str("version", c.Version).
		Logger()

	// Set log level based on configuration
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	return logger
}
