package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Message sources.
const (
	SourceHTTP     = "http"
	SourceRedis    = "redis"
	SourcePostgres = "postgres"
)

type Config struct {
	Port     string
	LogLevel string

	MessageSource  string
	WorkflowAPIURL string
	WorkflowAPIKey string
	FetchTimeout   time.Duration
	FetchRateLimit float64
	FetchRateBurst int

	PageLimit        int
	PollInterval     time.Duration
	MaxConversations int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabaseURL string

	S3Region string
	S3Bucket string

	OpenAIKey string

	ClinicID    string
	CORSOrigins []string
}

func Load() *Config {
	godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MessageSource:  strings.ToLower(getEnv("MESSAGE_SOURCE", SourceHTTP)),
		WorkflowAPIURL: getEnv("WORKFLOW_API_URL", "http://localhost:5678"),
		WorkflowAPIKey: getEnv("WORKFLOW_API_KEY", ""),
		FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
		FetchRateLimit: getEnvFloat("FETCH_RATE_LIMIT", 10),
		FetchRateBurst: getEnvInt("FETCH_RATE_BURST", 20),

		PageLimit:        getEnvInt("PAGE_LIMIT", 50),
		PollInterval:     getEnvDuration("POLL_INTERVAL", 5*time.Second),
		MaxConversations: getEnvInt("MAX_CONVERSATIONS", 0),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		S3Region: getEnv("S3_REGION", "us-east-1"),
		S3Bucket: getEnv("S3_BUCKET", ""),

		OpenAIKey: getEnv("OPENAI_API_KEY", ""),

		ClinicID:    getEnv("CLINIC_ID", "clinic-default"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
	}
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.MessageSource {
	case SourceHTTP:
		if c.WorkflowAPIURL == "" {
			return fmt.Errorf("WORKFLOW_API_URL is required for the %s message source", SourceHTTP)
		}
	case SourceRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the %s message source", SourceRedis)
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s message source", SourcePostgres)
		}
	default:
		return fmt.Errorf("unknown MESSAGE_SOURCE %q", c.MessageSource)
	}

	if c.PageLimit <= 0 {
		return fmt.Errorf("PAGE_LIMIT must be positive, got %d", c.PageLimit)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.ClinicID == "" {
		return fmt.Errorf("CLINIC_ID must not be empty")
	}
	return nil
}

func (c *Config) ExportEnabled() bool {
	return c.S3Bucket != ""
}

func (c *Config) SummaryEnabled() bool {
	return c.OpenAIKey != ""
}

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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
