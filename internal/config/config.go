package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Turn dispatch
	UseMemoryQueue bool
	WorkerCount    int
	TurnQueueURL   string

	// Recording: when disabled the session ledger performs no durable writes.
	RecordingEnabled bool

	// Session ledger batching
	LedgerBatchSize     int
	LedgerFlushInterval time.Duration
	LedgerBufferCap     int
	LedgerShutdownGrace time.Duration

	// External tool/LLM call bound
	ToolTimeout time.Duration

	// AWS / Bedrock utterance planner
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	BedrockModelID      string

	// Gemini fallback planner
	GeminiAPIKey  string
	GeminiModelID string

	// Admin endpoints
	AdminJWTSecret string

	// Browser dashboard origins allowed to call the API
	CORSAllowedOrigins []string

	// Scheduling knobs
	SlotStepMinutes        int
	DefaultDurationMinutes int
	SuggestDaysAhead       int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		TurnQueueURL:   getEnv("TURN_QUEUE_URL", ""),

		RecordingEnabled: getEnvAsBool("RECORDING_ENABLED", true),

		LedgerBatchSize:     getEnvAsInt("LEDGER_BATCH_SIZE", 50),
		LedgerFlushInterval: getEnvAsDuration("LEDGER_FLUSH_INTERVAL", 2*time.Second),
		LedgerBufferCap:     getEnvAsInt("LEDGER_BUFFER_CAP", 10000),
		LedgerShutdownGrace: getEnvAsDuration("LEDGER_SHUTDOWN_GRACE", 5*time.Second),

		ToolTimeout: getEnvAsDuration("TOOL_TIMEOUT", 5*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),

		SlotStepMinutes:        getEnvAsInt("SLOT_STEP_MINUTES", 30),
		DefaultDurationMinutes: getEnvAsInt("DEFAULT_DURATION_MINUTES", 30),
		SuggestDaysAhead:       getEnvAsInt("SUGGEST_DAYS_AHEAD", 7),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList retrieves a comma-separated environment variable as a slice
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
