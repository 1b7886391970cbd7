package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Persistence. An empty DatabaseURL is a valid operating mode: booking
	// attempts then fail with a user-visible "database not connected" message.
	DatabaseURL string

	// Session state
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration

	// LLM
	GeminiAPIKey    string
	GeminiModelID   string
	GeminiTimeout   time.Duration
	DefaultLanguage string

	// Clinic
	ClinicTimezone       string
	ClinicWhatsAppNumber string

	// Dispatch queue
	UseMemoryQueue  bool
	BookingQueueURL string
	WorkerCount     int

	// AWS (SQS queue, SES notifications)
	AWSRegion           string
	AWSEndpointOverride string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string

	// Clinic email notifications
	EmailProvider  string // "sendgrid", "ses" or "" to disable
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string
	ClinicEmail    string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:   getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		GeminiTimeout:   getEnvAsDuration("GEMINI_TIMEOUT", 60*time.Second),
		DefaultLanguage: strings.ToLower(getEnv("DEFAULT_LANGUAGE", "en")),

		ClinicTimezone:       getEnv("CLINIC_TZ", "Asia/Kolkata"),
		ClinicWhatsAppNumber: getEnv("CLINIC_WHATSAPP_NUMBER", ""),

		UseMemoryQueue:  getEnvAsBool("USE_MEMORY_QUEUE", false),
		BookingQueueURL: getEnv("BOOKING_QUEUE_URL", ""),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 2),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),

		EmailProvider:  strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", ""))),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "AI Health Assistant"),
		ClinicEmail:    getEnv("CLINIC_EMAIL", ""),
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
