// config.go - Configuration loaded from environment variables

package configs

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	// Gemini AI Configuration
	GEMINI_API_KEY     string
	GEMINI_MODEL_NAME  string
	GEMINI_TEMPERATURE float64

	// Alternative provider configuration
	AI_PROVIDER        string // "gemini" or "mistral"
	MISTRAL_API_KEY    string
	MISTRAL_MODEL_NAME string

	// Analysis sampling settings
	SAMPLE_COUNT   int // Number of parallel analysis calls per photo
	SAMPLE_WORKERS int // Worker goroutines draining the sample queue

	// Pricing Configuration (per 1M tokens in USD)
	GEMINI_INPUT_PRICE_PER_MILLION   float64
	GEMINI_OUTPUT_PRICE_PER_MILLION  float64
	MISTRAL_INPUT_PRICE_PER_MILLION  float64
	MISTRAL_OUTPUT_PRICE_PER_MILLION float64
	USD_TO_THB                       float64

	// Server Configuration
	PORT               string
	UPLOAD_DIR         string
	ALLOWED_ORIGINS    string
	MAX_UPLOAD_SIZE_MB int
	ANALYZE_TIMEOUT    int // Outer deadline for one analyze request in seconds

	// MongoDB Configuration
	MONGO_URI     string
	MONGO_DB_NAME string

	// Image preprocessing settings
	ENABLE_IMAGE_PREPROCESSING bool
	MAX_IMAGE_DIMENSION        int

	// Result cache settings
	CACHE_ENABLED     bool
	CACHE_TTL_MINUTES int

	// Auth settings
	SESSION_TTL_HOURS int
)

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// The API key is checked per analysis run so the server can still
	// start and report a readable error instead of crashing on boot.
	GEMINI_API_KEY = getEnv("GEMINI_API_KEY", "")
	if GEMINI_API_KEY == "" {
		log.Println("⚠️ GEMINI_API_KEY is not set - analysis requests will fail until it is configured")
	}

	// Optional with defaults
	GEMINI_MODEL_NAME = getEnv("GEMINI_MODEL_NAME", "gemini-2.5-flash")
	GEMINI_TEMPERATURE = getEnvFloat("GEMINI_TEMPERATURE", 0.4)

	AI_PROVIDER = getEnv("AI_PROVIDER", "gemini")
	MISTRAL_API_KEY = getEnv("MISTRAL_API_KEY", "")
	MISTRAL_MODEL_NAME = getEnv("MISTRAL_MODEL_NAME", "pixtral-12b-2409")

	SAMPLE_COUNT = getEnvInt("SAMPLE_COUNT", 5)
	SAMPLE_WORKERS = getEnvInt("SAMPLE_WORKERS", 5)

	// Pricing (defaults to Flash pricing)
	GEMINI_INPUT_PRICE_PER_MILLION = getEnvFloat("GEMINI_INPUT_PRICE_PER_MILLION", 0.10)
	GEMINI_OUTPUT_PRICE_PER_MILLION = getEnvFloat("GEMINI_OUTPUT_PRICE_PER_MILLION", 0.40)
	MISTRAL_INPUT_PRICE_PER_MILLION = getEnvFloat("MISTRAL_INPUT_PRICE_PER_MILLION", 0.15)
	MISTRAL_OUTPUT_PRICE_PER_MILLION = getEnvFloat("MISTRAL_OUTPUT_PRICE_PER_MILLION", 0.15)
	USD_TO_THB = getEnvFloat("USD_TO_THB", 36.0)

	PORT = getEnv("PORT", "8080")
	UPLOAD_DIR = getEnv("UPLOAD_DIR", "uploads")
	ALLOWED_ORIGINS = getEnv("ALLOWED_ORIGINS", "*")
	MAX_UPLOAD_SIZE_MB = getEnvInt("MAX_UPLOAD_SIZE_MB", 10)
	ANALYZE_TIMEOUT = getEnvInt("ANALYZE_TIMEOUT", 180)

	// MongoDB Configuration
	MONGO_URI = getEnv("MONGO_URI", "mongodb://localhost:27017")
	MONGO_DB_NAME = getEnv("MONGO_DB_NAME", "mealcaloriedb")

	// Image Processing
	ENABLE_IMAGE_PREPROCESSING = getEnvBool("ENABLE_IMAGE_PREPROCESSING", true)
	MAX_IMAGE_DIMENSION = getEnvInt("MAX_IMAGE_DIMENSION", 2000)

	// Result cache
	CACHE_ENABLED = getEnvBool("CACHE_ENABLED", true)
	CACHE_TTL_MINUTES = getEnvInt("CACHE_TTL_MINUTES", 60)

	// Auth
	SESSION_TTL_HOURS = getEnvInt("SESSION_TTL_HOURS", 72)

	log.Println("✓ Configuration loaded successfully")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
