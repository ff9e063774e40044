package config

import (
	"os"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"

	"vukamap/common"
)

// Config holds all configuration for the report service
type Config struct {
	Port string

	// Database configuration
	DB common.MySQLConfig

	// Vision backend, remote analysis is off unless both are set
	AzureVisionKey      string
	AzureVisionEndpoint string
	VisionTimeout       time.Duration

	// Verification policy
	StrictVerification bool
	GpsMatchKm         float64
	CleanupMatchKm     float64

	// Event publishing, off when AMQPURL is empty
	AMQPURL                string
	AMQPExchange           string
	AMQPRoutingKeyCreated  string
	AMQPRoutingKeyResolved string

	LogLevel log.Level
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug(".env file not found, using system environment variables")
	}

	return &Config{
		Port: getEnv("PORT", "8080"),

		DB: common.MySQLConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "server"),
			Password: getEnv("DB_PASSWORD", "secret"),
			Database: getEnv("DB_NAME", "vukamap"),
		},

		AzureVisionKey:      getEnv("AZURE_VISION_KEY", ""),
		AzureVisionEndpoint: getEnv("AZURE_VISION_ENDPOINT", ""),
		VisionTimeout:       getDurationEnv("VISION_TIMEOUT", 10*time.Second),

		StrictVerification: getBoolEnv("STRICT_VERIFICATION", false),
		GpsMatchKm:         getFloatEnv("GPS_MATCH_THRESHOLD_KM", 0.2),
		CleanupMatchKm:     getFloatEnv("CLEANUP_MATCH_THRESHOLD_KM", 0.05),

		AMQPURL:                getEnv("AMQP_URL", ""),
		AMQPExchange:           getEnv("AMQP_EXCHANGE", "vukamap"),
		AMQPRoutingKeyCreated:  getEnv("AMQP_ROUTING_KEY_CREATED", "report.created"),
		AMQPRoutingKeyResolved: getEnv("AMQP_ROUTING_KEY_RESOLVED", "report.resolved"),

		LogLevel: getLevelEnv("LOG_LEVEL", log.InfoLevel),
	}
}

func (c *Config) VisionEnabled() bool {
	return c.AzureVisionKey != "" && c.AzureVisionEndpoint != ""
}

func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
			return duration
		}
		log.Warnf("Invalid %s=%q, using %v", key, value, defaultValue)
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
		log.Warnf("Invalid %s=%q, using %v", key, value, defaultValue)
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Warnf("Invalid %s=%q, using %v", key, value, defaultValue)
	}
	return defaultValue
}

func getLevelEnv(key string, defaultValue log.Level) log.Level {
	if value := os.Getenv(key); value != "" {
		if lvl, err := log.ParseLevel(value); err == nil {
			return lvl
		}
		log.Warnf("Invalid %s=%q, using %v", key, value, defaultValue)
	}
	return defaultValue
}
