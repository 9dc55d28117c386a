// Package config loads application configuration from the environment,
// typically populated from a .env file by the cmd entrypoints.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Analysis AnalysisConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// AnalysisConfig holds analysis defaults applied when a request omits them
type AnalysisConfig struct {
	MinOccurrences    int
	MaxExamples       int
	IncludeExamples   bool
	SemanticFiltering bool
	DebugMode         bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"),
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Analysis: AnalysisConfig{
			MinOccurrences:    getEnvIntOrDefault("MIN_OCCURRENCES", 1),
			MaxExamples:       getEnvIntOrDefault("MAX_EXAMPLES", 3),
			IncludeExamples:   getEnvBoolOrDefault("INCLUDE_EXAMPLES", true),
			SemanticFiltering: getEnvBoolOrDefault("SEMANTIC_FILTERING", false),
			DebugMode:         getEnvBoolOrDefault("DEBUG_MODE", false),
		},
	}

	if cfg.Analysis.MinOccurrences < 0 {
		return nil, fmt.Errorf("MIN_OCCURRENCES must be non-negative")
	}
	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBoolOrDefault(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
