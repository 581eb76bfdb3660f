package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ProfileLimits holds the sliding-window rate limit for one client profile.
type ProfileLimits struct {
	WindowSeconds int
	PerWindow     int
}

// Config holds all configuration for the gateway
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// OpenRouter
	OpenRouterAPIKey  string
	OpenRouterBaseURL string

	// Tavily search (chat web_search tool; optional)
	TavilyAPIKey string

	// Rate limiting per profile ("anonymous", "api_key")
	RateLimits map[string]ProfileLimits

	// Cost guard: budget per profile in USD plus the fixed expected
	// cost evaluated against the budget before each generation.
	ProfileBudgets  map[string]float64
	ExpectedCostUSD float64

	// Model catalog caching
	CatalogCacheTTLSeconds int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		TavilyAPIKey:      getEnv("TAVILY_API_KEY", ""),
		RateLimits: map[string]ProfileLimits{
			"anonymous": {
				WindowSeconds: getEnvInt("ANON_RATE_WINDOW_SECONDS", 60),
				PerWindow:     getEnvInt("ANON_RATE_LIMIT", 1),
			},
			"api_key": {
				WindowSeconds: getEnvInt("API_KEY_RATE_WINDOW_SECONDS", 60),
				PerWindow:     getEnvInt("API_KEY_RATE_LIMIT", 10),
			},
		},
		ProfileBudgets: map[string]float64{
			"anonymous": getEnvFloat("ANON_BUDGET_USD", 1.0),
			"api_key":   getEnvFloat("API_KEY_BUDGET_USD", 5.0),
		},
		ExpectedCostUSD:        getEnvFloat("EXPECTED_COST_USD", 0.1),
		CatalogCacheTTLSeconds: getEnvInt("CATALOG_CACHE_TTL_SECONDS", 3600),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// ProfileLimit returns the limits for a profile, falling back to the
// anonymous tier for unknown profile names.
func (c *Config) ProfileLimit(profile string) ProfileLimits {
	if limits, ok := c.RateLimits[profile]; ok {
		return limits
	}
	return c.RateLimits["anonymous"]
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
