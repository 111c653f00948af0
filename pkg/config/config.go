package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	LogLevel           string
	DatabasePath       string
	SnapshotCachePath  string
	RedisURL           string
	Neo4jURI           string
	Neo4jUser          string
	Neo4jPassword      string
	DiscoveryRulesPath string
	RefreshSchedule    string
	RefreshTimeout     time.Duration
}

// LoadConfig loads configuration from environment variables. REDIS_URL is
// optional: when empty the snapshot cache runs on SQLite. NEO4J_URI is
// optional: when empty graph queries run on the in-memory engine.
func LoadConfig() (*Config, error) {
	config := &Config{
		Environment:        getEnv("ENVIRONMENT", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabasePath:       getEnv("DATABASE_PATH", "./data/ontology.db"),
		SnapshotCachePath:  getEnv("SNAPSHOT_CACHE_PATH", "./data/snapshots.db"),
		RedisURL:           getEnv("REDIS_URL", ""),
		Neo4jURI:           getEnv("NEO4J_URI", ""),
		Neo4jUser:          getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:      getEnv("NEO4J_PASSWORD", ""),
		DiscoveryRulesPath: getEnv("DISCOVERY_RULES_PATH", ""),
		RefreshSchedule:    getEnv("REFRESH_SCHEDULE", "@hourly"),
		RefreshTimeout:     time.Duration(getEnvAsInt("REFRESH_TIMEOUT_SECONDS", 300)) * time.Second,
	}

	if config.DatabasePath == "" {
		return nil, fmt.Errorf("DATABASE_PATH is required")
	}
	if config.Neo4jURI != "" && config.Neo4jPassword == "" {
		return nil, fmt.Errorf("NEO4J_PASSWORD is required when NEO4J_URI is set")
	}

	return config, nil
}

// UseRedisCache reports whether the snapshot cache should run on Redis
func (c *Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// UseNeo4j reports whether graph queries should run on a Neo4j server
func (c *Config) UseNeo4j() bool {
	return c.Neo4jURI != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
