package config

import (
	"os"
	"testing"
	"time"
)

// TestLoadConfig tests configuration loading
func TestLoadConfig(t *testing.T) {
	// Set test environment variables
	os.Setenv("ENVIRONMENT", "test")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("DATABASE_PATH", "/tmp/test-ontology.db")
	os.Setenv("REFRESH_SCHEDULE", "*/15 * * * *")
	os.Setenv("REFRESH_TIMEOUT_SECONDS", "60")

	defer func() {
		os.Unsetenv("ENVIRONMENT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("DATABASE_PATH")
		os.Unsetenv("REFRESH_SCHEDULE")
		os.Unsetenv("REFRESH_TIMEOUT_SECONDS")
	}()

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Environment != "test" {
		t.Errorf("Expected environment 'test', got %s", config.Environment)
	}
	if config.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got %s", config.LogLevel)
	}
	if config.DatabasePath != "/tmp/test-ontology.db" {
		t.Errorf("Expected database path '/tmp/test-ontology.db', got %s", config.DatabasePath)
	}
	if config.RefreshSchedule != "*/15 * * * *" {
		t.Errorf("Expected refresh schedule '*/15 * * * *', got %s", config.RefreshSchedule)
	}
	if config.RefreshTimeout != time.Minute {
		t.Errorf("Expected refresh timeout 1m, got %s", config.RefreshTimeout)
	}
}

// TestLoadConfigDefaults tests default values
func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Environment != "development" {
		t.Errorf("Expected default environment 'development', got %s", config.Environment)
	}
	if config.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got %s", config.LogLevel)
	}
	if config.RefreshSchedule != "@hourly" {
		t.Errorf("Expected default refresh schedule '@hourly', got %s", config.RefreshSchedule)
	}
	if config.UseRedisCache() {
		t.Error("Expected SQLite cache backend by default")
	}
	if config.UseNeo4j() {
		t.Error("Expected in-memory query engine by default")
	}
}

// TestLoadConfigNeo4jValidation tests that a Neo4j URI requires a password
func TestLoadConfigNeo4jValidation(t *testing.T) {
	os.Setenv("NEO4J_URI", "neo4j://localhost:7687")
	defer os.Unsetenv("NEO4J_URI")

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error when NEO4J_URI is set without NEO4J_PASSWORD")
	}

	os.Setenv("NEO4J_PASSWORD", "secret")
	defer os.Unsetenv("NEO4J_PASSWORD")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !config.UseNeo4j() {
		t.Error("Expected Neo4j backend to be selected")
	}
}
