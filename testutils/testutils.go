package testutils

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"hdbackend/appctx"
	"hdbackend/config"
	"hdbackend/models"
	"hdbackend/services"
)

// LoadTestConfig loads configuration for tests from environment variables
func LoadTestConfig() (*config.AppConfig, error) {
	// Try to load environment variables from various possible locations
	_ = godotenv.Load("../.env.test") // From services/ directory
	_ = godotenv.Load(".env.test")    // From root directory
	_ = godotenv.Load()               // Default .env file

	databaseURL := os.Getenv("DB_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DB_URL is not set")
	}

	databaseSchema := os.Getenv("DB_SCHEMA")
	if databaseSchema == "" {
		return nil, fmt.Errorf("DB_SCHEMA is not set")
	}

	return &config.AppConfig{
		DatabaseURL:    databaseURL,
		DatabaseSchema: databaseSchema,
	}, nil
}

// CreateTestAgent creates a roster agent with a unique slug to avoid
// constraint violations across test runs.
func CreateTestAgent(t *testing.T, rosterService services.RosterService) *models.Agent {
	slug := "test-agent-" + uuid.New().String()
	agent, err := rosterService.CreateAgent(
		context.Background(),
		slug,
		"Test Agent",
		nil,
		nil,
		models.AgentRoleAgent,
	)
	require.NoError(t, err, "Failed to create test agent")
	return agent
}

// CreateTestContext creates a context with the given agent as the operator
func CreateTestContext(agent *models.Agent) context.Context {
	return appctx.SetOperator(context.Background(), agent)
}
