package configx_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marcodd23/go-txcore/pkg/configx"
)

// Shared configuration content
var configContent = `
name: "TestApp"
environment: "development"
version: "latest"
logging:
  level: "debug"
connection:
  host: "localhost"
  port: 5432
  dbname: "main-db"
  user: "postgres"
  password: "password"
transaction:
  strategy: "naive"
  disconnectCodes:
    - "25006"
    - "57P01"
`

type TestConfiguration struct {
	configx.BaseConfig `mapstructure:",squash"`
}

func createTestConfigFile(t *testing.T, content string) string {
	file, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}
	defer file.Close()

	_, err = file.WriteString(content)
	if err != nil {
		t.Fatalf("Failed to write to temp config file: %v", err)
	}

	return file.Name()
}

func TestLoadConfigFromFile(t *testing.T) {
	configFilePath := createTestConfigFile(t, configContent)
	defer os.Remove(configFilePath)

	var cfg TestConfiguration
	err := configx.ReadConfiguration(configFilePath, &cfg)
	assert.NoError(t, err)
	assert.Equal(t, "TestApp", cfg.GetServiceName())
	assert.Equal(t, "development", cfg.GetEnvironment())
	assert.NotNil(t, cfg.Logging)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NotNil(t, cfg.Connection)
	assert.Equal(t, "localhost", cfg.Connection.Host)
	assert.Equal(t, int32(5432), cfg.Connection.Port)
	assert.Equal(t, "main-db", cfg.Connection.DBName)
	assert.Equal(t, "postgres", cfg.Connection.User)
	assert.NotNil(t, cfg.Transaction)
	assert.Equal(t, "naive", cfg.Transaction.Strategy)
	assert.Equal(t, []string{"25006", "57P01"}, cfg.Transaction.DisconnectCodes)
}

func TestEnvVariableOverridesConfig(t *testing.T) {
	configFilePath := createTestConfigFile(t, configContent)
	defer os.Remove(configFilePath)

	// Set environment variable to override the connection port
	os.Setenv("CONNECTION_PORT", "6432")
	defer os.Unsetenv("CONNECTION_PORT")

	var cfg TestConfiguration
	err := configx.ReadConfiguration(configFilePath, &cfg)
	assert.NoError(t, err)
	assert.Equal(t, "TestApp", cfg.GetServiceName())
	assert.NotNil(t, cfg.Connection)
	assert.Equal(t, int32(6432), cfg.Connection.Port) // Expecting overridden value
	assert.Equal(t, "main-db", cfg.Connection.DBName)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	invalidContent := `
name: "TestApp"
environment: "development"
version: "latest"
connection:
  host: "localhost"
  port: 5432
  dbname: "main-db"
  user: "postgres"
transaction:
  strategy: "optimistic"
`

	configFilePath := createTestConfigFile(t, invalidContent)
	defer os.Remove(configFilePath)

	var cfg TestConfiguration
	err := configx.ReadConfiguration(configFilePath, &cfg)
	assert.Error(t, err)
}
