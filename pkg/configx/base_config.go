package configx

// Config - config interface.
type Config interface {
	GetServiceName() string
	GetVersion() string
	GetEnvironment() string
	GetLoggingConfig() *LoggingConfig
	GetConnectionConfig() *ConnectionConfig
	GetTransactionConfig() *TransactionConfig
	IsLocalEnvironment() bool
}

// BaseConfig - app config struct.
// This struct represents the base configuration for the application and is expected to be in the following YAML format:
/*
name: "TestApp"
environment: "development"
version: "1.0"
logging:
  level: "debug"
connection:
  host: "localhost"
  port: 5432
  dbname: "app"
  user: "postgres"
  password: "password"
transaction:
  strategy: "strict"
  disconnectCodes:
    - "25006"
    - "57P01"
*/
type BaseConfig struct {
	Name        string             `mapstructure:"name"`
	Environment string             `mapstructure:"environment"`
	Version     string             `mapstructure:"version"`
	Logging     *LoggingConfig     `mapstructure:"logging"`
	Connection  *ConnectionConfig  `mapstructure:"connection"`
	Transaction *TransactionConfig `mapstructure:"transaction"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// ConnectionConfig represents the configuration required for the database
// connection.
type ConnectionConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int32  `mapstructure:"port" validate:"required,gt=0"`
	DBName   string `mapstructure:"dbname" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
}

// TransactionConfig - transaction strategy and disconnect policy for the
// connection. DisconnectCodes lists the SQLSTATE codes (5 characters each)
// that force connection termination after the triggering error has been
// returned to the caller.
type TransactionConfig struct {
	Strategy        string   `mapstructure:"strategy" validate:"omitempty,oneof=strict naive"`
	DisconnectCodes []string `mapstructure:"disconnectCodes" validate:"omitempty,dive,len=5"`
}

func (cfg BaseConfig) GetServiceName() string {
	return cfg.Name
}

func (cfg BaseConfig) GetVersion() string {
	return cfg.Version
}

func (cfg BaseConfig) GetEnvironment() string {
	return cfg.Environment
}

func (cfg BaseConfig) IsLocalEnvironment() bool {
	return checkIfLocalEnv(cfg.Environment)
}

func (cfg BaseConfig) GetLoggingConfig() *LoggingConfig {
	return cfg.Logging
}

func (cfg BaseConfig) GetConnectionConfig() *ConnectionConfig {
	return cfg.Connection
}

func (cfg BaseConfig) GetTransactionConfig() *TransactionConfig {
	return cfg.Transaction
}
