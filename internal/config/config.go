package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coffeepula/pos-api/internal/database"
	"github.com/sirupsen/logrus"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(LevelForEnvironment(GetEnvWithDefault("APP_ENV", "development")))
}

// LevelForEnvironment maps APP_ENV to the default log level
func LevelForEnvironment(environment string) logrus.Level {
	switch environment {
	case "development":
		return logrus.DebugLevel
	case "production":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Config used for the application configuration, loading the input from environment variables
type Config struct {
	// Server Configuration
	Port           int           `json:"port"`
	Host           string        `json:"host"`
	Environment    string        `json:"environment"`
	RequestTimeout time.Duration `json:"request_timeout"`
	CORSOrigins    []string      `json:"cors_origins"`

	// Database configuration
	DBDriver   string `json:"db_driver"`
	DBHost     string `json:"db_host"`
	DBPort     string `json:"db_port"`
	DBName     string `json:"db_name"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBSSLMode  string `json:"db_sslmode"`
	DBPath     string `json:"db_path"`
	SeedData   bool   `json:"seed_data"`

	// Logging configuration
	LogLevel string `json:"log_level"`

	// Security Configuration
	JWTSecret    string `json:"jwt_secret"`
	AuthDisabled bool   `json:"auth_disabled"`

	// Loyalty outbox processing
	LoyaltyPollInterval time.Duration `json:"loyalty_poll_interval"`
	LoyaltyMaxAttempts  int           `json:"loyalty_max_attempts"`

	// Receipt header
	ShopName    string `json:"shop_name"`
	ShopAddress string `json:"shop_address"`
	ShopPhone   string `json:"shop_phone"`
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, Host: %s, Environment: %s, DBDriver: %s, DBHost: %s, DBName: %s, DBUser: %s, DBPassword: [REDACTED], DBPath: %s, LogLevel: %s, JWTSecret: [REDACTED], AuthDisabled: %t, RequestTimeout: %s}",
		c.Port, c.Host, c.Environment, c.DBDriver, c.DBHost, c.DBName, c.DBUser, c.DBPath, c.LogLevel, c.AuthDisabled, c.RequestTimeout)
}

// Database returns the connection settings for database.InitDatabase
func (c *Config) Database() database.DatabaseConfig {
	return database.DatabaseConfig{
		Driver:   c.DBDriver,
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		Name:     c.DBName,
		SSLMode:  c.DBSSLMode,
		Path:     c.DBPath,
	}
}

// LoadConfig read the proper configuration from environment variables and returns a Config struct
// Returns an error if any environment variable is present but invalid
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")
	port, err := strconv.Atoi(GetEnvWithDefault("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	driver := strings.ToLower(GetEnvWithDefault("DB_DRIVER", "sqlite"))
	switch driver {
	case "sqlite", "postgres", "postgresql":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (supported: postgres, sqlite)", driver)
	}

	environment := GetEnvWithDefault("APP_ENV", "development")
	jwtSecret := GetEnvWithDefault("JWT_SECRET", "secret")
	if environment == "production" && len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}

	timeout := GetEnvAsType("REQUEST_TIMEOUT_SECONDS", 30)
	if timeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}

	config := &Config{
		Port:                port,
		Host:                GetEnvWithDefault("APP_HOST", "localhost"),
		Environment:         environment,
		RequestTimeout:      time.Duration(timeout) * time.Second,
		CORSOrigins:         splitList(GetEnvWithDefault("CORS_ORIGINS", "*")),
		DBDriver:            driver,
		DBHost:              GetEnvWithDefault("DB_HOST", "localhost"),
		DBPort:              GetEnvWithDefault("DB_PORT", "5432"),
		DBName:              GetEnvWithDefault("DB_NAME", "coffeepos"),
		DBUser:              GetEnvWithDefault("DB_USER", "postgres"),
		DBPassword:          GetEnvWithDefault("DB_PASSWORD", "password"),
		DBSSLMode:           GetEnvWithDefault("DB_SSLMODE", "disable"),
		DBPath:              GetEnvWithDefault("DB_PATH", "coffeepos.sqlite"),
		SeedData:            GetEnvAsType("SEED_DATA", false),
		LogLevel:            GetEnvWithDefault("LOG_LEVEL", "info"),
		JWTSecret:           jwtSecret,
		AuthDisabled:        GetEnvAsType("AUTH_DISABLED", false),
		LoyaltyPollInterval: time.Duration(GetEnvAsType("LOYALTY_POLL_SECONDS", 30)) * time.Second,
		LoyaltyMaxAttempts:  GetEnvAsType("LOYALTY_MAX_ATTEMPTS", 5),
		ShopName:            GetEnvWithDefault("SHOP_NAME", "Coffee Shop"),
		ShopAddress:         GetEnvWithDefault("SHOP_ADDRESS", ""),
		ShopPhone:           GetEnvWithDefault("SHOP_PHONE", ""),
	}
	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Debugf("Environment variable %s not set, using default value", key)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return any(boolValue).(T)
	default:
		return defaultValue // Fallback for unsupported types
	}
}
