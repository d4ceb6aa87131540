package database

import (
	"errors"
	"fmt"
	"strings"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// sharedMemoryDSN is used when sqlite runs without a file path
const sharedMemoryDSN = "file::memory:?cache=shared"

// DatabaseConfig selects the store behind the POS. Postgres serves the shop;
// sqlite serves local development and the test suites.
type DatabaseConfig struct {
	Driver string

	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	// Path is the sqlite file, or ":memory:" for a private in-memory database
	Path string
}

// NormalizedDriver maps aliases onto the supported driver names. An empty
// driver means sqlite.
func (c DatabaseConfig) NormalizedDriver() string {
	switch d := strings.ToLower(strings.TrimSpace(c.Driver)); d {
	case "", "sqlite3", DriverSQLite:
		return DriverSQLite
	case "postgresql", "pg", DriverPostgres:
		return DriverPostgres
	default:
		return d
	}
}

// Validate reports settings that can never produce a working connection
func (c DatabaseConfig) Validate() error {
	switch c.NormalizedDriver() {
	case DriverSQLite:
		return nil
	case DriverPostgres:
		var missing []string
		if c.Host == "" {
			missing = append(missing, "host")
		}
		if c.Name == "" {
			missing = append(missing, "name")
		}
		if c.User == "" {
			missing = append(missing, "user")
		}
		if len(missing) > 0 {
			return fmt.Errorf("postgres config missing %s", strings.Join(missing, ", "))
		}
		return nil
	default:
		return errors.New("unsupported database driver: " + c.Driver + " (supported: postgres, sqlite)")
	}
}

// String returns a string representation with the password masked
func (c DatabaseConfig) String() string {
	if c.NormalizedDriver() == DriverSQLite {
		return fmt.Sprintf("DatabaseConfig{Driver: sqlite, Path: %q}", c.Path)
	}
	return fmt.Sprintf("DatabaseConfig{Driver: %s, Host: %s, Port: %s, User: %s, Password: [REDACTED], Name: %s, SSLMode: %s}",
		c.NormalizedDriver(), c.Host, c.Port, c.User, c.Name, c.SSLMode)
}

// DSN builds the connection string for the driver. Unknown drivers yield "".
func (c DatabaseConfig) DSN() string {
	switch c.NormalizedDriver() {
	case DriverPostgres:
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			c.Host, c.User, c.Password, c.Name, c.Port, sslMode)
	case DriverSQLite:
		if c.Path == "" {
			return sharedMemoryDSN
		}
		return c.Path
	default:
		return ""
	}
}
