package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Warehouse WarehouseConfig
	Auth      AuthConfig
	KurrentDB KurrentDBConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
	Env  string
	// RequestTimeout is the hard ceiling for one request, including every
	// warehouse query it issues.
	RequestTimeout time.Duration
	// DebugEndpoint exposes /api/debug with masked warehouse settings.
	DebugEndpoint bool
}

// IsProduction reports whether the service runs in production mode.
func (s ServerConfig) IsProduction() bool {
	return s.Env == "production"
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// WarehouseConfig holds connection settings for the analytics warehouse that
// hosts the population table.
type WarehouseConfig struct {
	// Driver: "postgres" or "sqlserver"
	Driver   string
	Account  string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Schema   string
	// Warehouse is the compute warehouse name, informational for the debug endpoint.
	Warehouse       string
	SSLMode         string
	PopulationTable string
}

// DSN builds the driver-specific connection string.
func (w WarehouseConfig) DSN() string {
	if w.Driver == "sqlserver" {
		dsn := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
			w.Host, w.Port, w.Database, w.User, w.Password)
		if w.SSLMode != "disable" {
			dsn += ";encrypt=true;TrustServerCertificate=true"
		}
		return dsn
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		w.Host, w.Port, w.User, w.Password, w.Database, w.SSLMode,
	)
	if w.Schema != "" {
		dsn += " search_path=" + w.Schema
	}
	return dsn
}

type AuthConfig struct {
	JWTSecret    string
	Username     string
	PasswordHash string
	SessionTTL   time.Duration
	CookieName   string
	// LoginPerMinute limits login attempts per client IP.
	LoginPerMinute int
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB).
type KurrentDBConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

type LogConfig struct {
	Level string
}

var defaults = map[string]any{
	"SERVER_PORT":            8080,
	"ENV":                    "development",
	"REQUEST_TIMEOUT":        "30s",
	"DEBUG_ENDPOINT_ENABLED": false,

	"DB_HOST":     "localhost",
	"DB_PORT":     5432,
	"DB_USER":     "targeting",
	"DB_PASSWORD": "targeting",
	"DB_NAME":     "targeting",
	"DB_SSLMODE":  "disable",

	"WAREHOUSE_DRIVER":           "postgres",
	"WAREHOUSE_ACCOUNT":          "",
	"WAREHOUSE_HOST":             "localhost",
	"WAREHOUSE_PORT":             5432,
	"WAREHOUSE_USER":             "targeting",
	"WAREHOUSE_PASSWORD":         "targeting",
	"WAREHOUSE_DATABASE":         "NEST_AHC_NC",
	"WAREHOUSE_SCHEMA":           "PUBLIC",
	"WAREHOUSE_NAME":             "",
	"WAREHOUSE_SSLMODE":          "disable",
	"WAREHOUSE_POPULATION_TABLE": "FINAL_OUTPUT_TEST_20250511",

	"JWT_SECRET":            "dev-secret-change-in-prod",
	"AUTH_USERNAME":         "parameanadmin",
	"AUTH_PASSWORD_HASH":    "",
	"SESSION_TTL":           "8h",
	"SESSION_COOKIE":        "paramean_session",
	"LOGIN_RATE_PER_MINUTE": 10,

	"KURRENTDB_ENABLED":  false,
	"KURRENTDB_HOST":     "localhost",
	"KURRENTDB_PORT":     2113,
	"KURRENTDB_INSECURE": true,
	"KURRENTDB_USERNAME": "",
	"KURRENTDB_PASSWORD": "",

	"LOG_LEVEL": "info",
}

// Load reads configuration from the environment. When CONFIG_FILE is set the
// named YAML file is read first and environment variables override it.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("ENV"),
			RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
			DebugEndpoint:  v.GetBool("DEBUG_ENDPOINT_ENABLED"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Warehouse: WarehouseConfig{
			Driver:          strings.ToLower(v.GetString("WAREHOUSE_DRIVER")),
			Account:         v.GetString("WAREHOUSE_ACCOUNT"),
			Host:            v.GetString("WAREHOUSE_HOST"),
			Port:            v.GetInt("WAREHOUSE_PORT"),
			User:            v.GetString("WAREHOUSE_USER"),
			Password:        v.GetString("WAREHOUSE_PASSWORD"),
			Database:        v.GetString("WAREHOUSE_DATABASE"),
			Schema:          v.GetString("WAREHOUSE_SCHEMA"),
			Warehouse:       v.GetString("WAREHOUSE_NAME"),
			SSLMode:         v.GetString("WAREHOUSE_SSLMODE"),
			PopulationTable: v.GetString("WAREHOUSE_POPULATION_TABLE"),
		},
		Auth: AuthConfig{
			JWTSecret:      v.GetString("JWT_SECRET"),
			Username:       v.GetString("AUTH_USERNAME"),
			PasswordHash:   v.GetString("AUTH_PASSWORD_HASH"),
			SessionTTL:     v.GetDuration("SESSION_TTL"),
			CookieName:     v.GetString("SESSION_COOKIE"),
			LoginPerMinute: v.GetInt("LOGIN_RATE_PER_MINUTE"),
		},
		KurrentDB: KurrentDBConfig{
			Enabled:  v.GetBool("KURRENTDB_ENABLED"),
			Host:     v.GetString("KURRENTDB_HOST"),
			Port:     v.GetInt("KURRENTDB_PORT"),
			Insecure: v.GetBool("KURRENTDB_INSECURE"),
			Username: v.GetString("KURRENTDB_USERNAME"),
			Password: v.GetString("KURRENTDB_PASSWORD"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late at request time.
func (c *Config) Validate() error {
	switch c.Warehouse.Driver {
	case "postgres", "sqlserver":
	default:
		return fmt.Errorf("unsupported warehouse driver %q", c.Warehouse.Driver)
	}
	if c.Warehouse.PopulationTable == "" {
		return fmt.Errorf("WAREHOUSE_POPULATION_TABLE is required")
	}
	if c.Server.IsProduction() {
		if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == defaults["JWT_SECRET"] {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Auth.PasswordHash == "" {
			return fmt.Errorf("AUTH_PASSWORD_HASH must be set in production")
		}
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}
