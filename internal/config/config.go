package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// devJWTSecret is only accepted outside release mode.
	devJWTSecret = "default_super_secret_key"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string
	Database    DatabaseConfig
	JWT         JWTConfig
	Log         LogConfig
}

type DatabaseConfig struct {
	Driver   string // postgres or sqlite
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string // sqlite file, or a file: URI for an in-memory database
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type LogConfig struct {
	Level  string
	Format string // text or json
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_PATH", "refuel.db")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", "24h")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load reads configs/.env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Debug("No configs/.env file found, using process environment")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Port:    v.GetString("PORT"),
		GinMode: v.GetString("GIN_MODE"),
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			Path:     v.GetString("DB_PATH"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			TTL:    v.GetDuration("JWT_TTL"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	for _, origin := range strings.Split(v.GetString("CORS_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	if cfg.Database.Driver != DriverPostgres && cfg.Database.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q: must be %s or %s", cfg.Database.Driver, DriverPostgres, DriverSQLite)
	}
	if cfg.JWT.TTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be a positive duration, got %q", v.GetString("JWT_TTL"))
	}
	if cfg.JWT.Secret == "" {
		if cfg.GinMode == "release" {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in release mode")
		}
		cfg.JWT.Secret = devJWTSecret
	}

	return cfg, nil
}

// DSN returns the postgres connection URL.
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

// String returns a printable form of the config with secrets masked.
func (c *Config) String() string {
	target := c.Database.Path
	if c.Database.Driver == DriverPostgres {
		target = c.Database.Host + ":" + c.Database.Port + "/" + c.Database.Name
	}
	return fmt.Sprintf("Config{Port: %s, DB: %s %s, JWT: *** (ttl %s), Log: %s/%s}",
		c.Port, c.Database.Driver, target, c.JWT.TTL, c.Log.Level, c.Log.Format)
}
