package config

import (
	"fmt"
	"time"

	"github.com/hengadev/errsx"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	StoreDriver     string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBSchema        string        `mapstructure:"DB_SCHEMA"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	SQLitePath      string        `mapstructure:"SQLITE_PATH"`
	ServerBaseURL   string        `mapstructure:"SERVER_BASE_URL"`
	TLSEnabled      bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile     string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile      string        `mapstructure:"TLS_KEY_FILE"`
	TLSClientCAFile string        `mapstructure:"TLS_CLIENT_CA_FILE"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
}

var keys = []string{
	"PORT", "ENV", "STORE_DRIVER", "DATABASE_URL", "DB_SCHEMA", "DB_MAX_CONNS",
	"DB_MIN_CONNS", "SQLITE_PATH", "SERVER_BASE_URL", "TLS_ENABLED",
	"TLS_CERT_FILE", "TLS_KEY_FILE", "TLS_CLIENT_CA_FILE", "REQUEST_TIMEOUT",
	"LOG_LEVEL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

// Load reads configuration from the environment and an optional .env file.
// It does not validate; call Validate before using the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "9094")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", StorePostgres)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// MutualTLS reports whether client certificates are required.
func (c *Config) MutualTLS() bool {
	return c.TLSEnabled && c.TLSClientCAFile != ""
}

// Level returns the parsed LOG_LEVEL.
func (c *Config) Level() (zerolog.Level, error) {
	return zerolog.ParseLevel(c.LogLevel)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs errsx.Map

	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs.Set("DATABASE_URL", "required when STORE_DRIVER is postgres")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs.Set("SQLITE_PATH", "required when STORE_DRIVER is sqlite")
		}
	default:
		errs.Set("STORE_DRIVER", fmt.Sprintf("must be %q or %q, got %q", StorePostgres, StoreSQLite, c.StoreDriver))
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			errs.Set("TLS_CERT_FILE", "required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			errs.Set("TLS_KEY_FILE", "required when TLS_ENABLED is true")
		}
	} else if c.TLSClientCAFile != "" {
		errs.Set("TLS_CLIENT_CA_FILE", "requires TLS_ENABLED")
	}

	if c.RequestTimeout <= 0 {
		errs.Set("REQUEST_TIMEOUT", "must be positive")
	}

	if c.RateLimitRPS < 0 {
		errs.Set("RATE_LIMIT_RPS", "must not be negative")
	}

	if _, err := c.Level(); err != nil {
		errs.Set("LOG_LEVEL", err)
	}

	if !errs.IsEmpty() {
		return fmt.Errorf("invalid configuration: %w", errs.AsError())
	}
	return nil
}
