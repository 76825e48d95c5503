package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	StoreDriver    string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	SQLitePath     string        `mapstructure:"SQLITE_PATH"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir  string        `mapstructure:"MIGRATIONS_DIR"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	NotifyStream   string        `mapstructure:"NOTIFY_STREAM"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	// Capacity thresholds, percentages unless noted.
	FlowHighBeds           int     `mapstructure:"FLOW_HIGH_BEDS"`
	UtilizationCriticalPct float64 `mapstructure:"UTILIZATION_CRITICAL_PCT"`
	UtilizationHighPct     float64 `mapstructure:"UTILIZATION_HIGH_PCT"`
	ShortageCriticalPct    float64 `mapstructure:"SHORTAGE_CRITICAL_PCT"`
	DonorMaxPct            float64 `mapstructure:"DONOR_MAX_PCT"`
	RemediationFraction    float64 `mapstructure:"REMEDIATION_FRACTION"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var keys = []string{
	"PORT", "ENV", "STORE_DRIVER", "DATABASE_URL", "SQLITE_PATH",
	"DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR", "REDIS_URL", "NOTIFY_STREAM",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE", "CORS_ORIGINS", "REQUEST_TIMEOUT",
	"FLOW_HIGH_BEDS", "UTILIZATION_CRITICAL_PCT", "UTILIZATION_HIGH_PCT",
	"SHORTAGE_CRITICAL_PCT", "DONOR_MAX_PCT", "REMEDIATION_FRACTION",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("SQLITE_PATH", "data/hospitalops.db")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("NOTIFY_STREAM", "hospitalops:notifications")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("FLOW_HIGH_BEDS", 50)
	v.SetDefault("UTILIZATION_CRITICAL_PCT", 90)
	v.SetDefault("UTILIZATION_HIGH_PCT", 70)
	v.SetDefault("SHORTAGE_CRITICAL_PCT", 95)
	v.SetDefault("DONOR_MAX_PCT", 50)
	v.SetDefault("REMEDIATION_FRACTION", 0.2)

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

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if cfg.StoreDriver == DriverPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", DriverPostgres)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key is required so bearer tokens are actually verified.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.StoreDriver)
	}

	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters, got %d", len(c.AuthSigningKey))
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}

	if c.UtilizationHighPct >= c.UtilizationCriticalPct {
		return fmt.Errorf("UTILIZATION_HIGH_PCT (%v) must be below UTILIZATION_CRITICAL_PCT (%v)",
			c.UtilizationHighPct, c.UtilizationCriticalPct)
	}
	if c.ShortageCriticalPct < c.UtilizationCriticalPct {
		return fmt.Errorf("SHORTAGE_CRITICAL_PCT (%v) must not be below UTILIZATION_CRITICAL_PCT (%v)",
			c.ShortageCriticalPct, c.UtilizationCriticalPct)
	}
	if c.RemediationFraction <= 0 || c.RemediationFraction > 1 {
		return fmt.Errorf("REMEDIATION_FRACTION must be in (0, 1], got %v", c.RemediationFraction)
	}

	return nil
}
