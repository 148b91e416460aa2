package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingConfig is returned by Load when a required key has no value.
var ErrMissingConfig = errors.New("missing required configuration")

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the application configuration.
type Config struct {
	Port              string        `mapstructure:"PORT"`
	GinMode           string        `mapstructure:"GIN_MODE"`
	StoreDriver       string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	TokenTTL          time.Duration `mapstructure:"TOKEN_TTL"`
	AdminPasswordHash string        `mapstructure:"ADMIN_PASSWORD_HASH"`
	VerifyClaims      bool          `mapstructure:"VERIFY_CLAIMS"`
	TurnTimeLimit     time.Duration `mapstructure:"TURN_TIME_LIMIT"`
	CallInterval      time.Duration `mapstructure:"CALL_INTERVAL"`
	StartingTokens    int           `mapstructure:"STARTING_TOKENS"`
	RateLimitRPS      int           `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	CORSOrigins       string        `mapstructure:"CORS_ORIGINS"`
	SoloSessionTTL    time.Duration `mapstructure:"SOLO_SESSION_TTL"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
}

var AppConfig *Config

var defaults = map[string]any{
	"PORT":                "8080",
	"GIN_MODE":            "debug",
	"STORE_DRIVER":        DriverPostgres,
	"DATABASE_URL":        "",
	"JWT_SECRET":          "",
	"TOKEN_TTL":           "168h",
	"ADMIN_PASSWORD_HASH": "",
	"VERIFY_CLAIMS":       false,
	"TURN_TIME_LIMIT":     "30s",
	"CALL_INTERVAL":       "2500ms",
	"STARTING_TOKENS":     5,
	"RATE_LIMIT_RPS":      5,
	"RATE_LIMIT_BURST":    10,
	"CORS_ORIGINS":        "http://localhost:3000",
	"SOLO_SESSION_TTL":    "1h",
	"LOG_LEVEL":           "info",
}

// Load reads an optional .env file and the process environment.
// Every key gets a default so viper's Unmarshal also sees plain env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = &cfg
	return &cfg, nil
}

// Validate reports every missing required key at once.
func (c *Config) Validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Origins splits CORS_ORIGINS on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, part := range strings.Split(c.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}
