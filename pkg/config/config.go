package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the bridge daemon configuration
type Config struct {
	Chain      ChainConfig      `mapstructure:"chain"`
	Withdraw   WithdrawConfig   `mapstructure:"withdraw"`
	Fee        FeeConfig        `mapstructure:"fee"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Shutdown   ShutdownConfig   `mapstructure:"shutdown"`

	Chains []ChainEntry `mapstructure:"chains"`
	Tokens []TokenEntry `mapstructure:"tokens"`
	Roles  RolesConfig  `mapstructure:"roles"`
}

// ChainConfig identifies this bridge instance
type ChainConfig struct {
	Code  uint32 `mapstructure:"code"`
	Label string `mapstructure:"label"`
}

// WithdrawConfig contains withdrawal state-machine settings
type WithdrawConfig struct {
	// CancelWindow is clamped to [30s, 24h] by the bridge core.
	CancelWindow time.Duration `mapstructure:"cancel_window"`
}

// FeeConfig contains the deposit fee schedule
type FeeConfig struct {
	StandardBps       uint32 `mapstructure:"standard_bps"`
	DiscountBps       uint32 `mapstructure:"discount_bps"`
	DiscountToken     string `mapstructure:"discount_token"`
	DiscountThreshold string `mapstructure:"discount_threshold"`
	Recipient         string `mapstructure:"recipient"`
}

// RateLimitConfig contains the rate-limiter guard settings
type RateLimitConfig struct {
	Window            time.Duration `mapstructure:"window"`
	SupplyFractionBps uint32        `mapstructure:"supply_fraction_bps"`
	FallbackLimit     string        `mapstructure:"fallback_limit"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ChainEntry registers a counterparty chain at boot
type ChainEntry struct {
	Code  uint32 `mapstructure:"code"`
	Label string `mapstructure:"label"`
}

// TokenEntry registers a local token and its per-chain destination mappings
// at boot
type TokenEntry struct {
	Address      string             `mapstructure:"address"`
	Custody      string             `mapstructure:"custody"`
	Decimals     uint8              `mapstructure:"decimals"`
	Destinations []DestinationEntry `mapstructure:"destinations"`
}

// DestinationEntry maps a local token onto a counterparty chain
type DestinationEntry struct {
	ChainCode uint32 `mapstructure:"chain_code"`
	Token     string `mapstructure:"token"`
	Decimals  uint8  `mapstructure:"decimals"`
}

// RolesConfig seeds the access-role sets at boot
type RolesConfig struct {
	Operators []string `mapstructure:"operators"`
	Cancelers []string `mapstructure:"cancelers"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "bridge_audit")

	// Withdrawal defaults
	viper.SetDefault("withdraw.cancel_window", "5m")

	// Fee defaults
	viper.SetDefault("fee.standard_bps", 30)
	viper.SetDefault("fee.discount_bps", 10)

	// Rate-limit defaults
	viper.SetDefault("rate_limit.window", "24h")
	viper.SetDefault("rate_limit.supply_fraction_bps", 500)
	viper.SetDefault("rate_limit.fallback_limit", "1000000000000000000000")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")

	// Shutdown defaults
	viper.SetDefault("shutdown.timeout", "30s")
}

func validate(config *Config) error {
	if config.Chain.Code == 0 {
		return fmt.Errorf("chain.code is required and must not be 0")
	}
	if config.Chain.Label == "" {
		return fmt.Errorf("chain.label is required")
	}
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	for i, entry := range config.Chains {
		if entry.Code == 0 {
			return fmt.Errorf("chains[%d].code must not be 0", i)
		}
		if entry.Code == config.Chain.Code {
			return fmt.Errorf("chains[%d].code %d collides with this instance", i, entry.Code)
		}
	}
	for i, entry := range config.Tokens {
		if entry.Custody != "lock_unlock" && entry.Custody != "mint_burn" {
			return fmt.Errorf("tokens[%d].custody must be lock_unlock or mint_burn", i)
		}
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
