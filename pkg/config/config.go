package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// IdentityConfig contains identity provider settings.
//
// Mode selects the credential verifier:
//   - "did":  DID tokens validated locally (EIP-191 proof) with a remote
//     metadata lookup against the provider's admin API.
//   - "jwks": RS256 JWTs validated against a JWKS endpoint; the wallet
//     address is read from AddressClaim.
type IdentityConfig struct {
	Mode           string        `mapstructure:"mode"`
	ProviderURL    string        `mapstructure:"provider_url"`
	SecretKey      string        `mapstructure:"secret_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	JWKSURL        string        `mapstructure:"jwks_url"`
	JWTIssuer      string        `mapstructure:"jwt_issuer"`
	AddressClaim   string        `mapstructure:"address_claim"`
}

// StorageConfig contains content-addressed store settings
type StorageConfig struct {
	NodeURL        string        `mapstructure:"node_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LedgerConfig contains ledger client settings
type LedgerConfig struct {
	RPCURL           string        `mapstructure:"rpc_url"`
	ChainID          int64         `mapstructure:"chain_id"`
	SigningKey       string        `mapstructure:"signing_key"`
	RegistryContract string        `mapstructure:"registry_contract"`
	MaxGasPrice      string        `mapstructure:"max_gas_price"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	ConfirmTimeout   time.Duration `mapstructure:"confirm_timeout"`
}

// DatabaseConfig contains settings for the optional upload journal database
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// Enabled reports whether the upload journal is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Secrets are expected from the environment, not the config file.
	_ = viper.BindEnv("identity.secret_key", "IDENTITY_SECRET_KEY")
	_ = viper.BindEnv("ledger.signing_key", "LEDGER_SIGNING_KEY")
	_ = viper.BindEnv("database.password", "DATABASE_PASSWORD")

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
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("server.max_upload_bytes", 32<<20)

	// Identity defaults
	viper.SetDefault("identity.mode", "did")
	viper.SetDefault("identity.request_timeout", "10s")
	viper.SetDefault("identity.address_claim", "wallet_address")

	// Storage defaults
	viper.SetDefault("storage.request_timeout", "30s")

	// Ledger defaults
	viper.SetDefault("ledger.request_timeout", "15s")
	viper.SetDefault("ledger.confirm_timeout", "2m")

	// Database defaults
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "docledger")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

func validate(config *Config) error {
	switch config.Identity.Mode {
	case "did":
		if config.Identity.ProviderURL == "" {
			return fmt.Errorf("identity.provider_url is required in did mode")
		}
		if config.Identity.SecretKey == "" {
			return fmt.Errorf("identity.secret_key is required in did mode")
		}
	case "jwks":
		if config.Identity.JWKSURL == "" {
			return fmt.Errorf("identity.jwks_url is required in jwks mode")
		}
	default:
		return fmt.Errorf("identity.mode must be \"did\" or \"jwks\", got %q", config.Identity.Mode)
	}
	if config.Storage.NodeURL == "" {
		return fmt.Errorf("storage.node_url is required")
	}
	if config.Ledger.RPCURL == "" {
		return fmt.Errorf("ledger.rpc_url is required")
	}
	if config.Ledger.SigningKey == "" {
		return fmt.Errorf("ledger.signing_key is required")
	}
	if config.Ledger.RegistryContract == "" {
		return fmt.Errorf("ledger.registry_contract is required")
	}
	return nil
}
