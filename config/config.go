package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// StartupMode defines how the server treats a missing or malformed MongoDB URI
type StartupMode string

const (
	// StartupModeGraceful passes the URI through uninspected; a bad URI surfaces
	// as a logged connection error and the server keeps serving (default)
	StartupModeGraceful StartupMode = "graceful"
	// StartupModeStrict rejects a missing or malformed URI at load time
	StartupModeStrict StartupMode = "strict"
)

const (
	// DefaultPort is used when PORT is not set
	DefaultPort = 5000
	// DefaultRoutePrefix is where the transaction route table is mounted
	DefaultRoutePrefix = "/api/transactions"
	// DefaultDatabase is used when neither the config nor the URI name a database
	DefaultDatabase = "test"
	// EnvPrefix prefixes every environment variable except MONGODB_URI and PORT
	EnvPrefix = "TXSERVER"
)

// Config holds all configuration for the transaction server
type Config struct {
	StartupMode StartupMode `mapstructure:"startup_mode" yaml:"startup_mode" validate:"omitempty,oneof=graceful strict"`

	MongoDB struct {
		URI            string        `mapstructure:"uri" yaml:"uri"`
		Database       string        `mapstructure:"database" yaml:"database"`
		ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout" validate:"gte=0"`
		MaxPoolSize    uint64        `mapstructure:"max_pool_size" yaml:"max_pool_size"`
	} `mapstructure:"mongodb" yaml:"mongodb"`

	API struct {
		Host                 string        `mapstructure:"host" yaml:"host"`
		Port                 int           `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
		RoutePrefix          string        `mapstructure:"route_prefix" yaml:"route_prefix" validate:"required,startswith=/"`
		AllowedOrigins       []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
		JSONBodyLimit        int64         `mapstructure:"json_body_limit" yaml:"json_body_limit" validate:"gt=0"`
		TrustProxy           bool          `mapstructure:"trust_proxy" yaml:"trust_proxy"`
		TrustedProxyNetworks []string      `mapstructure:"trusted_proxy_networks" yaml:"trusted_proxy_networks"`
		ReadHeaderTimeout    time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gte=0"`
		RateLimit            struct {
			RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
			Burst             int     `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
		} `mapstructure:"rate_limit" yaml:"rate_limit"`
	} `mapstructure:"api" yaml:"api"`

	Admin struct {
		// Addr enables the admin listener (metrics, health) when non-empty
		Addr string `mapstructure:"addr" yaml:"addr"`
	} `mapstructure:"admin" yaml:"admin"`

	Secrets struct {
		// Provider resolves the MongoDB URI when MONGODB_URI is unset: env, vault or aws
		Provider string `mapstructure:"provider" yaml:"provider" validate:"omitempty,oneof=env vault aws"`
		Key      string `mapstructure:"key" yaml:"key"`
		Vault    struct {
			Address string `mapstructure:"address" yaml:"address"`
			Token   string `mapstructure:"token" yaml:"-"`
			Path    string `mapstructure:"path" yaml:"path"`
		} `mapstructure:"vault" yaml:"vault"`
		AWS struct {
			Region    string `mapstructure:"region" yaml:"region"`
			SecretID  string `mapstructure:"secret_id" yaml:"secret_id"`
			Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
			AccessKey string `mapstructure:"access_key" yaml:"-"`
			SecretKey string `mapstructure:"secret_key" yaml:"-"`
		} `mapstructure:"aws" yaml:"aws"`
	} `mapstructure:"secrets" yaml:"secrets"`

	Log struct {
		Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
		Format string `mapstructure:"format" yaml:"format" validate:"oneof=console json"`
	} `mapstructure:"log" yaml:"log"`
}

// LoadOptions controls where configuration is read from
type LoadOptions struct {
	// ConfigFile is an explicit config file path; empty searches for config.yaml
	ConfigFile string
	// EnvFile is the dotenv file to load before reading the environment
	EnvFile string
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("startup_mode", string(StartupModeGraceful))

	v.SetDefault("mongodb.uri", "")
	v.SetDefault("mongodb.database", "")
	v.SetDefault("mongodb.connect_timeout", "30s") // server selection window before the attempt is logged as failed
	v.SetDefault("mongodb.max_pool_size", 100)

	v.SetDefault("api.host", "")
	v.SetDefault("api.port", DefaultPort)
	v.SetDefault("api.route_prefix", DefaultRoutePrefix)
	v.SetDefault("api.allowed_origins", []string{"*"})
	v.SetDefault("api.json_body_limit", 100*1024)
	v.SetDefault("api.trust_proxy", false)
	v.SetDefault("api.trusted_proxy_networks", []string{})
	v.SetDefault("api.read_header_timeout", "10s")
	v.SetDefault("api.rate_limit.requests_per_second", 0) // disabled
	v.SetDefault("api.rate_limit.burst", 0)

	v.SetDefault("admin.addr", "")

	v.SetDefault("secrets.provider", SecretProviderEnv)
	v.SetDefault("secrets.key", "mongodb_uri")
	v.SetDefault("secrets.vault.address", "http://127.0.0.1:8200")
	v.SetDefault("secrets.vault.token", "")
	v.SetDefault("secrets.vault.path", "secret/txserver")
	v.SetDefault("secrets.aws.region", "us-east-1")
	v.SetDefault("secrets.aws.secret_id", "txserver/secrets")
	v.SetDefault("secrets.aws.endpoint", "")
	v.SetDefault("secrets.aws.access_key", "")
	v.SetDefault("secrets.aws.secret_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// loadFromEnv sets up environment variable loading
func loadFromEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The two variables the server has always read, unprefixed
	_ = v.BindEnv("mongodb.uri", "MONGODB_URI")
	_ = v.BindEnv("api.port", "PORT")
}

// loadEnvFile loads a dotenv file into the process environment.
// Variables already present in the environment are left untouched.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadConfig loads configuration from the env file, config file and environment variables
func LoadConfig(opts LoadOptions) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)
	loadFromEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file, defaults and env vars only
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := LoadSecrets(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

var validate = validator.New()

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return err
	}

	if config.StartupMode == StartupModeStrict {
		if err := ValidateMongoURI(config.MongoDB.URI); err != nil {
			return err
		}
	}

	for _, network := range config.API.TrustedProxyNetworks {
		if !isValidIPOrCIDR(strings.TrimSpace(network)) {
			return fmt.Errorf("invalid trusted proxy network: %s (must be IP or CIDR)", network)
		}
	}

	return nil
}

// ValidateMongoURI checks that uri is a connection string the driver accepts.
// mongodb+srv URIs are resolved, so a missing SRV record fails here.
func ValidateMongoURI(uri string) error {
	if uri == "" {
		return fmt.Errorf("MongoDB URI is required (set MONGODB_URI)")
	}
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if len(cs.Hosts) == 0 {
		return fmt.Errorf("invalid MongoDB URI: missing host")
	}
	return nil
}

// isValidIPOrCIDR checks if a string is a valid IP address or CIDR
func isValidIPOrCIDR(ipStr string) bool {
	if ip := net.ParseIP(ipStr); ip != nil {
		return true
	}
	if _, _, err := net.ParseCIDR(ipStr); err == nil {
		return true
	}
	return false
}

// DatabaseName returns the configured database, falling back to the one named
// in the URI and then to DefaultDatabase
func (c *Config) DatabaseName() string {
	if c.MongoDB.Database != "" {
		return c.MongoDB.Database
	}
	if c.MongoDB.URI != "" {
		if cs, err := connstring.Parse(c.MongoDB.URI); err == nil && cs.Database != "" {
			return cs.Database
		}
	}
	return DefaultDatabase
}

// ListenAddr returns the host:port the API server binds to
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.API.Host, strconv.Itoa(c.API.Port))
}

// IsStrictMode returns true if a bad MongoDB URI should abort startup
func (c *Config) IsStrictMode() bool {
	return c.StartupMode == StartupModeStrict
}
