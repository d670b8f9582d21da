package config

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// Config holds the configuration for the FleetTrack server and its dependencies.
type Config struct {
	// Listen is the address the FleetTrack server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// ServerURL is the base URL of the FleetTrack server.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// APIKey is the API key protecting the FleetTrack API.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Auth holds the authorization policy configuration.
	Auth *AuthConfig `yaml:"auth" mapstructure:"auth"`
	// Transport holds the transport lookup configuration.
	Transport *TransportConfig `yaml:"transport" mapstructure:"transport"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Path is the path to the sqlite database file.
	Path string `yaml:"path" mapstructure:"path"`
}

// AuthConfig holds the device authorization policy configuration.
type AuthConfig struct {
	// DefaultDeviceAuthorization controls whether a user without explicit
	// device group assignments may access the devices of their account.
	// Accounts may override this per account.
	DefaultDeviceAuthorization bool `yaml:"default_device_authorization" mapstructure:"default_device_authorization"`
	// PreferredDeviceAuth controls how a user's preferred device takes part
	// in authorization decisions. Valid values: "false", "true", "only"
	// (case-insensitive, unknown values fall back to "false").
	PreferredDeviceAuth string `yaml:"preferred_device_auth" mapstructure:"preferred_device_auth"`
	// FailedLoginThreshold is the number of failed login attempts after which
	// a user gets suspended. 0 disables login failure suspension.
	FailedLoginThreshold int `yaml:"failed_login_threshold" mapstructure:"failed_login_threshold"`
	// FailedLoginSuspendSeconds is how long a user stays suspended after
	// exceeding the failed login threshold.
	FailedLoginSuspendSeconds int `yaml:"failed_login_suspend_seconds" mapstructure:"failed_login_suspend_seconds"`
}

// TransportConfig holds the configuration for unique-ID transport lookups.
type TransportConfig struct {
	// QueryEnabled controls whether the transport table is consulted when
	// resolving a hardware unique ID to a device. When disabled, unique IDs
	// are resolved against the device table only.
	QueryEnabled bool `yaml:"query_enabled" mapstructure:"query_enabled"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("FLEETTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.fleettrack")
		v.AddConfigPath("/etc/fleettrack")
	}

	if err := v.ReadInConfig(); err != nil {
		// If no config file is found, use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Some environment variables can be set with the FLEETTRACK_ prefix to override config file values")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:3080")
	v.SetDefault("server_url", "http://localhost:3080")
	v.SetDefault("api_key", "")

	// Database defaults
	v.SetDefault("database.path", "./data/fleettrack.db")

	// Auth defaults
	v.SetDefault("auth.default_device_authorization", true)
	v.SetDefault("auth.preferred_device_auth", "false")
	v.SetDefault("auth.failed_login_threshold", 5)
	v.SetDefault("auth.failed_login_suspend_seconds", 900)

	// Transport defaults
	v.SetDefault("transport.query_enabled", false)
}

func validateConfig(c *Config) error {
	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth == nil {
		return fmt.Errorf("auth configuration is required")
	}
	if c.Auth.FailedLoginThreshold < 0 {
		return fmt.Errorf("auth.failed_login_threshold must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.Auth.PreferredDeviceAuth)) {
	case "", "false", "true", "only":
	default:
		log.Warn("unknown auth.preferred_device_auth value, falling back to \"false\"", "value", c.Auth.PreferredDeviceAuth)
	}
	return nil
}
