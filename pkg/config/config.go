package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/proxsync/proxsync/pkg/log"
	"github.com/spf13/viper"
)

const envPrefix = "PROXSYNC"

type Config struct {
	Database struct {
		Driver          string        `mapstructure:"driver"`
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		Username        string        `mapstructure:"username"`
		Password        string        `mapstructure:"password"`
		Database        string        `mapstructure:"database"`
		SSLMode         string        `mapstructure:"sslmode"`
		Path            string        `mapstructure:"path"`
		MaxConnections  int           `mapstructure:"max_connections"`
		MaxIdleConns    int           `mapstructure:"max_idle_connections"`
		ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
		ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
		Retry           struct {
			MaxAttempts     int           `mapstructure:"max_attempts"`
			InitialDelay    time.Duration `mapstructure:"initial_delay"`
			MaxDelay        time.Duration `mapstructure:"max_delay"`
			BackoffMultiple float64       `mapstructure:"backoff_multiple"`
		} `mapstructure:"retry"`
	} `mapstructure:"database"`

	API struct {
		Port    int    `mapstructure:"port"`
		TLSCert string `mapstructure:"tls_cert"`
		TLSKey  string `mapstructure:"tls_key"`
	} `mapstructure:"api"`

	Auth struct {
		JWTSecret   string        `mapstructure:"jwt_secret"`
		TokenExpiry time.Duration `mapstructure:"token_expiry"`
	} `mapstructure:"auth"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Sync SyncConfig `mapstructure:"sync"`
}

// SyncConfig is threaded into the fetcher, reconciler and scheduler
type SyncConfig struct {
	Interval                    time.Duration `mapstructure:"interval"`
	Debug                       bool          `mapstructure:"debug"`
	FetchConcurrency            int           `mapstructure:"fetch_concurrency"`
	RequestTimeout              time.Duration `mapstructure:"request_timeout"`
	ProtectedInterfacePrefixes  []string      `mapstructure:"protected_interface_prefixes"`
	ProtectedDescriptionMarkers []string      `mapstructure:"protected_description_markers"`
}

// Load reads the configuration from defaults, an optional config.yaml and
// PROXSYNC_* environment variables. An explicit path overrides the search.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/proxsync/")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "proxsync")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "proxsync.db")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_connections", 10)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("database.retry.max_attempts", 30)
	v.SetDefault("database.retry.initial_delay", "2s")
	v.SetDefault("database.retry.max_delay", "30s")
	v.SetDefault("database.retry.backoff_multiple", 1.5)
	v.SetDefault("api.port", 8080)
	// JWT secret MUST be explicitly configured - no insecure default
	if os.Getenv(envPrefix+"_AUTH_JWT_SECRET") == "" {
		log.Logger.Warn().Msg("JWT secret not configured. Set PROXSYNC_AUTH_JWT_SECRET environment variable.")
		v.SetDefault("auth.jwt_secret", "development-secret-change-in-production")
	}
	v.SetDefault("auth.token_expiry", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("sync.interval", "1h")
	v.SetDefault("sync.debug", false)
	v.SetDefault("sync.fetch_concurrency", 4)
	v.SetDefault("sync.request_timeout", "30s")
	v.SetDefault("sync.protected_interface_prefixes", []string{"wg", "tun", "lo", "enc"})
	v.SetDefault("sync.protected_description_markers", []string{"WireGuard", "OPNsense"})
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync.interval must not be negative")
	}
	if c.Sync.FetchConcurrency < 1 {
		return fmt.Errorf("sync.fetch_concurrency must be at least 1")
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}
