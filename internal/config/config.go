package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "BYTEEDU"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultStorageDriver    = "sqlite"
	defaultStoragePath      = "byteedu.db"
	defaultKeyPrefix        = "byteedu_"
	defaultSessionTTLMinute = 720
	defaultPollInterval     = 2 * time.Second
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
)

var supportedDrivers = map[string]struct{}{
	"sqlite":  {},
	"leveldb": {},
	"badger":  {},
	"redis":   {},
}

// AppConfig captures runtime configuration for the API server and CLI commands.
type AppConfig struct {
	HTTPAddress          string
	StorageDriver        string
	StoragePath          string
	StorageRedisAddress  string
	StorageKeyPrefix     string
	SessionSigningSecret string
	SessionTTL           time.Duration
	PollInterval         time.Duration
	LogLevel             string
	LogFormat            string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("storage.driver", defaultStorageDriver)
	configViper.SetDefault("storage.path", defaultStoragePath)
	configViper.SetDefault("storage.redis_address", "")
	configViper.SetDefault("storage.key_prefix", defaultKeyPrefix)
	configViper.SetDefault("session.ttl_minutes", defaultSessionTTLMinute)
	configViper.SetDefault("poll.interval", defaultPollInterval)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
}

// Load parses runtime configuration from viper. Commands that never open an
// HTTP session (init, export) pass requireSession=false.
func Load(configViper *viper.Viper, requireSession bool) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		StorageDriver:        strings.ToLower(strings.TrimSpace(configViper.GetString("storage.driver"))),
		StoragePath:          configViper.GetString("storage.path"),
		StorageRedisAddress:  configViper.GetString("storage.redis_address"),
		StorageKeyPrefix:     configViper.GetString("storage.key_prefix"),
		SessionSigningSecret: configViper.GetString("session.signing_secret"),
		SessionTTL:           time.Duration(configViper.GetInt("session.ttl_minutes")) * time.Minute,
		PollInterval:         configViper.GetDuration("poll.interval"),
		LogLevel:             configViper.GetString("log.level"),
		LogFormat:            configViper.GetString("log.format"),
	}

	if err := cfg.validate(requireSession); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate(requireSession bool) error {
	if _, ok := supportedDrivers[c.StorageDriver]; !ok {
		return fmt.Errorf("storage.driver %q is not supported", c.StorageDriver)
	}
	switch c.StorageDriver {
	case "redis":
		if strings.TrimSpace(c.StorageRedisAddress) == "" {
			return fmt.Errorf("storage.redis_address is required for the redis driver")
		}
	case "sqlite":
		if strings.TrimSpace(c.StoragePath) == "" {
			return fmt.Errorf("storage.path is required")
		}
	}
	if requireSession && strings.TrimSpace(c.SessionSigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	return nil
}
