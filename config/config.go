// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"github.com/stratastor/logger"
	"github.com/stratastor/tether/internal/common"
	"github.com/stratastor/tether/internal/constants"
	"github.com/stratastor/tether/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	instance   *Config
	once       sync.Once
	configPath string // Tracks where the config was loaded from
)

type Config struct {
	Backend struct {
		BaseURL       string `mapstructure:"baseURL" yaml:"baseURL"`
		Token         string `mapstructure:"token" yaml:"token"`
		UserAgent     string `mapstructure:"userAgent" yaml:"userAgent"`
		AllowInsecure bool   `mapstructure:"allowInsecure" yaml:"allowInsecure"`
	} `mapstructure:"backend" yaml:"backend"`

	Requester struct {
		MaxRetries    int      `mapstructure:"maxRetries" yaml:"maxRetries"`
		RetryDelays   []string `mapstructure:"retryDelays" yaml:"retryDelays"`
		FallbackDelay string   `mapstructure:"fallbackDelay" yaml:"fallbackDelay"`
		Timeout       string   `mapstructure:"timeout" yaml:"timeout"`
	} `mapstructure:"requester" yaml:"requester"`

	Backoff struct {
		Base string `mapstructure:"base" yaml:"base"`
		Max  string `mapstructure:"max" yaml:"max"`
	} `mapstructure:"backoff" yaml:"backoff"`

	Heartbeat struct {
		Enabled           bool   `mapstructure:"enabled" yaml:"enabled"`
		NormalInterval    string `mapstructure:"normalInterval" yaml:"normalInterval"`
		ActiveInterval    string `mapstructure:"activeInterval" yaml:"activeInterval"`
		ActiveWindow      string `mapstructure:"activeWindow" yaml:"activeWindow"`
		EmergencyInterval string `mapstructure:"emergencyInterval" yaml:"emergencyInterval"`
		EmergencyCooldown string `mapstructure:"emergencyCooldown" yaml:"emergencyCooldown"`
		FailureThreshold  int    `mapstructure:"failureThreshold" yaml:"failureThreshold"`
		PingPath          string `mapstructure:"pingPath" yaml:"pingPath"`
		HealthPath        string `mapstructure:"healthPath" yaml:"healthPath"`
	} `mapstructure:"heartbeat" yaml:"heartbeat"`

	KeepAlive struct {
		Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
		StatsPath      string `mapstructure:"statsPath" yaml:"statsPath"`
		ReportInterval string `mapstructure:"reportInterval" yaml:"reportInterval"`
	} `mapstructure:"keepAlive" yaml:"keepAlive"`

	Feeds map[string]FeedConfig `mapstructure:"feeds" yaml:"feeds"`

	Server struct {
		Enabled bool `mapstructure:"enabled" yaml:"enabled"`
		Port    int  `mapstructure:"port" yaml:"port"`
	} `mapstructure:"server" yaml:"server"`

	Logs struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"logs" yaml:"logs"`

	Logger struct {
		LogLevel     string `mapstructure:"logLevel" yaml:"logLevel"`
		EnableSentry bool   `mapstructure:"enableSentry" yaml:"enableSentry"`
		SentryDSN    string `mapstructure:"sentryDSN" yaml:"sentryDSN"`
	} `mapstructure:"logger" yaml:"logger"`

	Environment string `mapstructure:"environment" yaml:"environment"`
}

// FeedConfig configures one polled dashboard feed
type FeedConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Path     string `mapstructure:"path" yaml:"path"`
	Interval string `mapstructure:"interval" yaml:"interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("backend.baseURL", "http://localhost:8080")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.userAgent", "")
	v.SetDefault("backend.allowInsecure", false)

	v.SetDefault("requester.maxRetries", 3)
	v.SetDefault("requester.retryDelays", []string{"1s", "3s", "5s"})
	v.SetDefault("requester.fallbackDelay", "5s")
	v.SetDefault("requester.timeout", "30s")

	v.SetDefault("backoff.base", "1s")
	v.SetDefault("backoff.max", "60s")

	v.SetDefault("heartbeat.enabled", true)
	v.SetDefault("heartbeat.normalInterval", "5m")
	v.SetDefault("heartbeat.activeInterval", "3m")
	v.SetDefault("heartbeat.activeWindow", "15m")
	v.SetDefault("heartbeat.emergencyInterval", "2m")
	v.SetDefault("heartbeat.emergencyCooldown", "20m")
	v.SetDefault("heartbeat.failureThreshold", 3)
	v.SetDefault("heartbeat.pingPath", constants.EndpointPing)
	v.SetDefault("heartbeat.healthPath", constants.EndpointHealth)

	v.SetDefault("keepAlive.enabled", true)
	v.SetDefault("keepAlive.statsPath", constants.EndpointKeepAliveStats)
	v.SetDefault("keepAlive.reportInterval", "10m")

	v.SetDefault("feeds.balance.enabled", true)
	v.SetDefault("feeds.balance.path", "/api/balance")
	v.SetDefault("feeds.balance.interval", "30s")
	v.SetDefault("feeds.notifications.enabled", true)
	v.SetDefault("feeds.notifications.path", "/api/notifications")
	v.SetDefault("feeds.notifications.interval", "60s")
	v.SetDefault("feeds.positions.enabled", true)
	v.SetDefault("feeds.positions.path", "/api/trading/positions")
	v.SetDefault("feeds.positions.interval", "15s")
	v.SetDefault("feeds.prices.enabled", true)
	v.SetDefault("feeds.prices.path", "/api/market/prices")
	v.SetDefault("feeds.prices.interval", "10s")

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8043)

	v.SetDefault("logs.path", "/var/log/tether/tether.log")
	v.SetDefault("logger.logLevel", "info")
	v.SetDefault("logger.enableSentry", false)
	v.SetDefault("logger.sentryDSN", "")
}

// ResolvePath picks the config file: explicit path, then the TETHER_CONFIG
// environment variable, then the default location
func ResolvePath(explicit string) string {
	path := explicit
	if path == "" {
		path = os.Getenv(constants.ConfigEnvVar)
	}
	if path == "" {
		path = DefaultConfigPath()
	}
	if expanded, err := common.ExpandPath(path); err == nil {
		path = expanded
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

// Load reads the config at path into a fresh viper instance. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, errors.Wrap(err, errors.ConfigLoadFailed).
					WithMetadata("path", path)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ConfigUnmarshalFailed).
			WithMetadata("path", path)
	}
	return &cfg, nil
}

// LoadConfig loads the process-wide configuration once. Errors fall back to
// defaults so the CLI stays usable.
func LoadConfig(configFilePath string) *Config {
	once.Do(func() {
		l, err := logger.NewTag(logger.Config{LogLevel: "info"}, "config")
		if err != nil {
			fmt.Printf("Failed to create logger: %v\n", err)
			os.Exit(1)
		}

		configPath = ResolvePath(configFilePath)
		l.Debug("Using config file", "path", configPath)

		cfg, err := Load(configPath)
		if err != nil {
			l.Error("Error reading config file, using defaults", "err", err)
			cfg, _ = Load("")
		}
		instance = cfg

		if err := instance.Validate(); err != nil {
			l.Warn("Configuration has invalid values", "err", err)
		}
	})

	return instance
}

// SaveConfig persists the current configuration to path, or to the default
// location when path is empty
func SaveConfig(path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, errors.ConfigWriteFailed).
			WithMetadata("path", path)
	}

	data, err := yaml.Marshal(GetConfig())
	if err != nil {
		return errors.Wrap(err, errors.ConfigMarshalFailed)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, errors.ConfigWriteFailed).
			WithMetadata("path", path)
	}

	configPath = path
	return nil
}

// GetLoadedConfigPath returns the path of the currently loaded configuration file.
func GetLoadedConfigPath() string {
	return configPath
}

// GetConfig returns the current configuration instance.
func GetConfig() *Config {
	if instance == nil {
		return LoadConfig("")
	}
	return instance
}

func NewLoggerConfig(cfg *Config) logger.Config {
	if cfg == nil {
		return logger.Config{
			LogLevel:     "info",
			EnableSentry: false,
			SentryDSN:    "",
		}
	}

	return logger.Config{
		LogLevel:     cfg.Logger.LogLevel,
		EnableSentry: cfg.Logger.EnableSentry,
		SentryDSN:    cfg.Logger.SentryDSN,
	}
}
