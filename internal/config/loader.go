package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".stormtrack"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for stormtrack settings.
const envPrefix = "STORMTRACK"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// rawEnvBindings maps documented bare environment variables onto config keys.
// These predate the STORMTRACK_ prefix scheme and remain supported.
var rawEnvBindings = map[string]string{
	"upstream.discovery_base":        "UPSTREAM_BASE_DISCOVERY",
	"upstream.adeck_base":            "UPSTREAM_BASE_ADECK",
	"upstream.rate_limit_per_origin": "RATE_LIMIT_PER_ORIGIN",
	"database.url":                   "DATABASE_URL",
	"scheduler.workers":              "WORKER_COUNT",
	"lifecycle.dormant_hours":        "DORMANT_HOURS",
	"lifecycle.archive_hours":        "ARCHIVE_HOURS",
	"log.level":                      "LOG_LEVEL",
}

// Load loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	for key, envVar := range rawEnvBindings {
		bindErr := viperCfg.BindEnv(key, envVar)
		if bindErr != nil {
			return nil, fmt.Errorf("bind %s: %w", envVar, bindErr)
		}
	}

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("upstream.discovery_base", DefaultDiscoveryBase)
	viperCfg.SetDefault("upstream.adeck_base", DefaultADeckBase)
	viperCfg.SetDefault("upstream.fetch_timeout", DefaultFetchTimeout)
	viperCfg.SetDefault("upstream.rate_limit_per_origin", DefaultRateLimitPerOrigin)

	viperCfg.SetDefault("database.url", "")
	viperCfg.SetDefault("database.max_open_conns", DefaultMaxOpenConns)

	viperCfg.SetDefault("scheduler.workers", 0)
	viperCfg.SetDefault("scheduler.soft_deadline", DefaultSoftDeadline)
	viperCfg.SetDefault("scheduler.hard_deadline", DefaultHardDeadline)
	viperCfg.SetDefault("scheduler.shutdown_grace", DefaultShutdownGrace)

	viperCfg.SetDefault("lifecycle.dormant_hours", DefaultDormantHours)
	viperCfg.SetDefault("lifecycle.archive_hours", DefaultArchiveHours)

	viperCfg.SetDefault("zones.coast_file", "")
	viperCfg.SetDefault("zones.watch_coastline", false)

	viperCfg.SetDefault("log.level", DefaultLogLevel)
	viperCfg.SetDefault("log.json", false)

	viperCfg.SetDefault("metrics.addr", DefaultMetricsAddr)
}
