package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/driftline/relay/errors"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 7411)

	v.SetDefault("buffer.max_events", 10000)

	v.SetDefault("sync.max_batch_size", 100)
	v.SetDefault("sync.cleanup_interval", "5m")
	v.SetDefault("sync.retention", "24h")
	v.SetDefault("sync.push_rate_per_sec", 0) // disabled unless configured

	v.SetDefault("registry.ttl", "24h")

	v.SetDefault("log.json", false)
}

// Load reads configuration from the given TOML file path. An empty path
// searches the working directory and /etc/relayd for relay.toml; a missing
// file is not an error — defaults plus environment apply.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	} else {
		v.SetConfigName("relay")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/relayd")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, errors.Wrap(err, "failed to read config")
			}
		}
	}

	return unmarshal(v)
}

// Default returns the built-in configuration, environment applied. Useful
// for tests and embedders.
func Default() *Config {
	v := newViper()
	cfg, err := unmarshal(v)
	if err != nil {
		// Defaults always unmarshal; reaching this is a programming error.
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}
