package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables.
// configPath is the directory containing config files.
// configName is the name of the config file (without extension).
// A missing config file is not an error; env vars and defaults still apply.
func Load(configPath, configName string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return v, nil
}

// SetDefaults applies every key/value pair as a viper default.
func SetDefaults(v *viper.Viper, defaults map[string]any) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// BindEnvs binds each config key to its environment variable name.
// Keys are bound in sorted order so the first failure is deterministic.
func BindEnvs(v *viper.Viper, envs map[string]string) error {
	keys := make([]string, 0, len(envs))
	for key := range envs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := v.BindEnv(key, envs[key]); err != nil {
			return fmt.Errorf("bind env %s: %w", envs[key], err)
		}
	}
	return nil
}
