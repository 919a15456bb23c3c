// Package config loads agentorch configuration from YAML files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// ProjectFileName is the per-project override file, looked up from the
// working directory upwards.
const ProjectFileName = ".agentorch.yaml"

// Load reads and merges configuration from global and project paths.
// Precedence (highest to lowest): AGENTORCH_* environment variables, project
// config, global config, defaults. Missing files are not errors; malformed
// YAML is. Empty paths are skipped.
func Load(globalPath, projectPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if globalPath != "" {
		v.SetConfigFile(globalPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	if projectPath != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectPath)
		projectViper.SetConfigType("yaml")
		if err := projectViper.ReadInConfig(); err != nil {
			if !isNotFound(err) {
				return nil, fmt.Errorf("reading project config: %w", err)
			}
		} else if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from conventional paths:
// $XDG_CONFIG_HOME/agentorch/config.yaml and the nearest .agentorch.yaml.
func LoadDefault() (*Config, error) {
	return Load(GlobalPath(), FindProjectConfig())
}

// GlobalPath returns the user config file path.
func GlobalPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// FindProjectConfig searches the working directory and its parents for
// ProjectFileName. Returns "" when there is none.
func FindProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ProjectFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	for name, p := range cfg.Providers {
		p.APIKey = os.ExpandEnv(p.APIKey)
		cfg.Providers[name] = p
	}
	return cfg, nil
}

// isNotFound reports whether err means the config file does not exist.
// SetConfigFile surfaces a plain fs error rather than ConfigFileNotFoundError.
func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}
