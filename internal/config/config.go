// Package config loads CLI configuration from a YAML file with environment
// variable overrides, so credentials can stay out of checked-in files.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/brandonyach/teamworksams/pkg/client"
)

// Environment variables overriding the config file.
const (
	EnvURL      = "AMS_URL"
	EnvUsername = "AMS_USERNAME"
	EnvPassword = "AMS_PASSWORD"
)

// Config is the YAML configuration for the CLI.
type Config struct {
	// URL is the AMS instance base URL.
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// AppName identifies the integration in login properties.
	AppName string `yaml:"app_name"`
	// DisableCache turns off response memoization.
	DisableCache bool `yaml:"disable_cache"`
	// MaxRetries bounds retries on transient failures.
	MaxRetries uint64 `yaml:"max_retries"`
}

// Load reads path, when non-empty, and applies environment overrides. An
// empty path with a full set of environment variables is a valid setup.
func Load(fs afero.Fs, path string) (*Config, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	cfg := &Config{}
	if path != "" {
		raw, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if v := os.Getenv(EnvURL); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.Password = v
	}
	return cfg, nil
}

// Validate checks the fields a client cannot be built without.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("no AMS URL configured (set url in the config file or %s)", EnvURL)
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("no credentials configured (set username/password or %s/%s)",
			EnvUsername, EnvPassword)
	}
	return nil
}

// ClientConfig converts to the client package's Config.
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		URL:          c.URL,
		Username:     c.Username,
		Password:     c.Password,
		AppName:      c.AppName,
		DisableCache: c.DisableCache,
		MaxRetries:   c.MaxRetries,
	}
}
