// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads the application configuration from a TOML file with
// DRIVEMIND_ environment variable overrides, creating a default config on
// first run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/VT-TyR/drivemind/internal/domain"
)

const envPrefix = "DRIVEMIND"

// AppConfig wraps the loaded configuration.
type AppConfig struct {
	Config *domain.Config

	viper      *viper.Viper
	configPath string
}

// New loads configuration from configPath (a file or a directory containing
// config.toml). An empty configPath uses the default config directory.
func New(configPath, version string) (*AppConfig, error) {
	c := &AppConfig{
		viper: viper.New(),
		Config: &domain.Config{
			Version: version,
		},
	}

	c.setDefaults()

	if err := c.load(configPath); err != nil {
		return nil, err
	}

	if err := c.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

func (c *AppConfig) setDefaults() {
	c.viper.SetDefault("host", "localhost")
	c.viper.SetDefault("port", 7490)
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("dataDir", "")
	c.viper.SetDefault("databasePath", "")
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("googleClientId", "")
	c.viper.SetDefault("googleClientSecret", "")
	c.viper.SetDefault("scanMaxRetries", 3)
	c.viper.SetDefault("scanPageSize", 1000)
	c.viper.SetDefault("scanJobTimeoutMinutes", 15)
	c.viper.SetDefault("scanRetentionDays", 30)
	c.viper.SetDefault("driveRequestsPerSec", 10.0)
}

func (c *AppConfig) load(configPath string) error {
	c.viper.SetConfigType("toml")

	if configPath == "" {
		configPath = defaultConfigDir()
	}

	info, err := os.Stat(configPath)
	switch {
	case err == nil && info.IsDir():
		c.configPath = filepath.Join(configPath, "config.toml")
	case err == nil:
		c.configPath = configPath
	case os.IsNotExist(err):
		if filepath.Ext(configPath) == ".toml" {
			c.configPath = configPath
		} else {
			c.configPath = filepath.Join(configPath, "config.toml")
		}
	default:
		return fmt.Errorf("stat config path %s: %w", configPath, err)
	}

	if _, err := os.Stat(c.configPath); os.IsNotExist(err) {
		if err := c.writeDefaultConfig(); err != nil {
			return err
		}
	}

	c.viper.SetConfigFile(c.configPath)

	c.viper.SetEnvPrefix(envPrefix)
	c.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	c.viper.AutomaticEnv()

	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", c.configPath, err)
	}

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	c.applyPathDefaults()
	return nil
}

// applyPathDefaults resolves the data directory and database path relative
// to the config file when they are not explicitly set.
func (c *AppConfig) applyPathDefaults() {
	configDir := filepath.Dir(c.configPath)

	if c.Config.DataDir == "" {
		c.Config.DataDir = configDir
	}
	if c.Config.DatabasePath == "" {
		c.Config.DatabasePath = filepath.Join(c.Config.DataDir, "drivemind.db")
	}
}

func (c *AppConfig) writeDefaultConfig() error {
	dir := filepath.Dir(c.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory %s: %w", dir, err)
	}

	content := `# DriveMind configuration
# Values can be overridden with DRIVEMIND_ environment variables,
# for example DRIVEMIND_PORT=8080.

host = "localhost"
port = 7490

logLevel = "INFO"

# Google OAuth client used to refresh stored Drive credentials.
#googleClientId = ""
#googleClientSecret = ""

#metricsEnabled = false
`

	if err := os.WriteFile(c.configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write default config %s: %w", c.configPath, err)
	}

	log.Info().Str("path", c.configPath).Msg("Created default config file")
	return nil
}

// ConfigPath returns the resolved config file location.
func (c *AppConfig) ConfigPath() string {
	return c.configPath
}

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "drivemind")
	}
	return "."
}
