package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eleven-am/dbhelper/internal/logger"
	"github.com/eleven-am/dbhelper/pkg/dbhelper"
)

// Config represents the dbhelper.yaml configuration structure
type Config struct {
	Version string `yaml:"version"`
	Project string `yaml:"project"`

	Database struct {
		Driver          string        `yaml:"driver"`
		URL             string        `yaml:"url"`
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		QueryTimeout    time.Duration `yaml:"query_timeout"`
	} `yaml:"database"`

	Scripts struct {
		Directories []string `yaml:"directories"`
		Builtin     *bool    `yaml:"builtin,omitempty"`
	} `yaml:"scripts"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

var configLocations = []string{"dbhelper.yaml", "dbhelper.yml", ".dbhelper.yaml", ".dbhelper.yml"}

// DefaultConfig returns a configuration with every default applied
func DefaultConfig() *Config {
	config := &Config{Version: "1"}
	config.applyDefaults()
	return config
}

// LoadConfig reads the configuration at path, or the first file found by
// GetConfigPath when path is empty. Without a file the defaults are used.
// DATABASE_URL, when set, replaces the configured URL.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = GetConfigPath()
	}

	config := &Config{Version: "1"}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logger.Config().WithField("path", path).Debug("loaded configuration")
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.Database.URL = url
	}

	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	defaults := dbhelper.NewConfig("")

	if c.Database.Driver == "" {
		c.Database.Driver = defaults.Driver
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.MaxIdleConns
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
	if c.Logging.Level == "" {
		c.Logging.Level = string(logger.LevelWarn)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// UseBuiltin reports whether the built-in script bundle is loaded
func (c *Config) UseBuiltin() bool {
	return c.Scripts.Builtin == nil || *c.Scripts.Builtin
}

// DatabaseConfig converts the database section for dbhelper.Open
func (c *Config) DatabaseConfig() *dbhelper.Config {
	return &dbhelper.Config{
		Driver:          c.Database.Driver,
		URL:             c.Database.URL,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		QueryTimeout:    c.Database.QueryTimeout,
	}
}

// GetConfigPath returns DBHELPER_CONFIG, or the first config file found in
// the working directory.
func GetConfigPath() string {
	if path := os.Getenv("DBHELPER_CONFIG"); path != "" {
		return path
	}

	for _, loc := range configLocations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

func SaveConfig(config *Config, path string) error {
	if path == "" {
		path = configLocations[0]
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
