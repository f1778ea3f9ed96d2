// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/alienxp03/dbate/internal/storage"
)

// Config represents the application configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server,omitempty"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// StorageConfig locates the SQLite database file.
type StorageConfig struct {
	Dir  string `yaml:"dir"`
	Name string `yaml:"name"`
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DefaultsConfig holds default settings.
type DefaultsConfig struct {
	PageSize    int `yaml:"page_size"`
	MaxPageSize int `yaml:"max_page_size"`
	ThreadLimit int `yaml:"thread_limit"`
}

// DefaultDBName is the database file name used when none is configured.
var DefaultDBName = filepath.Base(storage.DefaultDBPath())

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Dir:  filepath.Dir(storage.DefaultDBPath()),
			Name: DefaultDBName,
		},
		Server: ServerConfig{
			Port: 8182,
		},
		Defaults: DefaultsConfig{
			PageSize:    20,
			MaxPageSize: 100,
			ThreadLimit: 200,
		},
	}
}

// DBPath returns the full path of the database file.
func (c *Config) DBPath() string {
	dir := c.Storage.Dir
	if dir == "" {
		dir = filepath.Dir(storage.DefaultDBPath())
	}
	name := c.Storage.Name
	if name == "" {
		name = DefaultDBName
	}
	return filepath.Join(expandHome(dir), name)
}

// Validate checks that numeric settings are usable.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Defaults.MaxPageSize < 1 {
		return fmt.Errorf("max_page_size must be at least 1, got %d", c.Defaults.MaxPageSize)
	}
	if c.Defaults.PageSize < 1 || c.Defaults.PageSize > c.Defaults.MaxPageSize {
		return fmt.Errorf("page_size must be between 1 and %d, got %d", c.Defaults.MaxPageSize, c.Defaults.PageSize)
	}
	if c.Defaults.ThreadLimit < 0 {
		return fmt.Errorf("thread_limit must not be negative, got %d", c.Defaults.ThreadLimit)
	}
	return nil
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from a specific path, then applies overrides
// from a .env file in the working directory and from the process environment.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file, proceed with defaults
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if env, err := LoadEnv(".env"); err == nil {
		ApplyEnvOverrides(cfg, env)
	}
	ApplyEnvOverrides(cfg, ProcessEnv())

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo saves the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), "config.yaml")
}

// homeDir is ~/.dbate, or .dbate in the working directory when there is no home.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dbate"
	}
	return filepath.Join(home, ".dbate")
}

// GenerateExample generates an example configuration file.
func GenerateExample() string {
	return `# dbate configuration file
# Place this file at ~/.dbate/config.yaml

storage:
  dir: ~/.dbate/db          # Directory holding the database (DEBATE_DB_DIR)
  name: debate.db           # Database file name (DEBATE_DB_NAME)

server:
  port: 8182                # HTTP port (SERVER_PORT)

defaults:
  page_size: 20             # Debates per page when no limit is given (DEFAULT_PAGE_SIZE)
  max_page_size: 100        # Upper bound for any requested page size
  thread_limit: 200         # Arguments shown per debate when no limit is given
`
}
