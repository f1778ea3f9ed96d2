package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Recognised environment keys.
const (
	EnvDBDir           = "DEBATE_DB_DIR"
	EnvDBName          = "DEBATE_DB_NAME"
	EnvServerPort      = "SERVER_PORT"
	EnvDefaultPageSize = "DEFAULT_PAGE_SIZE"
)

// LoadEnv reads a .env file and returns a map of key-value pairs.
func LoadEnv(path string) (map[string]string, error) {
	return godotenv.Read(path)
}

// ProcessEnv returns the recognised keys that are set in the process environment.
func ProcessEnv() map[string]string {
	env := make(map[string]string)
	for _, key := range []string{EnvDBDir, EnvDBName, EnvServerPort, EnvDefaultPageSize} {
		if val, ok := os.LookupEnv(key); ok {
			env[key] = val
		}
	}
	return env
}

// ApplyEnvOverrides updates the configuration based on environment variables.
// Values that do not parse are ignored.
func ApplyEnvOverrides(cfg *Config, env map[string]string) {
	// Storage
	if val, ok := env[EnvDBDir]; ok && val != "" {
		cfg.Storage.Dir = expandHome(val)
	}
	if val, ok := env[EnvDBName]; ok && val != "" {
		cfg.Storage.Name = val
	}

	// Server
	if val, ok := env[EnvServerPort]; ok {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}

	// Defaults
	if val, ok := env[EnvDefaultPageSize]; ok {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			cfg.Defaults.PageSize = size
		}
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
