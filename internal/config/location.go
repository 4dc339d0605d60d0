package config

import (
	"os"
	"path/filepath"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "BTDSL_CONFIG"

// GetConfigPath returns the configuration file path: BTDSL_CONFIG if set,
// otherwise ~/.btdsl/config.
func GetConfigPath() (string, error) {
	if configPath := os.Getenv(EnvConfigPath); configPath != "" {
		return configPath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".btdsl", "config"), nil
}
