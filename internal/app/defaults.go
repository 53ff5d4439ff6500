package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - DEDUP_CONFIG_PATH: config file location (default: ~/.config/dedup.toml)
//   - DEDUP_HOME: base directory for logs and run history (default: ~/.local/share/dedup)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"data_dir":    filepath.Join(baseDir, "db"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("DEDUP_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "dedup.toml"), nil
}

// getBaseDir follows the XDG data layout unless DEDUP_HOME is set.
func getBaseDir() (string, error) {
	if path := os.Getenv("DEDUP_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "dedup"), nil
}
