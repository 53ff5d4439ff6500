package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"

	"dedup-go/internal/dedup"
)

// Config represents the main configuration for dedup.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Scan       ScanConfig       `toml:"scan"`
	Database   DatabaseConfig   `toml:"database"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// ScanConfig tunes the duplicate search. CLI flags override these.
type ScanConfig struct {
	Algorithm  string `toml:"algorithm"`   // sha1 (default), sha256, sha512, xxhash
	Workers    int    `toml:"workers"`     // 0 means runtime.NumCPU()
	BufferSize int    `toml:"buffer_size"` // bytes per read
}

// DatabaseConfig selects where run history is kept.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "none"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// FilesystemConfig holds traversal settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// NewConfig returns the default configuration rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Scan: ScanConfig{
			Algorithm:  dedup.DefaultAlgorithm,
			BufferSize: dedup.DefaultBufferSize,
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if _, err := dedup.ParseAlgorithm(c.Scan.Algorithm); err != nil {
		return fmt.Errorf("scan.algorithm: %w", err)
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers must not be negative, got %d", c.Scan.Workers)
	}
	if c.Scan.BufferSize < 0 {
		return fmt.Errorf("scan.buffer_size must not be negative, got %d", c.Scan.BufferSize)
	}
	switch c.Database.Type {
	case "sqlite", "memory", "none":
	default:
		return fmt.Errorf("database.type: unknown type %q", c.Database.Type)
	}
	for _, pattern := range c.Filesystem.Ignore {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("filesystem.ignore: bad pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct {
	// Defaults, when set, supplies every setting the input leaves out.
	Defaults *Config
}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if m.Defaults != nil {
		cfg = *m.Defaults
		cfg.Filesystem.Ignore = slices.Clone(m.Defaults.Filesystem.Ignore)
	}
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path. Settings
// missing from the file keep their values from defaults, which may be nil.
func ReadFromFile(path string, defaults *Config) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{Defaults: defaults}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config at path, falling back to NewConfig(baseDir) when the
// file does not exist. Settings missing from the file keep their defaults.
func Load(path, baseDir string) (*Config, error) {
	cfg, err := ReadFromFile(path, NewConfig(baseDir))
	if errors.Is(err, fs.ErrNotExist) {
		return NewConfig(baseDir), nil
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path. An existing file is never
// overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
