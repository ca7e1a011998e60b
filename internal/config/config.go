package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "pulse.json"

	// DefaultAddr is the default inspector listen address.
	DefaultAddr = ":6060"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "pulse"

	// DefaultSnapshotTimeout bounds how long snapshot endpoints wait for
	// pending guards to settle.
	DefaultSnapshotTimeout = "5s"
)

// Config represents the complete pulse.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Inspect contains inspector server configuration.
	Inspect InspectConfig `json:"inspect,omitempty"`

	// Snapshot contains snapshot store configuration.
	Snapshot SnapshotConfig `json:"snapshot,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// InspectConfig contains inspector server settings.
type InspectConfig struct {
	// Addr is the listen address for the inspector.
	Addr string `json:"addr,omitempty"`

	// TracerName is the OpenTelemetry tracer name for inspector spans.
	TracerName string `json:"tracerName,omitempty"`

	// SnapshotTimeout is how long GET /api/snapshot waits for pending
	// guards, as a duration string (e.g., "5s").
	SnapshotTimeout string `json:"snapshotTimeout,omitempty"`
}

// SnapshotConfig contains snapshot store settings.
type SnapshotConfig struct {
	// Backend selects the store: "memory" (default) or "s3".
	Backend string `json:"backend,omitempty"`

	// Bucket is the S3 bucket name (s3 backend only).
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the S3 key prefix (s3 backend only).
	Prefix string `json:"prefix,omitempty"`
}

// New creates a configuration with all defaults applied.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from pulse.json in the specified directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config: no %s found in %s", ConfigFileName, filepath.Dir(path))
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("config: no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Inspect.Addr == "" {
		c.Inspect.Addr = DefaultAddr
	}
	if c.Inspect.TracerName == "" {
		c.Inspect.TracerName = DefaultTracerName
	}
	if c.Inspect.SnapshotTimeout == "" {
		c.Inspect.SnapshotTimeout = DefaultSnapshotTimeout
	}
	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = "memory"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Inspect.SnapshotTimeout); err != nil {
		return fmt.Errorf("config: invalid inspect.snapshotTimeout %q: %w", c.Inspect.SnapshotTimeout, err)
	}
	switch c.Snapshot.Backend {
	case "memory", "s3":
	default:
		return fmt.Errorf("config: unknown snapshot.backend %q (want memory or s3)", c.Snapshot.Backend)
	}
	if c.Snapshot.Backend == "s3" && c.Snapshot.Bucket == "" {
		return fmt.Errorf("config: snapshot.backend s3 requires snapshot.bucket")
	}
	return nil
}

// SnapshotTimeout returns the parsed settle-wait duration.
func (c *Config) SnapshotTimeout() time.Duration {
	d, err := time.ParseDuration(c.Inspect.SnapshotTimeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultSnapshotTimeout)
	}
	return d
}

// Exists checks if pulse.json exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing pulse.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("config: no %s found in %s or any parent directory", ConfigFileName, startDir)
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the nearest project root
// above the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}
	return Load(root)
}
