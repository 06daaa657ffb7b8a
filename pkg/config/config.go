package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/imgbackfill/pkg/archive"
	"github.com/cuemby/imgbackfill/pkg/moray"
	"github.com/cuemby/imgbackfill/pkg/source"
	"github.com/cuemby/imgbackfill/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is where IMGAPI keeps its config on a deployed zone
	DefaultConfigPath = "/data/imgapi/etc/imgapi.config.json"

	// ModeDC is the deployment mode that restricts archive ownership
	ModeDC = "dc"
)

// Config holds the settings the backfill reads from the IMGAPI config
// file. The file is JSON in practice and is decoded as such; any YAML
// document with the same keys works too.
type Config struct {
	DatabaseType string         `json:"databaseType" yaml:"databaseType"`
	Mode         string         `json:"mode" yaml:"mode"`
	Moray        MorayConfig    `json:"moray" yaml:"moray"`
	Database     DatabaseConfig `json:"database" yaml:"database"`
	Storage      StorageConfig  `json:"storage" yaml:"storage"`

	// RestrictOwnership overrides the mode-derived ownership setting
	// when non-nil. It is set from the command line only.
	RestrictOwnership *bool `json:"-" yaml:"-"`
}

// MorayConfig holds networked record store connection parameters.
type MorayConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	// ConnectTimeout is in milliseconds.
	ConnectTimeout int         `json:"connectTimeout" yaml:"connectTimeout"`
	Retry          RetryConfig `json:"retry" yaml:"retry"`
	Bucket         string      `json:"bucket" yaml:"bucket"`
}

// RetryConfig is either `false` (no retries) or an object with
// minTimeout and maxTimeout in milliseconds.
type RetryConfig struct {
	Disabled   bool
	MinTimeout int
	MaxTimeout int
}

// UnmarshalYAML accepts a boolean or a mapping.
func (r *RetryConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var enabled bool
		if err := node.Decode(&enabled); err != nil {
			return fmt.Errorf("retry: expected boolean or object: %w", err)
		}
		*r = RetryConfig{Disabled: !enabled}
		return nil
	}

	var raw struct {
		MinTimeout int `yaml:"minTimeout"`
		MaxTimeout int `yaml:"maxTimeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	*r = RetryConfig{MinTimeout: raw.MinTimeout, MaxTimeout: raw.MaxTimeout}
	return nil
}

// UnmarshalJSON accepts a boolean or an object.
func (r *RetryConfig) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	var enabled bool
	if err := json.Unmarshal(data, &enabled); err == nil {
		*r = RetryConfig{Disabled: !enabled}
		return nil
	}

	var raw struct {
		MinTimeout int `json:"minTimeout"`
		MaxTimeout int `json:"maxTimeout"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("retry: expected boolean or object: %w", err)
	}
	*r = RetryConfig{MinTimeout: raw.MinTimeout, MaxTimeout: raw.MaxTimeout}
	return nil
}

// DatabaseConfig holds local database backend settings.
type DatabaseConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// StorageConfig holds archive settings.
type StorageConfig struct {
	Local LocalStorageConfig `json:"local" yaml:"local"`
}

// LocalStorageConfig holds the local archive directory.
type LocalStorageConfig struct {
	ArchiveDir string `json:"archiveDir" yaml:"archiveDir"`
}

// Default returns a config with every default filled in.
func Default() *Config {
	return &Config{
		DatabaseType: string(types.DatabaseLocal),
		Moray: MorayConfig{
			ConnectTimeout: int(moray.DefaultConnectTimeout / time.Millisecond),
			Bucket:         source.DefaultBucket,
		},
		Database: DatabaseConfig{Dir: source.DefaultLocalDir},
		Storage: StorageConfig{
			Local: LocalStorageConfig{ArchiveDir: archive.DefaultArchiveDir},
		},
	}
}

// Load reads the config file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes config data on top of the defaults. A document starting
// with '{' is JSON; anything else is read as YAML.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	var err error
	if isJSON(data) {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, &types.StageError{Kind: types.ErrConfig, Stage: "parse", Err: err}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func isJSON(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// applyDefaults restores defaults for keys present but empty in the file.
func (c *Config) applyDefaults() {
	d := Default()
	if c.DatabaseType == "" {
		c.DatabaseType = d.DatabaseType
	}
	if c.Moray.ConnectTimeout <= 0 {
		c.Moray.ConnectTimeout = d.Moray.ConnectTimeout
	}
	if c.Moray.Bucket == "" {
		c.Moray.Bucket = d.Moray.Bucket
	}
	if c.Database.Dir == "" {
		c.Database.Dir = d.Database.Dir
	}
	if c.Storage.Local.ArchiveDir == "" {
		c.Storage.Local.ArchiveDir = d.Storage.Local.ArchiveDir
	}
}

// ResolvePath picks the config file to use: explicit wins, then the
// deployed location, then etc/imgapi.config.json under baseDir.
func ResolvePath(explicit, baseDir string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath
	}
	return filepath.Join(baseDir, "etc", "imgapi.config.json")
}

// Backend returns the normalized database type.
func (c *Config) Backend() (types.DatabaseType, error) {
	switch strings.ToLower(strings.TrimSpace(c.DatabaseType)) {
	case "moray", "moray-like":
		return types.DatabaseMoray, nil
	case "local":
		return types.DatabaseLocal, nil
	default:
		return "", &types.StageError{
			Kind:  types.ErrConfig,
			Stage: "validate",
			Field: "databaseType",
			Err:   fmt.Errorf("unsupported database type %q (want moray or local)", c.DatabaseType),
		}
	}
}

// OwnershipRestricted reports whether archive entries are handed to the
// unprivileged account.
func (c *Config) OwnershipRestricted() bool {
	if c.RestrictOwnership != nil {
		return *c.RestrictOwnership
	}
	return c.Mode == ModeDC
}

// MorayClientConfig converts the moray settings for the record store client.
func (c *Config) MorayClientConfig() moray.ClientConfig {
	cc := moray.ClientConfig{
		Address:        moray.Address(c.Moray.Host, c.Moray.Port),
		ConnectTimeout: time.Duration(c.Moray.ConnectTimeout) * time.Millisecond,
	}
	if !c.Moray.Retry.Disabled {
		cc.Retry = &moray.RetryPolicy{
			MinTimeout: orDefault(c.Moray.Retry.MinTimeout, moray.DefaultMinRetry),
			MaxTimeout: orDefault(c.Moray.Retry.MaxTimeout, moray.DefaultMaxRetry),
		}
	}
	return cc
}

func orDefault(ms int, d time.Duration) time.Duration {
	if ms <= 0 {
		return d
	}
	return time.Duration(ms) * time.Millisecond
}

// Validate checks the settings needed by the selected backend.
func (c *Config) Validate() error {
	backend, err := c.Backend()
	if err != nil {
		return err
	}

	invalid := func(field, format string, args ...interface{}) error {
		return &types.StageError{Kind: types.ErrConfig, Stage: "validate", Field: field, Err: fmt.Errorf(format, args...)}
	}

	switch backend {
	case types.DatabaseMoray:
		if c.Moray.Host == "" {
			return invalid("moray.host", "required for the moray backend")
		}
		if c.Moray.Port <= 0 || c.Moray.Port > 65535 {
			return invalid("moray.port", "invalid port %d", c.Moray.Port)
		}
		r := c.Moray.Retry
		if !r.Disabled && r.MinTimeout > 0 && r.MaxTimeout > 0 && r.MinTimeout > r.MaxTimeout {
			return invalid("moray.retry", "minTimeout %d exceeds maxTimeout %d", r.MinTimeout, r.MaxTimeout)
		}
	case types.DatabaseLocal:
		if c.Database.Dir == "" {
			return invalid("database.dir", "required for the local backend")
		}
	}

	if c.Storage.Local.ArchiveDir == "" {
		return invalid("storage.local.archiveDir", "required")
	}
	return nil
}
