package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ClaudioK5/Synchronization-Folder/internal/actionlog"
	"github.com/ClaudioK5/Synchronization-Folder/internal/tree"
)

// CompareMode defines how the update pass decides whether a file changed
type CompareMode string

const (
	// CompareSize treats files of different size as changed without hashing
	CompareSize CompareMode = "size"
	// CompareHash always fingerprints both files
	CompareHash CompareMode = "hash"
)

// MaxInterval is the largest interval in seconds that fits a time.Duration
const MaxInterval = math.MaxInt64 / int64(time.Second)

// Config represents the complete foldersync configuration
type Config struct {
	Paths PathsConfig `yaml:"paths"`
	Sync  SyncConfig  `yaml:"sync"`
}

// PathsConfig configures the synchronized trees and the log location
type PathsConfig struct {
	Source  string `yaml:"source"`
	Replica string `yaml:"replica"`
	LogDir  string `yaml:"log_dir"`
}

// SyncConfig configures sync behavior
type SyncConfig struct {
	Interval int         `yaml:"interval"` // seconds between cycles
	Compare  CompareMode `yaml:"compare"`
	Exclude  []string    `yaml:"exclude"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// FromArgs builds a configuration from the four positional command line
// arguments. Relative paths are resolved against the working directory.
func FromArgs(source, replica, logDir string, interval int) (*Config, error) {
	cfg := Config{
		Paths: PathsConfig{
			Source:  source,
			Replica: replica,
			LogDir:  logDir,
		},
		Sync: SyncConfig{
			Interval: interval,
		},
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Paths.Source = os.ExpandEnv(c.Paths.Source)
	c.Paths.Replica = os.ExpandEnv(c.Paths.Replica)
	c.Paths.LogDir = os.ExpandEnv(c.Paths.LogDir)
}

// resolvePaths makes every configured path absolute
func (c *Config) resolvePaths() error {
	for _, p := range []*string{&c.Paths.Source, &c.Paths.Replica, &c.Paths.LogDir} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("failed to resolve path %s: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Sync.Compare == "" {
		c.Sync.Compare = CompareSize
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Paths.Source == "" {
		return fmt.Errorf("paths.source is required")
	}
	if c.Paths.Replica == "" {
		return fmt.Errorf("paths.replica is required")
	}
	if c.Paths.LogDir == "" {
		return fmt.Errorf("paths.log_dir is required")
	}

	// Ensure paths are absolute
	if !filepath.IsAbs(c.Paths.Source) {
		return fmt.Errorf("paths.source must be an absolute path: %s", c.Paths.Source)
	}
	if !filepath.IsAbs(c.Paths.Replica) {
		return fmt.Errorf("paths.replica must be an absolute path: %s", c.Paths.Replica)
	}
	if !filepath.IsAbs(c.Paths.LogDir) {
		return fmt.Errorf("paths.log_dir must be an absolute path: %s", c.Paths.LogDir)
	}

	// A replica inside the source (or the reverse) would copy into itself
	source := filepath.Clean(c.Paths.Source)
	replica := filepath.Clean(c.Paths.Replica)
	if source == replica {
		return fmt.Errorf("paths.source and paths.replica must differ: %s", source)
	}
	if within(source, replica) || within(replica, source) {
		return fmt.Errorf("paths.source and paths.replica must not be nested: %s, %s", source, replica)
	}

	// The action log must live outside both trees
	logDir := filepath.Clean(c.Paths.LogDir)
	for _, root := range []struct{ name, path string }{
		{"paths.source", source},
		{"paths.replica", replica},
	} {
		if logDir == root.path || within(root.path, logDir) {
			return fmt.Errorf("paths.log_dir must be outside %s: %s", root.name, logDir)
		}
	}

	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be a positive number of seconds: %d", c.Sync.Interval)
	}
	if int64(c.Sync.Interval) > MaxInterval {
		return fmt.Errorf("sync.interval must be at most %d seconds: %d", MaxInterval, c.Sync.Interval)
	}

	switch c.Sync.Compare {
	case CompareSize, CompareHash:
		// valid
	default:
		return fmt.Errorf("invalid sync.compare mode: %s (must be size or hash)", c.Sync.Compare)
	}

	if _, err := tree.NewMatcher(c.Sync.Exclude); err != nil {
		return fmt.Errorf("sync.exclude: %w", err)
	}

	return nil
}

// IntervalDuration returns the pause between cycles
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Sync.Interval) * time.Second
}

// LogFilePath returns the path to the action log file
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, actionlog.FileName)
}

// within reports whether path lies strictly inside dir
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
