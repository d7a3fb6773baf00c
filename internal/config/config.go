package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Device contains block-device classification settings.
type Device struct {
	DevDir         string `toml:"dev_dir"`
	DriveMaxBytes  int64  `toml:"drive_max_bytes"`
	TargetMinBytes int64  `toml:"target_min_bytes"`
	AllowLastMatch bool   `toml:"allow_last_match"`
	LsblkTimeout   int    `toml:"lsblk_timeout"`
}

// Medium contains settings for the disk presence probe.
type Medium struct {
	ProbeTimeout int `toml:"probe_timeout"`
}

// Mount contains the fixed mount points used during a backup.
type Mount struct {
	FloppyPoint string `toml:"floppy_point"`
	TargetPoint string `toml:"target_point"`
}

// Backup contains the on-stick folder layout and copy policy.
type Backup struct {
	BaseDir string `toml:"base_dir"`
	Tag     string `toml:"tag"`
	// StrictCopy fails the attempt when any entry could not be copied, so the
	// disk is retried on the next poll instead of being marked as copied.
	StrictCopy bool `toml:"strict_copy"`
}

// Poll contains the controller cadence.
type Poll struct {
	ReadyInterval   int  `toml:"ready_interval"`
	WaitingInterval int  `toml:"waiting_interval"`
	Udev            bool `toml:"udev"`
}

// Paths contains daemon runtime file locations.
type Paths struct {
	LockFile string `toml:"lock_file"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for hoard.
//
// Configuration sections by subsystem:
//   - Device: lsblk classification thresholds and the device directory
//   - Medium: disk presence probe
//   - Mount: fixed mount points for the floppy and the stick
//   - Backup: backup folder layout and copy policy
//   - Poll: controller cadence and udev wake-ups
//   - Paths: lock file and log directory
//   - Logging: log format, level, and rotation
type Config struct {
	Device  Device  `toml:"device"`
	Medium  Medium  `toml:"medium"`
	Mount   Mount   `toml:"mount"`
	Backup  Backup  `toml:"backup"`
	Poll    Poll    `toml:"poll"`
	Paths   Paths   `toml:"paths"`
	Logging Logging `toml:"logging"`
}

const (
	systemConfigPath  = "/etc/hoard/config.toml"
	projectConfigName = "hoard.toml"
)

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() string {
	return systemConfigPath
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(systemConfigPath); err == nil && !info.IsDir() {
		return systemConfigPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return systemConfigPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes to. Mount
// points are created lazily by the mounter.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, filepath.Dir(c.Paths.LockFile)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DevicePath joins a bare block-device name onto the configured device directory.
func (c *Config) DevicePath(name string) string {
	return filepath.Join(c.Device.DevDir, name)
}

// LogFile returns the path of the daemon log file.
func (c *Config) LogFile() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "hoard.log")
}

// ReadyInterval is the delay between polls while both devices are attached.
func (c *Config) ReadyInterval() time.Duration {
	return time.Duration(c.Poll.ReadyInterval) * time.Second
}

// WaitingInterval is the delay between polls while a device is missing.
func (c *Config) WaitingInterval() time.Duration {
	return time.Duration(c.Poll.WaitingInterval) * time.Second
}

// LsblkTimeout bounds a single enumeration call.
func (c *Config) LsblkTimeout() time.Duration {
	return time.Duration(c.Device.LsblkTimeout) * time.Second
}

// ProbeTimeout bounds a single presence probe.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Medium.ProbeTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
