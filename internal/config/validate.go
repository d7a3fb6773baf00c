package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validateMount(); err != nil {
		return err
	}
	if err := c.validateBackup(); err != nil {
		return err
	}
	if err := c.validatePoll(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDevice() error {
	if c.Device.DriveMaxBytes <= 0 {
		return errors.New("device.drive_max_bytes must be positive")
	}
	if c.Device.TargetMinBytes < c.Device.DriveMaxBytes {
		return fmt.Errorf("device.target_min_bytes (%d) must not be below device.drive_max_bytes (%d)",
			c.Device.TargetMinBytes, c.Device.DriveMaxBytes)
	}
	return nil
}

func (c *Config) validateMount() error {
	if !filepath.IsAbs(c.Mount.FloppyPoint) || !filepath.IsAbs(c.Mount.TargetPoint) {
		return errors.New("mount.floppy_point and mount.target_point must be absolute paths")
	}
	if filepath.Clean(c.Mount.FloppyPoint) == filepath.Clean(c.Mount.TargetPoint) {
		return errors.New("mount.floppy_point and mount.target_point must differ")
	}
	return nil
}

func (c *Config) validateBackup() error {
	if !tagPattern.MatchString(c.Backup.Tag) {
		return fmt.Errorf("backup.tag %q may only contain letters, digits, and dashes", c.Backup.Tag)
	}
	cleaned := filepath.Clean(c.Backup.BaseDir)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return fmt.Errorf("backup.base_dir %q must be relative to the stick root", c.Backup.BaseDir)
	}
	return nil
}

func (c *Config) validatePoll() error {
	if c.Poll.ReadyInterval <= 0 || c.Poll.WaitingInterval <= 0 {
		return errors.New("poll intervals must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
