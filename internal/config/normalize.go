package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeDevice(); err != nil {
		return err
	}
	if err := c.normalizeMount(); err != nil {
		return err
	}
	c.normalizeBackup()
	c.normalizePoll()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeDevice() error {
	var err error
	if strings.TrimSpace(c.Device.DevDir) == "" {
		c.Device.DevDir = defaultDevDir
	}
	if c.Device.DevDir, err = expandPath(strings.TrimSpace(c.Device.DevDir)); err != nil {
		return fmt.Errorf("device.dev_dir: %w", err)
	}
	if c.Device.LsblkTimeout <= 0 {
		c.Device.LsblkTimeout = defaultLsblkTimeout
	}
	if c.Medium.ProbeTimeout <= 0 {
		c.Medium.ProbeTimeout = defaultProbeTimeout
	}
	return nil
}

func (c *Config) normalizeMount() error {
	var err error
	if strings.TrimSpace(c.Mount.FloppyPoint) == "" {
		c.Mount.FloppyPoint = defaultFloppyMountPoint
	}
	if c.Mount.FloppyPoint, err = expandPath(strings.TrimSpace(c.Mount.FloppyPoint)); err != nil {
		return fmt.Errorf("mount.floppy_point: %w", err)
	}
	if strings.TrimSpace(c.Mount.TargetPoint) == "" {
		c.Mount.TargetPoint = defaultTargetMountPoint
	}
	if c.Mount.TargetPoint, err = expandPath(strings.TrimSpace(c.Mount.TargetPoint)); err != nil {
		return fmt.Errorf("mount.target_point: %w", err)
	}
	return nil
}

func (c *Config) normalizeBackup() {
	c.Backup.BaseDir = strings.Trim(strings.TrimSpace(c.Backup.BaseDir), "/")
	if c.Backup.BaseDir == "" {
		c.Backup.BaseDir = defaultBackupBaseDir
	}
	c.Backup.Tag = strings.TrimSpace(c.Backup.Tag)
	if c.Backup.Tag == "" {
		c.Backup.Tag = defaultBackupTag
	}
}

func (c *Config) normalizePoll() {
	if c.Poll.ReadyInterval <= 0 {
		c.Poll.ReadyInterval = defaultReadyInterval
	}
	if c.Poll.WaitingInterval <= 0 {
		c.Poll.WaitingInterval = defaultWaitingInterval
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LockFile) == "" {
		c.Paths.LockFile = defaultLockFile
	}
	if c.Paths.LockFile, err = expandPath(strings.TrimSpace(c.Paths.LockFile)); err != nil {
		return fmt.Errorf("paths.lock_file: %w", err)
	}
	// An empty log_dir disables the log file; output goes to the console only.
	if strings.TrimSpace(c.Paths.LogDir) != "" {
		if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
			return fmt.Errorf("paths.log_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = defaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays < 0 {
		c.Logging.MaxAgeDays = defaultLogMaxAgeDays
	}
}
