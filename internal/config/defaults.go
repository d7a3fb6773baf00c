package config

const (
	mebibyte = 1024 * 1024

	defaultDevDir           = "/dev"
	defaultDriveMaxBytes    = 5 * mebibyte
	defaultTargetMinBytes   = 100 * mebibyte
	defaultLsblkTimeout     = 10
	defaultProbeTimeout     = 15
	defaultFloppyMountPoint = "/mnt/floppy"
	defaultTargetMountPoint = "/mnt/usb_stick"
	defaultBackupBaseDir    = "floppy_backups"
	defaultBackupTag        = "BKP"
	defaultReadyInterval    = 2
	defaultWaitingInterval  = 5
	defaultLockFile         = "/run/hoard.lock"
	defaultLogDir           = "/var/log/hoard"
	defaultLogFormat        = "auto"
	defaultLogLevel         = "info"
	defaultLogMaxSizeMB     = 10
	defaultLogMaxBackups    = 5
	defaultLogMaxAgeDays    = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Device: Device{
			DevDir:         defaultDevDir,
			DriveMaxBytes:  defaultDriveMaxBytes,
			TargetMinBytes: defaultTargetMinBytes,
			LsblkTimeout:   defaultLsblkTimeout,
		},
		Medium: Medium{
			ProbeTimeout: defaultProbeTimeout,
		},
		Mount: Mount{
			FloppyPoint: defaultFloppyMountPoint,
			TargetPoint: defaultTargetMountPoint,
		},
		Backup: Backup{
			BaseDir: defaultBackupBaseDir,
			Tag:     defaultBackupTag,
		},
		Poll: Poll{
			ReadyInterval:   defaultReadyInterval,
			WaitingInterval: defaultWaitingInterval,
			Udev:            true,
		},
		Paths: Paths{
			LockFile: defaultLockFile,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
