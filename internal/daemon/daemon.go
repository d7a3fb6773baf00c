package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"hoard/internal/backup"
	"hoard/internal/config"
	"hoard/internal/deps"
	"hoard/internal/device"
	"hoard/internal/logging"
	"hoard/internal/medium"
)

// geteuid is replaced in tests.
var geteuid = unix.Geteuid

// Daemon owns the controller lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	controller *Controller
	monitor    *netlinkMonitor

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithController replaces the controller built from configuration.
func WithController(c *Controller) Option {
	return func(d *Daemon) { d.controller = c }
}

// New constructs a daemon with the real device locator, presence detector,
// and backup orchestrator.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: cfg.Paths.LockFile,
		lock:     flock.New(cfg.Paths.LockFile),
	}
	if cfg.Poll.Udev {
		d.monitor = newNetlinkMonitor(logger)
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.controller == nil {
		d.controller = NewController(
			device.NewLocator(device.NewLsblkEnumerator(cfg.LsblkTimeout()), device.RulesFromConfig(cfg), logger),
			medium.NewDetector(cfg.Device.DevDir, logger, medium.WithTimeout(cfg.ProbeTimeout())),
			backup.NewOrchestrator(backup.LayoutFromConfig(cfg), logger),
			logger,
			WithIntervals(cfg.ReadyInterval(), cfg.WaitingInterval()),
			WithWake(d.monitor.Wake()),
		)
	}
	return d, nil
}

// Run acquires the instance lock and polls until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another hoard daemon instance is already running")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	d.logger.Info("hoard daemon started",
		logging.String("lock", d.lockPath),
		logging.String("floppy_point", d.cfg.Mount.FloppyPoint),
		logging.String("target_point", d.cfg.Mount.TargetPoint),
		logging.String("backup_dir", d.cfg.Backup.BaseDir),
	)
	if geteuid() != 0 {
		logging.WarnWithContext(d.logger, "not running as root; mount and fdisk will likely fail", "not_root",
			logging.String(logging.FieldErrorHint, "run as root or install with `hoard service install`"),
			logging.String(logging.FieldImpact, "backups fail until the daemon has mount privileges"),
		)
	}

	for _, missing := range deps.Missing(deps.Check(deps.HostTools())) {
		logging.WarnWithContext(d.logger, "required host command missing", "dependency_missing",
			logging.String("command", missing.Command),
			logging.String("purpose", missing.Purpose),
			logging.String(logging.FieldErrorHint, "install util-linux and fdisk"),
			logging.String(logging.FieldImpact, "backups fail until the command is available"),
		)
	}

	if err := d.monitor.Start(ctx); err != nil {
		d.logger.Warn("netlink monitor unavailable", logging.Error(err))
	}
	defer d.monitor.Stop()

	err = d.controller.Run(ctx)
	d.logger.Info("hoard daemon stopped")
	return err
}
