package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"hoard/internal/config"
	"hoard/internal/logging"
	"hoard/internal/mount"
)

var (
	// ErrMountFailed reports that the floppy or the stick could not be mounted.
	ErrMountFailed = errors.New("mount failed")
	// ErrCopyIncomplete reports copy failures when strict copying is enabled.
	ErrCopyIncomplete = errors.New("copy incomplete")
)

// Session describes one backup attempt.
type Session struct {
	ID         string
	SourcePath string
	TargetPath string
	// Folder is the absolute path of the new backup folder under the target
	// mount point. Empty until the folder is created.
	Folder string
}

// Report is the outcome of a backup attempt.
type Report struct {
	Session  Session
	Copy     CopyReport
	Duration time.Duration
}

// Layout holds the fixed paths a backup uses.
type Layout struct {
	DevDir      string
	FloppyPoint string
	TargetPoint string
	BaseDir     string
	Tag         string
	StrictCopy  bool
}

// LayoutFromConfig extracts the backup layout from configuration.
func LayoutFromConfig(cfg *config.Config) Layout {
	return Layout{
		DevDir:      cfg.Device.DevDir,
		FloppyPoint: cfg.Mount.FloppyPoint,
		TargetPoint: cfg.Mount.TargetPoint,
		BaseDir:     cfg.Backup.BaseDir,
		Tag:         cfg.Backup.Tag,
		StrictCopy:  cfg.Backup.StrictCopy,
	}
}

// BackupRoot is the directory holding the numbered folders on the stick.
func (l Layout) BackupRoot() string {
	return filepath.Join(l.TargetPoint, l.BaseDir)
}

// Orchestrator runs the mount, number, copy, unmount sequence.
type Orchestrator struct {
	layout    Layout
	fs        afero.Fs
	mounter   mount.Mounter
	copier    Copier
	sequencer *Sequencer
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithFs overrides the filesystem used for device checks, numbering, and
// copying.
func WithFs(fsys afero.Fs) Option {
	return func(o *Orchestrator) { o.fs = fsys }
}

// WithMounter overrides the mounter.
func WithMounter(m mount.Mounter) Option {
	return func(o *Orchestrator) { o.mounter = m }
}

// WithCopier overrides the copier.
func WithCopier(c Copier) Option {
	return func(o *Orchestrator) { o.copier = c }
}

// WithSessionIDs overrides session ID generation.
func WithSessionIDs(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// NewOrchestrator wires an orchestrator. Without options it uses the OS
// filesystem, mount(8), and an in-process tree copier.
func NewOrchestrator(layout Layout, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		layout: layout,
		fs:     afero.NewOsFs(),
		logger: logging.NewComponentLogger(logger, "backup"),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.mounter == nil {
		o.mounter = mount.NewExecMounter(logger)
	}
	if o.copier == nil {
		o.copier = NewTreeCopier(o.fs, logger)
	}
	o.sequencer = NewSequencer(o.fs, layout.Tag)
	return o
}

// SourcePath picks what to mount for a drive: its first partition when the
// node exists, else the bare device.
func (o *Orchestrator) SourcePath(drive string) string {
	partition := filepath.Join(o.layout.DevDir, drive+"1")
	if ok, err := afero.Exists(o.fs, partition); err == nil && ok {
		return partition
	}
	return filepath.Join(o.layout.DevDir, drive)
}

// Run backs up the disk in drive to a new folder on target. A nil error means
// both mounts succeeded and the copy was attempted; per-entry copy failures
// are in Report.Copy and only fail the run when strict copying is enabled.
// Both mount points are unmounted before Run returns, including after a
// panic.
func (o *Orchestrator) Run(ctx context.Context, drive, target string) (report Report, err error) {
	started := o.now()
	report.Session = Session{ID: o.newID(), TargetPath: target}
	ctx = logging.WithSession(ctx, report.Session.ID)
	logger := logging.WithContext(ctx, o.logger)

	// floppyMounted and targetMounted only pick the log level for cleanup;
	// both points are unmounted regardless.
	var floppyMounted, targetMounted bool
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backup aborted: %v", r)
			logging.ErrorWithContext(logger, "backup aborted unexpectedly", "backup_panic",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "report this with the log file attached"),
			)
			o.release(ctx, logger, floppyMounted, targetMounted)
		}
		report.Duration = o.now().Sub(started)
	}()

	drive = strings.TrimSpace(drive)
	target = strings.TrimSpace(target)
	if drive == "" || target == "" {
		return report, fmt.Errorf("backup requires a drive and a target (drive=%q target=%q)", drive, target)
	}

	report.Session.SourcePath = o.SourcePath(drive)
	logger.Info("backup started",
		logging.String("source", report.Session.SourcePath),
		logging.String("target", target),
		logging.String(logging.FieldEventType, "backup_started"),
	)

	if err := o.mounter.Mount(ctx, report.Session.SourcePath, o.layout.FloppyPoint); err != nil {
		o.release(ctx, logger, false, false)
		return report, o.mountError(logger, "floppy", err)
	}
	floppyMounted = true
	if err := o.mounter.Mount(ctx, target, o.layout.TargetPoint); err != nil {
		o.release(ctx, logger, true, false)
		return report, o.mountError(logger, "stick", err)
	}
	targetMounted = true

	root := o.layout.BackupRoot()
	n, err := o.sequencer.Next(root)
	if err != nil {
		o.release(ctx, logger, true, true)
		return report, err
	}
	folder := filepath.Join(root, o.sequencer.FolderName(n))
	if err := o.fs.MkdirAll(folder, 0o755); err != nil {
		o.release(ctx, logger, true, true)
		return report, fmt.Errorf("create backup folder %s: %w", folder, err)
	}
	report.Session.Folder = folder

	logger.Info("copying files",
		logging.String("from", o.layout.FloppyPoint),
		logging.String("to", folder),
	)
	copyReport, copyErr := o.copier.Copy(o.layout.FloppyPoint, folder)
	report.Copy = copyReport
	if copyErr != nil {
		report.Copy.Failures = append(report.Copy.Failures, CopyFailure{Path: o.layout.FloppyPoint, Err: copyErr})
	}
	o.logCopy(logger, report)

	o.release(ctx, logger, true, true)

	if o.layout.StrictCopy && !report.Copy.Complete() {
		return report, fmt.Errorf("%w: %d entries failed", ErrCopyIncomplete, len(report.Copy.Failures))
	}
	return report, nil
}

func (o *Orchestrator) mountError(logger *slog.Logger, which string, err error) error {
	logging.WarnWithContext(logger, "mount failed; backup abandoned", "mount_failed",
		logging.String("role", which),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check that the disk is formatted and the stick is not write-protected"),
		logging.String(logging.FieldImpact, "disk will be retried on the next poll"),
	)
	return fmt.Errorf("%w: %s: %w", ErrMountFailed, which, err)
}

func (o *Orchestrator) logCopy(logger *slog.Logger, report Report) {
	attrs := []logging.Attr{
		logging.String("folder", filepath.Base(report.Session.Folder)),
		logging.Int("files", report.Copy.Files),
		logging.Int("dirs", report.Copy.Dirs),
		logging.Int64("bytes", report.Copy.Bytes),
		logging.Int("failures", len(report.Copy.Failures)),
	}
	if report.Copy.Complete() {
		logger.Info("file copy complete", logging.Args(attrs...)...)
		return
	}
	impact := "backup kept with missing entries"
	if o.layout.StrictCopy {
		impact = "backup marked failed; disk will be retried on the next poll"
	}
	attrs = append(attrs, logging.String(logging.FieldImpact, impact), logging.Alert("incomplete_backup"))
	logging.WarnWithContext(logger, "file copy finished with errors", "copy_incomplete", attrs...)
}

// release unmounts both points unconditionally. Failures on a point this run
// mounted are warnings; failures on a point it never mounted are expected.
func (o *Orchestrator) release(ctx context.Context, logger *slog.Logger, floppyMounted, targetMounted bool) {
	o.unmount(ctx, logger, o.layout.FloppyPoint, floppyMounted)
	o.unmount(ctx, logger, o.layout.TargetPoint, targetMounted)
}

func (o *Orchestrator) unmount(ctx context.Context, logger *slog.Logger, point string, mounted bool) {
	err := o.mounter.Unmount(context.WithoutCancel(ctx), point)
	if err == nil {
		return
	}
	if !mounted {
		logger.Debug("cleanup unmount found nothing mounted",
			logging.String(logging.FieldMountPoint, point),
			logging.Error(err),
		)
		return
	}
	logging.WarnWithContext(logger, "unmount failed", "unmount_failed",
		logging.String(logging.FieldMountPoint, point),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "run umount manually before removing the device"),
		logging.String(logging.FieldImpact, "device may still be mounted; the next backup resets it"),
	)
}
