// Package medium decides whether the floppy drive currently holds a readable
// disk.
package medium

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"hoard/internal/logging"
)

// runCommand executes a system command with output discarded. It is a
// package-level variable so tests can replace it with a stub.
var runCommand = func(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run() //nolint:gosec
}

// Prober attempts a low-level read of a raw device. A nil error means the
// partition table (or equivalent) was readable.
type Prober interface {
	Probe(ctx context.Context, devicePath string) error
}

// FdiskProber probes with `fdisk -l`, which fails when the drive is empty.
type FdiskProber struct{}

// Probe implements Prober.
func (FdiskProber) Probe(ctx context.Context, devicePath string) error {
	if err := runCommand(ctx, "fdisk", "-l", devicePath); err != nil {
		return fmt.Errorf("fdisk -l %s: %w", devicePath, err)
	}
	return nil
}

// Detector reports medium presence for a named drive.
type Detector struct {
	fs      afero.Fs
	prober  Prober
	devDir  string
	timeout time.Duration
	logger  *slog.Logger
}

// Option customizes a Detector.
type Option func(*Detector)

// WithFs overrides the filesystem used to check device nodes.
func WithFs(fs afero.Fs) Option {
	return func(d *Detector) { d.fs = fs }
}

// WithProber overrides the presence probe.
func WithProber(p Prober) Option {
	return func(d *Detector) { d.prober = p }
}

// WithTimeout bounds each probe.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Detector) { d.timeout = timeout }
}

// NewDetector builds a detector rooted at devDir (normally /dev).
func NewDetector(devDir string, logger *slog.Logger, opts ...Option) *Detector {
	if strings.TrimSpace(devDir) == "" {
		devDir = "/dev"
	}
	d := &Detector{
		fs:     afero.NewOsFs(),
		prober: FdiskProber{},
		devDir: devDir,
		logger: logging.NewComponentLogger(logger, "medium"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Present reports whether the drive holds a readable disk. An empty name, a
// missing device node, and a failed probe all read as absent; an empty drive
// and an unreadable disk are not told apart.
func (d *Detector) Present(ctx context.Context, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	path := filepath.Join(d.devDir, name)
	exists, err := afero.Exists(d.fs, path)
	if err != nil || !exists {
		d.logger.Debug("drive node missing", logging.String(logging.FieldDevice, path))
		return false
	}

	probeCtx := ctx
	var cancel context.CancelFunc
	if d.timeout > 0 {
		probeCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.prober.Probe(probeCtx, path); err != nil {
		d.logger.Debug("medium probe failed; treating drive as empty",
			logging.String(logging.FieldDevice, path),
			logging.Error(err),
		)
		return false
	}
	return true
}
