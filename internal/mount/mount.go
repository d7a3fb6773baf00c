// Package mount attaches and detaches block devices at fixed mount points
// through the host mount and umount commands.
package mount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"hoard/internal/logging"
)

// ErrStillMounted reports that umount returned success but the mount table
// still lists the point.
var ErrStillMounted = errors.New("mount point still mounted")

// runCommand executes a system command. It is a package-level variable so
// tests can replace it with a stub.
var runCommand = func(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(output)); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// syncFilesystems flushes dirty pages before unmounting.
var syncFilesystems = unix.Sync

// mountTable lists current mounts.
var mountTable = func(ctx context.Context) ([]disk.PartitionStat, error) {
	return disk.PartitionsWithContext(ctx, true)
}

// Mounter mounts and unmounts devices.
type Mounter interface {
	// Mount attaches device at point. It creates point if needed and performs
	// a best-effort unmount of point first.
	Mount(ctx context.Context, device, point string) error
	// Unmount detaches whatever is mounted at point.
	Unmount(ctx context.Context, point string) error
}

// ExecMounter implements Mounter with mount(8) and umount(8).
type ExecMounter struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewExecMounter returns a mounter operating on the OS filesystem.
func NewExecMounter(logger *slog.Logger) *ExecMounter {
	return &ExecMounter{
		fs:     afero.NewOsFs(),
		logger: logging.NewComponentLogger(logger, "mount"),
	}
}

// Mount implements Mounter. The preliminary umount clears a stale mount left
// by a crashed run; its error is discarded because the point is usually not
// mounted at all.
func (m *ExecMounter) Mount(ctx context.Context, device, point string) error {
	if strings.TrimSpace(device) == "" || strings.TrimSpace(point) == "" {
		return fmt.Errorf("mount: device and mount point are required")
	}
	if err := m.fs.MkdirAll(point, 0o755); err != nil {
		return fmt.Errorf("create mount point %s: %w", point, err)
	}

	if err := runCommand(ctx, "umount", point); err != nil {
		m.logger.Debug("pre-mount reset found nothing to unmount",
			logging.String(logging.FieldMountPoint, point),
			logging.Error(err),
		)
	}

	if err := runCommand(ctx, "mount", device, point); err != nil {
		return fmt.Errorf("mount %s at %s: %w", device, point, err)
	}
	m.logger.Info("mounted",
		logging.String(logging.FieldDevice, device),
		logging.String(logging.FieldMountPoint, point),
	)
	return nil
}

// Unmount implements Mounter. Filesystems are synced first so a stick pulled
// right after the log line still holds the copy.
func (m *ExecMounter) Unmount(ctx context.Context, point string) error {
	syncFilesystems()
	if err := runCommand(ctx, "umount", point); err != nil {
		return fmt.Errorf("umount %s: %w", point, err)
	}

	mounted, err := IsMounted(ctx, point)
	if err != nil {
		m.logger.Debug("mount table unavailable; skipping unmount verification",
			logging.String(logging.FieldMountPoint, point),
			logging.Error(err),
		)
	} else if mounted {
		return fmt.Errorf("umount %s: %w", point, ErrStillMounted)
	}

	m.logger.Info("unmounted", logging.String(logging.FieldMountPoint, point))
	return nil
}

// IsMounted reports whether point appears in the mount table.
func IsMounted(ctx context.Context, point string) (bool, error) {
	partitions, err := mountTable(ctx)
	if err != nil {
		return false, fmt.Errorf("read mount table: %w", err)
	}
	want := filepath.Clean(point)
	for _, p := range partitions {
		if filepath.Clean(p.Mountpoint) == want {
			return true, nil
		}
	}
	return false, nil
}

// MountedDevice returns the device mounted at point, if any.
func MountedDevice(ctx context.Context, point string) (string, bool, error) {
	partitions, err := mountTable(ctx)
	if err != nil {
		return "", false, fmt.Errorf("read mount table: %w", err)
	}
	want := filepath.Clean(point)
	for _, p := range partitions {
		if filepath.Clean(p.Mountpoint) == want {
			return p.Device, true, nil
		}
	}
	return "", false, nil
}
