package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"hoard/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose device directory, mount points, lock
// file, and log directory all live under a per-test temp directory. The udev
// monitor is disabled so tests never open netlink sockets.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Device.DevDir = filepath.Join(base, "dev")
	cfgVal.Mount.FloppyPoint = filepath.Join(base, "mnt", "floppy")
	cfgVal.Mount.TargetPoint = filepath.Join(base, "mnt", "usb_stick")
	cfgVal.Paths.LockFile = filepath.Join(base, "run", "hoard.lock")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Poll.Udev = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := os.MkdirAll(builder.cfg.Device.DevDir, 0o755); err != nil {
		t.Fatalf("mkdir dev dir: %v", err)
	}
	return builder.cfg
}

// WithDeviceNodes creates empty placeholder files for the named devices in
// the config's device directory.
func WithDeviceNodes(names ...string) ConfigOption {
	return func(b *configBuilder) {
		dir := b.cfg.Device.DevDir
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.t.Fatalf("mkdir dev dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(dir, name), nil, 0o660); err != nil {
				b.t.Fatalf("create device node %s: %v", name, err)
			}
		}
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. Each stub runs the given shell body; an empty body
// exits 0. If scripts is empty, lsblk, fdisk, mount, and umount are stubbed.
func WithStubbedBinaries(scripts map[string]string) ConfigOption {
	return func(b *configBuilder) {
		if len(scripts) == 0 {
			scripts = map[string]string{"lsblk": "", "fdisk": "", "mount": "", "umount": ""}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for name, body := range scripts {
			if body == "" {
				body = "exit 0"
			}
			script := []byte("#!/bin/sh\n" + body + "\n")
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
