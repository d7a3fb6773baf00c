package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"hoard/internal/testsupport"
)

func TestBackupCopiesIntoNextFolder(t *testing.T) {
	env := setupCLITestEnv(t, nil, testsupport.WithDeviceNodes("sda", "sdb", "sdb1"))
	// mount(8) is stubbed, so the floppy mount point already holds the disk.
	files := testsupport.FloppyImage(t, env.cfg.Mount.FloppyPoint)

	for _, want := range []string{"BKP_001", "BKP_002"} {
		out, _, err := runCLI(t, []string{"backup"}, env.configPath)
		if err != nil {
			t.Fatalf("backup: %v\n%s", err, out)
		}
		folder := filepath.Join(env.cfg.Mount.TargetPoint, env.cfg.Backup.BaseDir, want)
		requireContains(t, out, "Folder:   "+folder)
		requireContains(t, out, "Failures: 0")
		for _, name := range files {
			if _, err := os.Stat(filepath.Join(folder, name)); err != nil {
				t.Fatalf("expected %s in %s: %v", name, want, err)
			}
		}
	}
}

func TestBackupFailsWhenMountFails(t *testing.T) {
	env := setupCLITestEnv(t, map[string]string{"mount": "echo 'wrong fs type' >&2; exit 32"},
		testsupport.WithDeviceNodes("sda", "sdb", "sdb1"))

	_, _, err := runCLI(t, []string{"backup"}, env.configPath)
	if err == nil {
		t.Fatal("expected mount failure")
	}
	requireContains(t, err.Error(), "backup failed")

	backups := filepath.Join(env.cfg.Mount.TargetPoint, env.cfg.Backup.BaseDir)
	if _, err := os.Stat(backups); !os.IsNotExist(err) {
		t.Fatalf("expected no backup folders after mount failure, stat err = %v", err)
	}
}

func TestBackupRequiresBothDevices(t *testing.T) {
	onlyDrive := `echo '{"blockdevices": [{"name": "sda", "tran": "usb", "size": 1474560, "type": "disk"}]}'`
	env := setupCLITestEnv(t, map[string]string{"lsblk": onlyDrive})

	_, _, err := runCLI(t, []string{"backup"}, env.configPath)
	if err == nil {
		t.Fatal("expected error without a backup stick")
	}
	requireContains(t, err.Error(), "devices not ready")
}

func TestBackupRefusedWhileDaemonHoldsLock(t *testing.T) {
	env := setupCLITestEnv(t, nil, testsupport.WithDeviceNodes("sda", "sdb", "sdb1"))
	testsupport.FloppyImage(t, env.cfg.Mount.FloppyPoint)

	held := flock.New(env.cfg.Paths.LockFile)
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("take lock: %v", err)
	}
	t.Cleanup(func() { _ = held.Unlock() })

	_, _, err := runCLI(t, []string{"backup"}, env.configPath)
	if err == nil {
		t.Fatal("expected backup to be refused while the lock is held")
	}
	requireContains(t, err.Error(), "daemon is running")

	backups := filepath.Join(env.cfg.Mount.TargetPoint, env.cfg.Backup.BaseDir)
	if _, err := os.Stat(backups); !os.IsNotExist(err) {
		t.Fatalf("expected no backup folders while locked, stat err = %v", err)
	}
}
