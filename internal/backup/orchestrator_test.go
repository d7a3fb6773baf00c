package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"hoard/internal/logging"
)

// fakeMounter tracks mounts in memory. Unmounting a point that is not
// mounted fails, like umount(8).
type fakeMounter struct {
	mounted map[string]string
	fail    map[string]error
	calls   []string
}

func newFakeMounter() *fakeMounter {
	return &fakeMounter{mounted: map[string]string{}, fail: map[string]error{}}
}

func (m *fakeMounter) Mount(_ context.Context, device, point string) error {
	m.calls = append(m.calls, "mount "+device+" "+point)
	if err := m.fail[device]; err != nil {
		return err
	}
	m.mounted[point] = device
	return nil
}

func (m *fakeMounter) Unmount(_ context.Context, point string) error {
	m.calls = append(m.calls, "umount "+point)
	if _, ok := m.mounted[point]; !ok {
		return fmt.Errorf("umount %s: not mounted", point)
	}
	delete(m.mounted, point)
	return nil
}

type panicCopier struct{}

func (panicCopier) Copy(string, string) (CopyReport, error) {
	panic("walker exploded")
}

func testLayout() Layout {
	return Layout{
		DevDir:      "/dev",
		FloppyPoint: "/mnt/floppy",
		TargetPoint: "/mnt/usb_stick",
		BaseDir:     "floppy_backups",
		Tag:         "BKP",
	}
}

func newTestOrchestrator(t *testing.T, layout Layout, fs afero.Fs, m *fakeMounter, opts ...Option) *Orchestrator {
	t.Helper()
	base := []Option{WithFs(fs), WithMounter(m), WithSessionIDs(func() string { return "session-1" })}
	return NewOrchestrator(layout, logging.NewNop(), append(base, opts...)...)
}

func TestRunFirstBackupCreatesBKP001(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedFloppy(t, fs, "/mnt/floppy")
	_ = afero.WriteFile(fs, "/dev/sda", nil, 0o660)
	m := newFakeMounter()
	orch := newTestOrchestrator(t, testLayout(), fs, m)

	report, err := orch.Run(context.Background(), "sda", "/dev/sdb1")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Session.ID != "session-1" || report.Session.SourcePath != "/dev/sda" {
		t.Fatalf("unexpected session: %+v", report.Session)
	}
	if report.Session.Folder != "/mnt/usb_stick/floppy_backups/BKP_001" {
		t.Fatalf("unexpected folder %q", report.Session.Folder)
	}
	if report.Copy.Files != 4 {
		t.Fatalf("expected 4 files copied, got %+v", report.Copy)
	}
	if len(m.mounted) != 0 {
		t.Fatalf("mounts left behind: %v", m.mounted)
	}

	second, err := orch.Run(context.Background(), "sda", "/dev/sdb1")
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if filepath.Base(second.Session.Folder) != "BKP_002" {
		t.Fatalf("second backup went to %q", second.Session.Folder)
	}
}

func TestRunPrefersFirstPartition(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedFloppy(t, fs, "/mnt/floppy")
	_ = afero.WriteFile(fs, "/dev/sda", nil, 0o660)
	_ = afero.WriteFile(fs, "/dev/sda1", nil, 0o660)
	m := newFakeMounter()

	if _, err := newTestOrchestrator(t, testLayout(), fs, m).Run(context.Background(), "sda", "/dev/sdb1"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if m.calls[0] != "mount /dev/sda1 /mnt/floppy" {
		t.Fatalf("expected partition mount first, got %v", m.calls)
	}
}

func TestRunContinuesNumbering(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedFloppy(t, fs, "/mnt/floppy")
	for i := 1; i <= 5; i++ {
		_ = fs.MkdirAll(fmt.Sprintf("/mnt/usb_stick/floppy_backups/BKP_%03d", i), 0o755)
	}
	_ = fs.MkdirAll("/mnt/usb_stick/floppy_backups/notes", 0o755)

	report, err := newTestOrchestrator(t, testLayout(), fs, newFakeMounter()).Run(context.Background(), "sda", "/dev/sdb1")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if filepath.Base(report.Session.Folder) != "BKP_006" {
		t.Fatalf("expected BKP_006, got %q", report.Session.Folder)
	}
}

func TestRunSourceMountFailureLeavesNothingMounted(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := newFakeMounter()
	m.fail["/dev/sda"] = errors.New("no medium found")
	orch := newTestOrchestrator(t, testLayout(), fs, m)

	_, err := orch.Run(context.Background(), "sda", "/dev/sdb1")
	if !errors.Is(err, ErrMountFailed) {
		t.Fatalf("expected ErrMountFailed, got %v", err)
	}
	if len(m.mounted) != 0 {
		t.Fatalf("mounts left behind: %v", m.mounted)
	}
	for _, call := range m.calls {
		if strings.HasPrefix(call, "mount /dev/sdb1") {
			t.Fatal("target mounted after source mount failed")
		}
	}
	if ok, _ := afero.DirExists(fs, "/mnt/usb_stick/floppy_backups"); ok {
		t.Fatal("backup folder created despite mount failure")
	}
}

func TestRunTargetMountFailureUnmountsSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := newFakeMounter()
	m.fail["/dev/sdb1"] = errors.New("wrong fs type")

	_, err := newTestOrchestrator(t, testLayout(), fs, m).Run(context.Background(), "sda", "/dev/sdb1")
	if !errors.Is(err, ErrMountFailed) {
		t.Fatalf("expected ErrMountFailed, got %v", err)
	}
	if len(m.mounted) != 0 {
		t.Fatalf("floppy left mounted: %v", m.mounted)
	}
}

func TestRunCopyFailuresAreBestEffortByDefault(t *testing.T) {
	base := afero.NewMemMapFs()
	seedFloppy(t, base, "/mnt/floppy")
	fs := flakyFs{Fs: base, bad: "/mnt/floppy/MAVICA.HTM"}
	m := newFakeMounter()

	report, err := newTestOrchestrator(t, testLayout(), fs, m).Run(context.Background(), "sda", "/dev/sdb1")
	if err != nil {
		t.Fatalf("expected success despite copy failure, got %v", err)
	}
	if len(report.Copy.Failures) != 1 {
		t.Fatalf("expected one recorded failure, got %+v", report.Copy.Failures)
	}
	if len(m.mounted) != 0 {
		t.Fatalf("mounts left behind: %v", m.mounted)
	}
}

func TestRunStrictCopyFailsAttempt(t *testing.T) {
	base := afero.NewMemMapFs()
	seedFloppy(t, base, "/mnt/floppy")
	fs := flakyFs{Fs: base, bad: "/mnt/floppy/MAVICA.HTM"}
	layout := testLayout()
	layout.StrictCopy = true
	m := newFakeMounter()

	_, err := newTestOrchestrator(t, layout, fs, m).Run(context.Background(), "sda", "/dev/sdb1")
	if !errors.Is(err, ErrCopyIncomplete) {
		t.Fatalf("expected ErrCopyIncomplete, got %v", err)
	}
	if len(m.mounted) != 0 {
		t.Fatalf("mounts left behind: %v", m.mounted)
	}
}

func TestRunRecoversFromPanic(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := newFakeMounter()

	_, err := newTestOrchestrator(t, testLayout(), fs, m, WithCopier(panicCopier{})).Run(context.Background(), "sda", "/dev/sdb1")
	if err == nil || !strings.Contains(err.Error(), "walker exploded") {
		t.Fatalf("expected recovered panic error, got %v", err)
	}
	if len(m.mounted) != 0 {
		t.Fatalf("mounts left behind after panic: %v", m.mounted)
	}
}

func TestRunRejectsMissingArguments(t *testing.T) {
	m := newFakeMounter()
	_, err := newTestOrchestrator(t, testLayout(), afero.NewMemMapFs(), m).Run(context.Background(), "", "/dev/sdb1")
	if err == nil {
		t.Fatal("expected error without a drive")
	}
	if len(m.calls) != 0 {
		t.Fatalf("expected no mount activity, got %v", m.calls)
	}
}
