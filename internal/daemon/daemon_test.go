package daemon_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"hoard/internal/backup"
	"hoard/internal/daemon"
	"hoard/internal/device"
	"hoard/internal/logging"
	"hoard/internal/testsupport"
)

// idleLocator reports no devices and signals each poll on polled.
type idleLocator struct {
	polled chan struct{}
}

func (l idleLocator) Locate(context.Context) (device.Roles, error) {
	if l.polled != nil {
		select {
		case l.polled <- struct{}{}:
		default:
		}
	}
	return device.Roles{}, nil
}

type neverPresent struct{}

func (neverPresent) Present(context.Context, string) bool { return false }

type noBackup struct{}

func (noBackup) Run(context.Context, string, string) (backup.Report, error) {
	return backup.Report{}, nil
}

func idleController(polled chan struct{}) *daemon.Controller {
	return daemon.NewController(idleLocator{polled: polled}, neverPresent{}, noBackup{}, logging.NewNop(),
		daemon.WithIntervals(10*time.Millisecond, 10*time.Millisecond))
}

func TestDaemonRunStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	polled := make(chan struct{}, 1)
	d, err := daemon.New(cfg, logging.NewNop(), daemon.WithController(idleController(polled)))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-polled:
	case <-time.After(2 * time.Second):
		t.Fatal("expected daemon to start polling")
	}
	other := flock.New(cfg.Paths.LockFile)
	if ok, _ := other.TryLock(); ok {
		_ = other.Unlock()
		t.Fatal("expected the running daemon to hold its lock")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}
	released := flock.New(cfg.Paths.LockFile)
	ok, err := released.TryLock()
	if err != nil || !ok {
		t.Fatalf("expected lock to be released after stop: ok=%v err=%v", ok, err)
	}
	_ = released.Unlock()
}

func TestDaemonRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	held := flock.New(cfg.Paths.LockFile)
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("failed to take lock: %v", err)
	}
	t.Cleanup(func() { _ = held.Unlock() })

	d, err := daemon.New(cfg, logging.NewNop(), daemon.WithController(idleController(nil)))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	err = d.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected second instance to be refused, got %v", err)
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := daemon.New(nil, nil); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestNewWiresDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, nil); err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
}
