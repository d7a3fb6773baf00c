package service

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	kservice "github.com/kardianos/service"
	"go.uber.org/goleak"

	"hoard/internal/logging"
)

type blockingRunner struct {
	started chan struct{}
	stopped atomic.Bool
}

func (r *blockingRunner) Run(ctx context.Context) error {
	close(r.started)
	<-ctx.Done()
	r.stopped.Store(true)
	return nil
}

type failingRunner struct{ err error }

func (r failingRunner) Run(context.Context) error { return r.err }

func TestProgramStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := &blockingRunner{started: make(chan struct{})}
	p := newProgram(runner, logging.NewNop())

	if err := p.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("runner never started")
	}
	if err := p.Start(nil); err == nil {
		t.Fatal("expected second Start to fail")
	}

	if err := p.Stop(nil); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !runner.stopped.Load() {
		t.Fatal("expected runner context to be cancelled")
	}
	if err := p.Stop(nil); err != nil {
		t.Fatalf("second Stop should be a no-op, got %v", err)
	}
}

func TestProgramExitsWhenRunnerFails(t *testing.T) {
	codes := make(chan int, 1)
	orig := exit
	exit = func(code int) { codes <- code }
	t.Cleanup(func() { exit = orig })

	p := newProgram(failingRunner{err: errors.New("lock held")}, logging.NewNop())
	if err := p.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case code := <-codes:
		if code != 1 {
			t.Fatalf("exit code = %d, want 1", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the process to exit after runner failure")
	}
	if err := p.Stop(nil); err == nil || err.Error() != "lock held" {
		t.Fatalf("Stop should surface the runner error, got %v", err)
	}
}

func TestUnitConfig(t *testing.T) {
	cfg, err := UnitConfig(Options{ConfigPath: "/etc/hoard/config.toml", Executable: "/usr/local/bin/hoard"})
	if err != nil {
		t.Fatalf("UnitConfig: %v", err)
	}
	if cfg.Name != Name || cfg.Executable != "/usr/local/bin/hoard" {
		t.Fatalf("unexpected unit identity: %+v", cfg)
	}
	wantArgs := []string{"run", "--config", "/etc/hoard/config.toml"}
	if !slices.Equal(cfg.Arguments, wantArgs) {
		t.Fatalf("Arguments = %v, want %v", cfg.Arguments, wantArgs)
	}
	if cfg.UserName != "root" {
		t.Fatalf("UserName = %q, want root", cfg.UserName)
	}
	if got := cfg.Option["Restart"]; got != "always" {
		t.Fatalf("Restart = %v, want always", got)
	}
}

func TestUnitConfigWithoutConfigPath(t *testing.T) {
	cfg, err := UnitConfig(Options{Executable: "/opt/hoard"})
	if err != nil {
		t.Fatalf("UnitConfig: %v", err)
	}
	if !slices.Equal(cfg.Arguments, []string{"run"}) {
		t.Fatalf("Arguments = %v, want [run]", cfg.Arguments)
	}
}

func TestDescribeStatus(t *testing.T) {
	tests := []struct {
		status kservice.Status
		want   string
	}{
		{kservice.StatusRunning, "running"},
		{kservice.StatusStopped, "stopped"},
		{kservice.StatusUnknown, "unknown"},
		{kservice.Status(9), "status(9)"},
	}
	for _, tt := range tests {
		if got := describeStatus(tt.status); got != tt.want {
			t.Errorf("describeStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
