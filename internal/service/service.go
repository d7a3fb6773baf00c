package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	kservice "github.com/kardianos/service"

	"hoard/internal/logging"
)

const (
	// Name is the unit name registered with the service manager.
	Name = "hoard"

	stopTimeout = 30 * time.Second
)

// exit terminates the process when the daemon fails on its own; the service
// manager restarts it. Replaced in tests.
var exit = os.Exit

// Runner is the long-running workload, typically *daemon.Daemon.
type Runner interface {
	Run(ctx context.Context) error
}

type program struct {
	runner Runner
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

func newProgram(runner Runner, logger *slog.Logger) *program {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &program{runner: runner, logger: logger}
}

// Start launches the runner without blocking, as kardianos requires.
func (p *program) Start(kservice.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return errors.New("service already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	p.cancel = cancel
	p.done = done

	go func() {
		err := p.runner.Run(ctx)
		if err != nil && ctx.Err() == nil {
			logging.ErrorWithContext(p.logger, "daemon exited unexpectedly", "daemon_exit",
				logging.Error(err),
				logging.String(logging.FieldImpact, "no floppies are backed up until the service restarts"),
			)
			done <- err
			exit(1)
			return
		}
		done <- err
	}()
	return nil
}

// Stop cancels the runner and waits for it to return.
func (p *program) Stop(kservice.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case err := <-done:
		return err
	case <-time.After(stopTimeout):
		return fmt.Errorf("daemon did not stop within %s", stopTimeout)
	}
}

// Manager installs and controls the hoard unit, and runs the daemon under it.
type Manager struct {
	svc    kservice.Service
	logger *slog.Logger
}

// Options describe how the unit invokes hoard.
type Options struct {
	// ConfigPath is passed to `hoard run --config`. Empty means the default
	// lookup order.
	ConfigPath string
	// Executable overrides os.Executable.
	Executable string
}

// UnitConfig builds the kardianos configuration for the hoard unit.
func UnitConfig(opts Options) (*kservice.Config, error) {
	exe := opts.Executable
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
	}
	args := []string{"run"}
	if opts.ConfigPath != "" {
		args = append(args, "--config", opts.ConfigPath)
	}
	return &kservice.Config{
		Name:        Name,
		DisplayName: "Hoard floppy backup",
		Description: "Backs up each inserted floppy disk to a USB stick",
		Executable:  exe,
		Arguments:   args,
		UserName:    "root",
		Dependencies: []string{
			"After=local-fs.target systemd-udevd.service",
		},
		Option: kservice.KeyValue{
			"Restart": "always",
		},
	}, nil
}

// New constructs a Manager. runner may be nil when the caller only needs
// install or control operations.
func New(runner Runner, logger *slog.Logger, opts Options) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg, err := UnitConfig(opts)
	if err != nil {
		return nil, err
	}
	if runner == nil {
		runner = noRunner{}
	}
	svc, err := kservice.New(newProgram(runner, logging.NewComponentLogger(logger, "service")), cfg)
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return &Manager{svc: svc, logger: logger}, nil
}

// Run blocks until the service manager or an interrupt signal stops the daemon.
func (m *Manager) Run() error {
	return m.svc.Run()
}

// Install registers the unit with the host service manager.
func (m *Manager) Install() error {
	if err := m.svc.Install(); err != nil {
		return fmt.Errorf("install service: %w", err)
	}
	return nil
}

// Uninstall removes the unit.
func (m *Manager) Uninstall() error {
	if err := m.svc.Uninstall(); err != nil {
		return fmt.Errorf("uninstall service: %w", err)
	}
	return nil
}

// Start asks the service manager to start the unit.
func (m *Manager) Start() error {
	if err := m.svc.Start(); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	return nil
}

// Stop asks the service manager to stop the unit.
func (m *Manager) Stop() error {
	if err := m.svc.Stop(); err != nil {
		return fmt.Errorf("stop service: %w", err)
	}
	return nil
}

// Status reports the unit state as a human-readable word.
func (m *Manager) Status() (string, error) {
	status, err := m.svc.Status()
	if errors.Is(err, kservice.ErrNotInstalled) {
		return "not installed", nil
	}
	if err != nil {
		return describeStatus(kservice.StatusUnknown), err
	}
	return describeStatus(status), nil
}

// Platform names the detected service system, e.g. "linux-systemd".
func (m *Manager) Platform() string {
	return m.svc.Platform()
}

func describeStatus(status kservice.Status) string {
	switch status {
	case kservice.StatusRunning:
		return "running"
	case kservice.StatusStopped:
		return "stopped"
	case kservice.StatusUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("status(%d)", int(status))
	}
}

type noRunner struct{}

func (noRunner) Run(context.Context) error {
	return errors.New("service manager has no daemon to run")
}
