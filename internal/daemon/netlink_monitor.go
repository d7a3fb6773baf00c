package daemon

import (
	"context"
	"log/slog"
	"path"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"hoard/internal/logging"
)

// netlinkMonitor listens for udev events on USB block devices and wakes the
// controller so a plugged stick or inserted disk is noticed before the next
// scheduled poll. It never runs a backup itself.
type netlinkMonitor struct {
	logger *slog.Logger
	wake   chan struct{}

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newNetlinkMonitor(logger *slog.Logger) *netlinkMonitor {
	return &netlinkMonitor{
		logger: logging.NewComponentLogger(logger, "netlink-monitor"),
		// One pending wake-up is enough: the controller re-reads everything.
		wake: make(chan struct{}, 1),
	}
}

// Wake returns the channel the controller selects on.
func (m *netlinkMonitor) Wake() <-chan struct{} {
	if m == nil {
		return nil
	}
	return m.wake
}

// Start begins listening for udev netlink events. Connection failures are
// logged and the controller keeps its fixed poll cadence.
func (m *netlinkMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; relying on polling", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run as root or grant CAP_NET_ADMIN"),
			logging.String(logging.FieldImpact, "devices are noticed at the next poll instead of immediately"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	quit := m.quit
	go func() {
		m.monitorLoop(ctx, quit, queue, errs)
		close(monitorQuit)
	}()

	m.logger.Info("netlink monitor started",
		logging.String(logging.FieldEventType, "netlink_monitor_started"),
	)
	return nil
}

// Stop shuts down the netlink monitor.
func (m *netlinkMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("netlink monitor stopped",
		logging.String(logging.FieldEventType, "netlink_monitor_stopped"),
	)
}

// Running reports whether the netlink monitor is active.
func (m *netlinkMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *netlinkMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}, queue <-chan netlink.UEvent, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "device events may be missed until the next poll"),
			)
		}
	}
}

// buildMatcher matches USB block devices appearing, disappearing, or
// changing media: SUBSYSTEM=block, ID_BUS=usb, ACTION=add|remove|change.
func (m *netlinkMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove|change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"ID_BUS":    "usb",
		},
	})
	return rules
}

func (m *netlinkMonitor) handleEvent(uevent netlink.UEvent) {
	m.logger.Debug("usb block event",
		logging.String("action", string(uevent.Action)),
		logging.String(logging.FieldDevice, extractDeviceName(uevent)),
	)
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// extractDeviceName returns the kernel name from DEVNAME or DEVPATH.
func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return path.Base(devname)
	}
	if devpath := uevent.Env["DEVPATH"]; devpath != "" {
		return path.Base(devpath)
	}
	return ""
}
