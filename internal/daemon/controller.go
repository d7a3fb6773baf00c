package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"hoard/internal/backup"
	"hoard/internal/device"
	"hoard/internal/logging"
)

// CycleState tracks whether the disk currently in the drive has been copied.
type CycleState int

const (
	// Idle means no backup has succeeded for the current insertion.
	Idle CycleState = iota
	// Copied means the current insertion is backed up; nothing happens until
	// the disk is removed.
	Copied
)

func (s CycleState) String() string {
	if s == Copied {
		return "copied"
	}
	return "idle"
}

// Transition names what Step did, for logging.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionBackedUp
	TransitionBackupFailed
	TransitionRemoved
)

// Step applies one poll to the cycle state. attempt runs a backup and reports
// success; it is called only for a present disk in the Idle state, so a disk
// is never backed up twice during one insertion.
func Step(state CycleState, present bool, attempt func() bool) (CycleState, Transition) {
	switch {
	case present && state == Idle:
		if attempt() {
			return Copied, TransitionBackedUp
		}
		return Idle, TransitionBackupFailed
	case present:
		return Copied, TransitionNone
	case state == Copied:
		return Idle, TransitionRemoved
	default:
		return Idle, TransitionNone
	}
}

// Locator resolves device roles.
type Locator interface {
	Locate(ctx context.Context) (device.Roles, error)
}

// PresenceDetector reports whether the drive holds a readable disk.
type PresenceDetector interface {
	Present(ctx context.Context, drive string) bool
}

// Backupper runs one backup attempt.
type Backupper interface {
	Run(ctx context.Context, drive, target string) (backup.Report, error)
}

// Controller is the polling loop. It owns the cycle state; nothing else reads
// or writes it.
type Controller struct {
	locator  Locator
	detector PresenceDetector
	backup   Backupper
	clock    clockwork.Clock
	logger   *slog.Logger

	readyInterval   time.Duration
	waitingInterval time.Duration
	wake            <-chan struct{}

	// readiness changes are logged at info; repeats drop to debug.
	readiness readiness
}

type readiness int

const (
	readinessUnknown readiness = iota
	readinessWaiting
	readinessReady
)

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithClock overrides the clock used for poll delays.
func WithClock(clock clockwork.Clock) ControllerOption {
	return func(c *Controller) { c.clock = clock }
}

// WithIntervals sets the poll delays while ready and while waiting for
// devices.
func WithIntervals(ready, waiting time.Duration) ControllerOption {
	return func(c *Controller) {
		c.readyInterval = ready
		c.waitingInterval = waiting
	}
}

// WithWake lets an external event source cut the current delay short.
func WithWake(wake <-chan struct{}) ControllerOption {
	return func(c *Controller) { c.wake = wake }
}

// NewController wires a controller from its collaborators.
func NewController(locator Locator, detector PresenceDetector, backupper Backupper, logger *slog.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		locator:         locator,
		detector:        detector,
		backup:          backupper,
		clock:           clockwork.NewRealClock(),
		logger:          logging.NewComponentLogger(logger, "controller"),
		readyInterval:   2 * time.Second,
		waitingInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run polls until ctx is cancelled. It never returns for any other reason.
func (c *Controller) Run(ctx context.Context) error {
	state := Idle
	for {
		var delay time.Duration
		state, delay = c.Poll(ctx, state)

		timer := c.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.Chan():
		case <-c.wake:
			timer.Stop()
			c.logger.Debug("woken by device event")
		}
	}
}

// Poll runs one iteration and returns the next state and the delay before the
// following poll. Errors and panics never escape; the state is kept and the
// next poll retries.
func (c *Controller) Poll(ctx context.Context, state CycleState) (next CycleState, delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(c.logger, "poll aborted unexpectedly", "poll_panic",
				logging.Error(fmt.Errorf("%v", r)),
				logging.String("state", state.String()),
			)
			next, delay = state, c.waitingInterval
		}
	}()

	roles, err := c.locator.Locate(ctx)
	if err != nil || !roles.Ready() {
		level := slog.LevelDebug
		if c.readiness != readinessWaiting {
			level = slog.LevelInfo
		}
		c.readiness = readinessWaiting
		c.logger.Log(ctx, level, "waiting for floppy drive and USB stick",
			logging.String("drive", roles.Drive),
			logging.String("target", roles.Target),
			logging.String(logging.FieldEventType, "waiting_for_devices"),
		)
		return c.watchRemoval(ctx, state, roles, err), c.waitingInterval
	}
	if c.readiness != readinessReady {
		c.readiness = readinessReady
		c.logger.Info("floppy drive and USB stick found",
			logging.String(logging.FieldDevice, roles.Drive),
			logging.String("target", roles.Target),
			logging.String(logging.FieldEventType, "devices_ready"),
		)
	}

	present := c.detector.Present(ctx, roles.Drive)
	next, transition := Step(state, present, func() bool {
		c.logger.Info("new floppy disk detected; starting backup",
			logging.String(logging.FieldDevice, roles.Drive),
			logging.String("target", roles.Target),
		)
		report, err := c.backup.Run(ctx, roles.Drive, roles.Target)
		if err != nil {
			logging.WarnWithContext(c.logger, "backup attempt failed; check the disk and USB stick", "backup_failed",
				logging.Error(err),
				logging.String(logging.FieldSessionID, report.Session.ID),
				logging.String(logging.FieldImpact, "disk will be retried on the next poll"),
			)
			return false
		}
		c.logger.Info("backup complete; remove the floppy disk",
			logging.String(logging.FieldSessionID, report.Session.ID),
			logging.String("folder", report.Session.Folder),
			logging.Duration("duration", report.Duration),
			logging.String(logging.FieldEventType, "backup_complete"),
		)
		return true
	})

	switch {
	case transition == TransitionRemoved:
		c.logRemoved()
	case transition == TransitionNone && state == Copied:
		c.logger.Debug("disk already backed up; waiting for removal",
			logging.Args(logging.DecisionAttrs("backup", "skip", "disk copied during this insertion")...)...,
		)
	}
	return next, c.readyInterval
}

// watchRemoval keeps tracking the disk while the stick is missing, so a disk
// swapped during that time is not mistaken for the one already copied. A
// drive that disappeared from a successful enumeration counts as removed;
// enumeration failures and an ambiguous drive keep the state.
func (c *Controller) watchRemoval(ctx context.Context, state CycleState, roles device.Roles, locateErr error) CycleState {
	if state != Copied {
		return state
	}
	present := false
	switch {
	case roles.Drive != "":
		present = c.detector.Present(ctx, roles.Drive)
	case locateErr != nil:
		return state
	}
	next, transition := Step(state, present, func() bool { return false })
	if transition == TransitionRemoved {
		c.logRemoved()
	}
	return next
}

func (c *Controller) logRemoved() {
	c.logger.Info("floppy disk removed; ready for the next one",
		logging.String(logging.FieldEventType, "disk_removed"),
	)
}
