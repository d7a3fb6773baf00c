package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"hoard/internal/config"
	"hoard/internal/logging"
)

// ErrAmbiguous reports that more than one device qualified for a role.
var ErrAmbiguous = errors.New("ambiguous device role")

// Rules holds the classification thresholds.
type Rules struct {
	DevDir string
	// DriveMaxBytes is the exclusive upper bound for the floppy drive.
	DriveMaxBytes int64
	// TargetMinBytes is the exclusive lower bound for the backup stick.
	TargetMinBytes int64
	// AllowLastMatch resolves ambiguity by keeping the last candidate in
	// enumeration order instead of leaving the role unresolved.
	AllowLastMatch bool
}

// RulesFromConfig extracts classification rules from configuration.
func RulesFromConfig(cfg *config.Config) Rules {
	return Rules{
		DevDir:         cfg.Device.DevDir,
		DriveMaxBytes:  cfg.Device.DriveMaxBytes,
		TargetMinBytes: cfg.Device.TargetMinBytes,
		AllowLastMatch: cfg.Device.AllowLastMatch,
	}
}

// Role is the outcome of classifying a single device.
type Role int

const (
	RoleNone Role = iota
	RoleDrive
	RoleTarget
)

func (r Role) String() string {
	switch r {
	case RoleDrive:
		return "drive"
	case RoleTarget:
		return "target"
	default:
		return "none"
	}
}

// RoleOf classifies a top-level device by transport and size alone. A
// RoleTarget device may still yield no mountable path, see TargetPath.
func (r Rules) RoleOf(d BlockDevice) Role {
	if !d.IsUSB() {
		return RoleNone
	}
	size := int64(d.Size)
	switch {
	case size >= 0 && size < r.DriveMaxBytes:
		return RoleDrive
	case size > r.TargetMinBytes:
		return RoleTarget
	default:
		return RoleNone
	}
}

// TargetPath returns the path to mount for a backup stick: its first
// partition, or the whole device when it is an unpartitioned disk.
func (r Rules) TargetPath(d BlockDevice) (string, bool) {
	if len(d.Children) > 0 {
		if part, ok := d.FirstPartition(); ok {
			return r.path(part.Name), true
		}
		return "", false
	}
	if d.Type == TypeDisk {
		return r.path(d.Name), true
	}
	return "", false
}

func (r Rules) path(name string) string {
	dir := r.DevDir
	if strings.TrimSpace(dir) == "" {
		dir = "/dev"
	}
	return filepath.Join(dir, name)
}

// Classify assigns roles from a device list. It is pure: the same list always
// yields the same result. When a role has more than one candidate it is left
// empty and the returned error wraps ErrAmbiguous, unless AllowLastMatch is
// set. The other role is still reported.
func Classify(devices []BlockDevice, rules Rules) (Roles, error) {
	var drives, targets []string
	for _, d := range devices {
		switch rules.RoleOf(d) {
		case RoleDrive:
			drives = append(drives, d.Name)
		case RoleTarget:
			if path, ok := rules.TargetPath(d); ok {
				targets = append(targets, path)
			}
		}
	}

	var roles Roles
	var errs []error
	if drive, err := pick("drive", drives, rules.AllowLastMatch); err != nil {
		errs = append(errs, err)
	} else {
		roles.Drive = drive
	}
	if target, err := pick("target", targets, rules.AllowLastMatch); err != nil {
		errs = append(errs, err)
	} else {
		roles.Target = target
	}
	return roles, errors.Join(errs...)
}

func pick(role string, candidates []string, lastWins bool) (string, error) {
	switch {
	case len(candidates) == 0:
		return "", nil
	case len(candidates) == 1 || lastWins:
		return candidates[len(candidates)-1], nil
	default:
		return "", fmt.Errorf("%w: %d %s candidates (%s)", ErrAmbiguous, len(candidates), role, strings.Join(candidates, ", "))
	}
}

// Locator resolves device roles once per poll.
type Locator struct {
	enumerator Enumerator
	rules      Rules
	logger     *slog.Logger
}

// NewLocator builds a locator. A nil enumerator uses lsblk.
func NewLocator(enumerator Enumerator, rules Rules, logger *slog.Logger) *Locator {
	if enumerator == nil {
		enumerator = NewLsblkEnumerator(0)
	}
	return &Locator{
		enumerator: enumerator,
		rules:      rules,
		logger:     logging.NewComponentLogger(logger, "device-locator"),
	}
}

// Locate enumerates devices and classifies them. On enumeration or decode
// failure it returns empty roles and the cause; callers treat that as
// "devices not ready". Ambiguity is logged and returned alongside the roles
// that did resolve.
func (l *Locator) Locate(ctx context.Context) (Roles, error) {
	devices, err := l.enumerator.Enumerate(ctx)
	if err != nil {
		logging.WarnWithContext(l.logger, "device enumeration failed; will retry", "device_enumeration_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that lsblk is installed and util-linux supports --json"),
			logging.String(logging.FieldImpact, "devices treated as not ready for this poll"),
		)
		return Roles{}, err
	}

	roles, err := Classify(devices, l.rules)
	if err != nil {
		logging.WarnWithContext(l.logger, "device role ambiguous; role left unresolved", "device_ambiguous",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "detach extra USB devices or set device.allow_last_match"),
			logging.String(logging.FieldImpact, "no backup until exactly one drive and one stick are attached"),
		)
	}
	l.logger.Debug("device roles resolved",
		logging.String("drive", roles.Drive),
		logging.String("target", roles.Target),
		logging.Int("devices", len(devices)),
	)
	return roles, err
}
