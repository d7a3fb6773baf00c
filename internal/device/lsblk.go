package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// lsblkArgs requests the device tree with byte sizes and only the columns
// classification needs.
var lsblkArgs = []string{"--json", "--bytes", "--output", "NAME,TRAN,SIZE,TYPE"}

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// Output implements CommandRunner.
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.Output()
}

// Enumerator lists attached block devices.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]BlockDevice, error)
}

// LsblkEnumerator enumerates devices with lsblk.
type LsblkEnumerator struct {
	Runner  CommandRunner
	Timeout time.Duration
}

// NewLsblkEnumerator returns an enumerator backed by the real lsblk binary.
func NewLsblkEnumerator(timeout time.Duration) *LsblkEnumerator {
	return &LsblkEnumerator{Runner: ExecRunner{}, Timeout: timeout}
}

// Enumerate runs lsblk and decodes its device tree.
func (e *LsblkEnumerator) Enumerate(ctx context.Context) ([]BlockDevice, error) {
	runner := e.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	lsblkCtx := ctx
	var cancel context.CancelFunc
	if e.Timeout > 0 {
		lsblkCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	output, err := runner.Output(lsblkCtx, "lsblk", lsblkArgs...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("lsblk: %w: %s", err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("lsblk: %w", err)
	}
	return ParseLsblk(output)
}

// ParseLsblk decodes `lsblk --json` output. A document without a
// "blockdevices" key is rejected so a truncated or foreign payload never
// reads as "no devices attached".
func ParseLsblk(data []byte) ([]BlockDevice, error) {
	var out lsblkOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode lsblk output: %w", err)
	}
	if out.BlockDevices == nil {
		return nil, errors.New("decode lsblk output: missing blockdevices")
	}
	return *out.BlockDevices, nil
}
