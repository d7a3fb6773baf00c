// Package deps checks that the host commands hoard shells out to exist.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names a host command and what it is used for.
type Requirement struct {
	Command string
	Purpose string
}

// Status is the lookup result for one requirement.
type Status struct {
	Requirement
	Available bool
	// Path is the resolved executable when Available.
	Path   string
	Detail string
}

// HostTools lists the commands the daemon cannot run without.
func HostTools() []Requirement {
	return []Requirement{
		{Command: "lsblk", Purpose: "enumerate block devices"},
		{Command: "fdisk", Purpose: "probe the floppy drive for a disk"},
		{Command: "mount", Purpose: "mount the floppy and the stick"},
		{Command: "umount", Purpose: "release the mount points"},
	}
}

// Check resolves each requirement on PATH.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		status := Status{Requirement: req}
		if req.Command == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(req.Command)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}

// Missing filters statuses down to unavailable commands.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available {
			missing = append(missing, s)
		}
	}
	return missing
}
