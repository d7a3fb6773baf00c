package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// TransportUSB is the lsblk TRAN value for USB-attached devices.
	TransportUSB = "usb"
	// TypeDisk and TypePartition are the lsblk TYPE values hoard cares about.
	TypeDisk      = "disk"
	TypePartition = "part"
)

// BlockDevice is one node of the lsblk device tree.
type BlockDevice struct {
	Name      string        `json:"name"`
	Transport string        `json:"tran"`
	Size      Size          `json:"size"`
	Type      string        `json:"type"`
	Children  []BlockDevice `json:"children,omitempty"`
}

// IsUSB reports whether the device is attached over USB.
func (d BlockDevice) IsUSB() bool {
	return strings.EqualFold(strings.TrimSpace(d.Transport), TransportUSB)
}

// FirstPartition returns the first child of type "part".
func (d BlockDevice) FirstPartition() (BlockDevice, bool) {
	for _, child := range d.Children {
		if child.Type == TypePartition {
			return child, true
		}
	}
	return BlockDevice{}, false
}

// Size is a byte count. lsblk emits it as a number with --bytes, but older
// util-linux releases quote it, and devices without media report null.
type Size int64

// UnmarshalJSON accepts numbers, numeric strings, and null.
func (s *Size) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("size: %w", err)
		}
		raw = strings.TrimSpace(text)
		if raw == "" {
			*s = 0
			return nil
		}
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("size %q: %w", raw, err)
	}
	*s = Size(value)
	return nil
}

// lsblkOutput is the root object of `lsblk --json`. BlockDevices is a pointer
// so a missing key can be told apart from an empty list.
type lsblkOutput struct {
	BlockDevices *[]BlockDevice `json:"blockdevices"`
}

// Roles is the classification result for one poll. Empty fields are
// unresolved.
type Roles struct {
	// Drive is the bare kernel name of the floppy drive, e.g. "sda".
	Drive string
	// Target is the device path to mount as the backup stick, e.g. "/dev/sdb1".
	Target string
}

// Ready reports whether both roles resolved.
func (r Roles) Ready() bool {
	return r.Drive != "" && r.Target != ""
}
