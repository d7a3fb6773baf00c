package main

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestDevicesJSON(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, _, err := runCLI(t, []string{"devices", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("devices --json: %v", err)
	}
	var view devicesView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(view.Devices) != 3 {
		t.Fatalf("expected 3 devices, got %d", len(view.Devices))
	}
	if view.Drive != "sda" {
		t.Fatalf("drive = %q, want sda", view.Drive)
	}
	if want := filepath.Join(env.cfg.Device.DevDir, "sdb1"); view.Target != want {
		t.Fatalf("target = %q, want %q", view.Target, want)
	}
	if view.Ambiguous {
		t.Fatal("expected unambiguous roles")
	}
	roles := map[string]string{}
	for _, d := range view.Devices {
		roles[d.Name] = d.Role
	}
	if roles["nvme0n1"] != "none" || roles["sda"] != "drive" || roles["sdb"] != "target" {
		t.Fatalf("unexpected roles: %v", roles)
	}
}

func TestDevicesTableReportsAmbiguity(t *testing.T) {
	twoDrives := `cat <<'JSON'
{"blockdevices": [
  {"name": "sda", "tran": "usb", "size": 1474560, "type": "disk"},
  {"name": "sdc", "tran": "usb", "size": 1474560, "type": "disk"}
]}
JSON`
	env := setupCLITestEnv(t, map[string]string{"lsblk": twoDrives})

	out, _, err := runCLI(t, []string{"devices"}, env.configPath)
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	requireContains(t, out, "sdc")
	requireContains(t, out, "1.4 MiB")
	requireContains(t, out, "Drive:  unresolved (check for ambiguous candidates)")
}

func TestDevicesFailsWhenLsblkFails(t *testing.T) {
	env := setupCLITestEnv(t, map[string]string{"lsblk": "echo boom >&2; exit 2"})

	if _, _, err := runCLI(t, []string{"devices"}, env.configPath); err == nil {
		t.Fatal("expected lsblk failure to surface")
	}
}
