package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hoard/internal/config"
	"hoard/internal/testsupport"
)

const (
	floppyBytes = 1474560
	stickBytes  = 16 * 1024 * 1024 * 1024
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

// lsblkScript prints a fixed device list: a USB floppy drive as sda and a
// partitioned USB stick as sdb, plus an internal SATA disk.
func lsblkScript() string {
	return fmt.Sprintf(`cat <<'JSON'
{"blockdevices": [
  {"name": "nvme0n1", "tran": "nvme", "size": 512110190592, "type": "disk",
   "children": [{"name": "nvme0n1p1", "tran": null, "size": 536870912, "type": "part"}]},
  {"name": "sda", "tran": "usb", "size": %d, "type": "disk"},
  {"name": "sdb", "tran": "usb", "size": %d, "type": "disk",
   "children": [{"name": "sdb1", "tran": null, "size": %d, "type": "part"}]}
]}
JSON`, floppyBytes, stickBytes, stickBytes-1048576)
}

func setupCLITestEnv(t *testing.T, scripts map[string]string, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	merged := map[string]string{
		"lsblk":  lsblkScript(),
		"fdisk":  "",
		"mount":  "",
		"umount": "",
	}
	for name, body := range scripts {
		merged[name] = body
	}
	opts = append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries(merged)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Logging.Format = "json"

	configPath := filepath.Join(testsupport.BaseDir(cfg), "hoard.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    testsupport.BaseDir(cfg),
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
