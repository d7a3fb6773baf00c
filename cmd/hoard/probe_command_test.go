package main

import (
	"testing"

	"hoard/internal/testsupport"
)

func TestProbeReportsDisk(t *testing.T) {
	tests := []struct {
		name  string
		fdisk string
		want  string
	}{
		{name: "readable disk", fdisk: "", want: "Disk:   yes"},
		{name: "empty drive", fdisk: "echo 'cannot open' >&2; exit 1", want: "Disk:   no"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupCLITestEnv(t, map[string]string{"fdisk": tt.fdisk}, testsupport.WithDeviceNodes("sda"))

			out, _, err := runCLI(t, []string{"probe"}, env.configPath)
			if err != nil {
				t.Fatalf("probe: %v", err)
			}
			requireContains(t, out, tt.want)
			requireContains(t, out, env.cfg.DevicePath("sda"))
		})
	}
}

func TestProbeWithoutDrive(t *testing.T) {
	env := setupCLITestEnv(t, map[string]string{"lsblk": `echo '{"blockdevices": []}'`})

	_, _, err := runCLI(t, []string{"probe"}, env.configPath)
	if err == nil {
		t.Fatal("expected error without a floppy drive")
	}
	requireContains(t, err.Error(), "no USB floppy drive attached")
}
