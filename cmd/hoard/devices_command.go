package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"hoard/internal/device"
	"hoard/internal/textutil"
)

type deviceRow struct {
	Name       string `json:"name"`
	Transport  string `json:"transport"`
	SizeBytes  int64  `json:"size_bytes"`
	Type       string `json:"type"`
	Role       string `json:"role"`
	TargetPath string `json:"target_path,omitempty"`
}

type devicesView struct {
	Devices   []deviceRow `json:"devices"`
	Drive     string      `json:"drive"`
	Target    string      `json:"target"`
	Ambiguous bool        `json:"ambiguous"`
}

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List block devices and the role each would play",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			devices, err := device.NewLsblkEnumerator(cfg.LsblkTimeout()).Enumerate(cmd.Context())
			if err != nil {
				return err
			}
			view := buildDevicesView(devices, device.RulesFromConfig(cfg))
			if asJSON {
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			if len(view.Devices) == 0 {
				fmt.Fprintln(out, "No block devices reported by lsblk")
			} else {
				rows := make([][]string, 0, len(view.Devices))
				for _, d := range view.Devices {
					rows = append(rows, []string{
						d.Name,
						orDash(d.Transport),
						textutil.HumanBytes(d.SizeBytes),
						d.Type,
						d.Role,
						orDash(d.TargetPath),
					})
				}
				var colors cellColors
				if colorEnabled(out) {
					colors = roleColors
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Name", "Transport", "Size", "Type", "Role", "Target Path"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
					colors,
				))
			}
			fmt.Fprintf(out, "Drive:  %s\n", resolvedLabel(view.Drive, view.Ambiguous))
			fmt.Fprintf(out, "Target: %s\n", resolvedLabel(view.Target, view.Ambiguous))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func buildDevicesView(devices []device.BlockDevice, rules device.Rules) devicesView {
	view := devicesView{Devices: make([]deviceRow, 0, len(devices))}
	for _, d := range devices {
		row := deviceRow{
			Name:      d.Name,
			Transport: d.Transport,
			SizeBytes: int64(d.Size),
			Type:      d.Type,
			Role:      rules.RoleOf(d).String(),
		}
		if rules.RoleOf(d) == device.RoleTarget {
			row.TargetPath, _ = rules.TargetPath(d)
		}
		view.Devices = append(view.Devices, row)
	}
	roles, err := device.Classify(devices, rules)
	view.Drive = roles.Drive
	view.Target = roles.Target
	view.Ambiguous = errors.Is(err, device.ErrAmbiguous)
	return view
}

func resolvedLabel(value string, ambiguous bool) string {
	if value != "" {
		return value
	}
	return textutil.Ternary(ambiguous, "unresolved (check for ambiguous candidates)", "unresolved")
}

func roleColors(column int, value string) text.Colors {
	if column != 4 {
		return nil
	}
	switch value {
	case device.RoleDrive.String():
		return text.Colors{text.FgCyan}
	case device.RoleTarget.String():
		return text.Colors{text.FgGreen}
	default:
		return text.Colors{text.Faint}
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
