package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"hoard/internal/medium"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check whether the floppy drive holds a readable disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.commandLogger(cmd)
			roles, err := ctx.locate(cmd.Context(), logger)
			if roles.Drive == "" {
				if err != nil {
					return fmt.Errorf("locate floppy drive: %w", err)
				}
				return errors.New("no USB floppy drive attached")
			}

			detector := medium.NewDetector(cfg.Device.DevDir, logger, medium.WithTimeout(cfg.ProbeTimeout()))
			present := detector.Present(cmd.Context(), roles.Drive)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Drive:  %s\n", cfg.DevicePath(roles.Drive))
			fmt.Fprintf(out, "Disk:   %s\n", yesNo(present))
			return nil
		},
	}
}
