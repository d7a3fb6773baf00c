package main

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"hoard/internal/backup"
	"hoard/internal/textutil"
)

func newBackupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Back up the inserted disk once, ignoring the daemon's cycle state",
		Long: "Back up the inserted disk to the next numbered folder on the stick.\n" +
			"Refuses to run while the daemon holds its lock; both use the same mount points.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock := flock.New(cfg.Paths.LockFile)
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return errors.New("hoard daemon is running; stop it before a manual backup")
			}
			defer lock.Unlock()

			logger, closer, err := ctx.daemonLogger()
			if err != nil {
				return err
			}
			defer closer.Close()

			roles, err := ctx.locate(cmd.Context(), logger)
			if !roles.Ready() {
				if err != nil {
					return fmt.Errorf("locate devices: %w", err)
				}
				return fmt.Errorf("devices not ready (drive=%s target=%s)", orDash(roles.Drive), orDash(roles.Target))
			}

			orchestrator := backup.NewOrchestrator(backup.LayoutFromConfig(cfg), logger)
			report, err := orchestrator.Run(cmd.Context(), roles.Drive, roles.Target)

			out := cmd.OutOrStdout()
			if report.Session.Folder != "" {
				fmt.Fprintf(out, "Folder:   %s\n", report.Session.Folder)
			}
			fmt.Fprintf(out, "Files:    %d\n", report.Copy.Files)
			fmt.Fprintf(out, "Dirs:     %d\n", report.Copy.Dirs)
			fmt.Fprintf(out, "Bytes:    %s\n", textutil.HumanBytes(report.Copy.Bytes))
			fmt.Fprintf(out, "Failures: %d\n", len(report.Copy.Failures))
			for _, failure := range report.Copy.Failures {
				fmt.Fprintf(out, "  - %s\n", failure.Error())
			}
			if err != nil {
				if errors.Is(err, backup.ErrCopyIncomplete) {
					return fmt.Errorf("backup incomplete: %w", err)
				}
				return fmt.Errorf("backup failed: %w", err)
			}
			return nil
		},
	}
}
