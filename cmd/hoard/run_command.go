package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hoard/internal/daemon"
	"hoard/internal/service"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the backup daemon in the foreground",
		Long: "Run the backup daemon until interrupted. The same entrypoint is used by the\n" +
			"systemd unit installed with `hoard service install`.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, closer, err := ctx.daemonLogger()
			if err != nil {
				return err
			}
			defer closer.Close()

			d, err := daemon.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			mgr, err := service.New(d, logger, service.Options{ConfigPath: ctx.configPath})
			if err != nil {
				return err
			}
			return mgr.Run()
		},
	}
}
