package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hoard/internal/service"
)

func newServiceCommand(ctx *commandContext) *cobra.Command {
	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the hoard system service",
	}

	actions := []struct {
		use   string
		short string
		done  string
		run   func(*service.Manager) error
	}{
		{"install", "Install the systemd unit (restart always, run as root)", "Service installed", (*service.Manager).Install},
		{"uninstall", "Remove the systemd unit", "Service uninstalled", (*service.Manager).Uninstall},
		{"start", "Start the installed service", "Service started", (*service.Manager).Start},
		{"stop", "Stop the running service", "Service stopped", (*service.Manager).Stop},
	}
	for _, action := range actions {
		serviceCmd.AddCommand(&cobra.Command{
			Use:   action.use,
			Short: action.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, err := ctx.serviceManager(cmd)
				if err != nil {
					return err
				}
				if err := action.run(mgr); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), action.done)
				return nil
			},
		})
	}

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the service status",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := ctx.serviceManager(cmd)
			if err != nil {
				return err
			}
			status, err := mgr.Status()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Platform: %s\n", mgr.Platform())
			fmt.Fprintf(out, "Status:   %s\n", status)
			return err
		},
	})

	return serviceCmd
}

// serviceManager builds a control-only manager. The unit runs `hoard run`
// with the config file that was resolved for this invocation.
func (c *commandContext) serviceManager(cmd *cobra.Command) (*service.Manager, error) {
	if _, err := c.ensureConfig(); err != nil {
		return nil, err
	}
	return service.New(nil, c.commandLogger(cmd), service.Options{ConfigPath: c.configPath})
}
