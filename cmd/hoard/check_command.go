package main

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"hoard/internal/deps"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify host commands, privileges, and the daemon lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := deps.Check(deps.HostTools())
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				detail := s.Path
				if !s.Available {
					detail = s.Detail
				}
				rows = append(rows, []string{s.Command, yesNo(s.Available), s.Purpose, detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Command", "Found", "Purpose", "Detail"}, rows, nil, nil))

			fmt.Fprintf(out, "Root:    %s\n", yesNo(os.Geteuid() == 0))

			lock := flock.New(cfg.Paths.LockFile)
			locked, err := lock.TryLock()
			switch {
			case err != nil:
				fmt.Fprintf(out, "Daemon:  unknown (%v)\n", err)
			case locked:
				_ = lock.Unlock()
				fmt.Fprintln(out, "Daemon:  not running")
			default:
				fmt.Fprintln(out, "Daemon:  running")
			}

			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required command(s) missing", len(missing))
			}
			return nil
		},
	}
}
