package main

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"hoard/internal/backup"
	"hoard/internal/config"
	"hoard/internal/mount"
)

func newNextCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "next [backup-root]",
		Short: "Print the folder name the next backup would use",
		Long: "Print the folder the next backup would create. The backup root defaults to\n" +
			"the configured base directory under the stick's mount point.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			root := backup.LayoutFromConfig(cfg).BackupRoot()
			if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
				dev, mounted, err := mount.MountedDevice(cmd.Context(), cfg.Mount.TargetPoint)
				switch {
				case err != nil:
				case mounted:
					fmt.Fprintf(cmd.ErrOrStderr(), "stick %s mounted at %s\n", dev, cfg.Mount.TargetPoint)
				default:
					fmt.Fprintf(cmd.ErrOrStderr(), "note: nothing is mounted at %s; numbering reflects the local directory\n", cfg.Mount.TargetPoint)
				}
			} else {
				root, err = config.ExpandPath(args[0])
				if err != nil {
					return fmt.Errorf("resolve backup root: %w", err)
				}
			}

			seq := backup.NewSequencer(afero.NewOsFs(), cfg.Backup.Tag)
			n, err := seq.Next(root)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), seq.FolderName(n))
			return nil
		},
	}
}
