package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittocheck/pkg/config"
)

func newInitCmd() *cobra.Command {
	var force bool
	var path string

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				written, err := config.InitConfig(force)
				if err != nil {
					return err
				}
				path = written
			} else if err := config.InitConfigToPath(path, force); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")
	initCmd.Flags().StringVar(&path, "path", "", "Write to this path instead of the default location")

	return initCmd
}
