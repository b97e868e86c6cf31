package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRepairCmd(opts *globalOptions) *cobra.Command {
	var dryRun bool

	repairCmd := &cobra.Command{
		Use:   "repair <path>",
		Short: "Reset permissions of a corrupted path and run its recovery trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, table, err := opts.newVerifier(cmd, nil)
			if err != nil {
				return err
			}
			defer closeTable(table)

			path := args[0]
			out := cmd.OutOrStdout()

			if dryRun {
				if !v.DetectCorruption(path) {
					fmt.Fprintf(out, "%s: not corrupted, nothing to do\n", path)
					return nil
				}
				fmt.Fprintf(out, "Action: reset permissions of %s (file %#o, directory %#o)\n",
					path, opts.cfg.Verifier.FileRepairMode, opts.cfg.Verifier.DirectoryRepairMode)
				fmt.Fprintln(out, "dry-run complete")
				return nil
			}

			if !v.RepairCorruption(path) {
				fmt.Fprintf(out, "%s: repair failed\n", path)
				return ErrCheckFailed
			}
			fmt.Fprintf(out, "%s: ok\n", path)
			return nil
		},
	}
	repairCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Don't modify anything; show planned changes")

	return repairCmd
}
