package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittocheck/internal/logger"
	"github.com/marmos91/dittocheck/pkg/config"
	"github.com/marmos91/dittocheck/pkg/handle"
)

func newHandlesCmd(opts *globalOptions) *cobra.Command {
	handlesCmd := &cobra.Command{
		Use:   "handles",
		Short: "Manage the handle-to-path table",
		Args:  cobra.NoArgs,
	}

	withTable := func(cmd *cobra.Command, fn func(handle.Table) error) error {
		if opts.cfg.Handles.Type == "memory" {
			logger.Warn("Handle table type is memory: changes are lost when the command exits")
		}
		table, err := config.CreateHandleTable(cmd.Context(), &opts.cfg.Handles)
		if err != nil {
			return err
		}
		defer closeTable(table)
		return fn(table)
	}

	registerCmd := &cobra.Command{
		Use:   "register <share> <path>",
		Short: "Mint (or return the existing) handle for a path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTable(cmd, func(table handle.Table) error {
				h, err := table.Register(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), h)
				return nil
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered handles in handle order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTable(cmd, func(table handle.Table) error {
				entries, err := table.List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "HANDLE\tSHARE\tPATH")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Handle, e.Share, e.Path)
				}
				return tw.Flush()
			})
		},
	}

	forgetCmd := &cobra.Command{
		Use:   "forget <handle>",
		Short: "Remove a handle so it no longer resolves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTable(cmd, func(table handle.Table) error {
				return table.Forget(cmd.Context(), handle.FileHandle(args[0]))
			})
		},
	}

	handlesCmd.AddCommand(registerCmd, listCmd, forgetCmd)
	return handlesCmd
}
