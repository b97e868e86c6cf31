package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittocheck/pkg/handle"
)

func newVerifyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <path>",
		Short: "Apply file or directory invariants to a single path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, table, err := opts.newVerifier(cmd, nil)
			if err != nil {
				return err
			}
			defer closeTable(table)

			return printResult(cmd.OutOrStdout(), v.VerifyPath(args[0]))
		},
	}
}

func newVerifyHandleCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-handle <handle>",
		Short: "Resolve a handle and apply handle invariants to its path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, table, err := opts.newVerifier(cmd, nil)
			if err != nil {
				return err
			}
			defer closeTable(table)

			return printResult(cmd.OutOrStdout(), v.VerifyHandle(handle.FileHandle(args[0])))
		},
	}
}

func newScanCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Verify the whole tree under the configured root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, table, err := opts.newVerifier(cmd, nil)
			if err != nil {
				return err
			}
			defer closeTable(table)

			return printResult(cmd.OutOrStdout(), v.VerifyState())
		},
	}
}

func newDetectCmd(opts *globalOptions) *cobra.Command {
	var isHandle bool

	detectCmd := &cobra.Command{
		Use:   "detect <path>",
		Short: "Run the corruption probe on a path (or handle with --handle)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, table, err := opts.newVerifier(cmd, nil)
			if err != nil {
				return err
			}
			defer closeTable(table)

			var corrupted bool
			if isHandle {
				corrupted = v.DetectHandleCorruption(handle.FileHandle(args[0]))
			} else {
				corrupted = v.DetectCorruption(args[0])
			}

			if corrupted {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: corrupted\n", args[0])
				return ErrCheckFailed
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	}
	detectCmd.Flags().BoolVar(&isHandle, "handle", false, "Treat the argument as a file handle")

	return detectCmd
}
