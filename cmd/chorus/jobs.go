package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newJobsCommand implements the "list jobs" subcommand (§6): print every
// task with its simplified dependencies, reusing graph.DAG.FormatJobs
// (SPEC_FULL.md SUPPLEMENTED FEATURES #3).
func newJobsCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List every task and its simplified dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dag, err := loadDAG(flags)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), dag.FormatJobs())
			return nil
		},
	}
}
