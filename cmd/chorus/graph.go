package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newGraphCommand implements the "graph" subcommand (§6: "render DAG for
// humans"). The interactive/visual DAG renderer itself is out of scope
// (spec.md §1 Non-goals); this prints the same build-order listing the
// engine uses to construct supervisors, which is the part of "rendering
// the graph for humans" that is in scope.
func newGraphCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the task graph in build order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dag, err := loadDAG(flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range dag.BuildOrder() {
				t, _ := dag.Task(name)
				if len(t.DependsOn) == 0 {
					fmt.Fprintf(out, "%s\n", name)
					continue
				}
				fmt.Fprintf(out, "%s -> %v\n", name, t.DependsOn)
			}
			return nil
		},
	}
}
