package main

import (
	"fmt"

	"github.com/chorusdev/chorus/internal/upgrade"
	"github.com/spf13/cobra"
)

// repoOwner/repoName name where release checks are fetched from (§6
// "upgrade (self-update)").
const (
	repoOwner = "chorusdev"
	repoName  = "chorus"
)

// newUpgradeCommand implements the "upgrade" subcommand (§6): checks for
// a newer release, gated to at most once per the persisted TTL
// (SUPPLEMENTED FEATURES #2).
func newUpgradeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Check for a newer release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := upgrade.NewStore()
			if err != nil {
				return err
			}
			checker := upgrade.NewGitHubChecker(repoOwner, repoName)

			result, err := upgrade.Check(cmd.Context(), store, checker, version)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.UpdateAvailable {
				fmt.Fprintf(out, "a new version is available: %s (current: %s)\n", result.LatestVersion, result.CurrentVersion)
			} else {
				fmt.Fprintf(out, "up to date: %s\n", result.CurrentVersion)
			}
			return nil
		},
	}
}
