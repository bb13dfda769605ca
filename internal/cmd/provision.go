package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/weft-sh/weft/internal/provision"
)

var provisionBase string

var provisionCmd = &cobra.Command{
	Use:   "provision <feature>",
	Short: "Create a fully provisioned thread for a feature",
	Long: `Allocate a thread, create a worktree per configured repository on a
shared feature branch, render env files, start the container stack, and run
the data migration. Any failure rolls everything back and frees the slot.`,
	Args: cobra.ExactArgs(1),
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().StringVar(&provisionBase, "base", "main", "base branch for the thread's worktrees")
	rootCmd.AddCommand(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		orch := provision.New(a.alloc, a.provider, a.cfg, a.log)

		result, err := orch.Provision(args[0], provisionBase)
		if err != nil {
			return err
		}

		rec := result.Record
		fmt.Printf("%s thread %d\n", color.New(color.FgGreen).Sprint("Provisioned"), rec.ID)
		fmt.Printf("  Branch:   %s\n", rec.Branch)
		fmt.Printf("  Backend:  http://localhost:%d\n", rec.BackendPort)
		fmt.Printf("  Frontend: http://localhost:%d\n", rec.FrontendPort)
		fmt.Printf("  Worktree: %s\n", rec.WorktreePath)

		for _, w := range result.Warnings {
			fmt.Printf("%s %s\n", color.New(color.FgYellow).Sprint("warning:"), w)
		}
		return nil
	})
}
