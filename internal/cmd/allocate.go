package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var allocateCmd = &cobra.Command{
	Use:   "allocate <feature>",
	Short: "Reserve a thread id and ports without provisioning",
	Long: `Allocate the lowest free thread id with its derived port pair and
commit an initializing record. No worktrees or containers are created; use
provision for the full build, or release to give the slot back.`,
	Args: cobra.ExactArgs(1),
	RunE: runAllocate,
}

func init() {
	rootCmd.AddCommand(allocateCmd)
}

func runAllocate(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		rec, err := a.alloc.Allocate(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s thread %d\n", color.New(color.FgGreen).Sprint("Allocated"), rec.ID)
		fmt.Printf("  Branch:   %s\n", rec.Branch)
		fmt.Printf("  Backend:  %d\n", rec.BackendPort)
		fmt.Printf("  Frontend: %d\n", rec.FrontendPort)
		return nil
	})
}
