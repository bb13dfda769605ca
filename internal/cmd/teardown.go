package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/weft-sh/weft/internal/teardown"
)

var teardownForce bool

var teardownCmd = &cobra.Command{
	Use:   "teardown <id>",
	Short: "Tear down a thread and reclaim its resources",
	Long: `Stop and remove the thread's containers, volumes, and network, remove
its worktrees and branches, and free the slot. Each step is best-effort:
failures are reported as warnings and the remaining steps still run.`,
	Args: cobra.ExactArgs(1),
	RunE: runTeardown,
}

func init() {
	teardownCmd.Flags().BoolVarP(&teardownForce, "force", "f", false,
		"sweep container resources even when no registry record exists")
	rootCmd.AddCommand(teardownCmd)
}

func runTeardown(cmd *cobra.Command, args []string) error {
	id, err := parseThreadID(args[0])
	if err != nil {
		return err
	}

	return withApp(func(a *app) error {
		orch := teardown.New(a.store, a.alloc, a.provider, a.cfg, a.log)

		summary, err := orch.Teardown(id, teardownForce)
		for _, st := range summary.Steps {
			if st.Warning != nil {
				fmt.Printf("  %s %s: %v\n", color.New(color.FgYellow).Sprint("!"), st.Name, st.Warning)
			} else {
				fmt.Printf("  %s %s\n", color.New(color.FgGreen).Sprint("✓"), st.Name)
			}
		}
		if err != nil {
			return fmt.Errorf("registry record for thread %d could not be removed: %w", id, err)
		}

		if summary.RegistryRemoved {
			fmt.Printf("%s thread %d\n", color.New(color.FgGreen).Sprint("Removed"), id)
		} else {
			fmt.Printf("No record for thread %d, nothing to do\n", id)
		}
		return nil
	})
}
