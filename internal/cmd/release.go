package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var releaseCmd = &cobra.Command{
	Use:   "release <id>",
	Short: "Remove a thread's registry record without resource cleanup",
	Long: `Remove the record for a thread id, making the slot immediately
reusable. External resources are not touched; use teardown for full cleanup.
Releasing an absent id is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runRelease,
}

func init() {
	rootCmd.AddCommand(releaseCmd)
}

func runRelease(cmd *cobra.Command, args []string) error {
	id, err := parseThreadID(args[0])
	if err != nil {
		return err
	}

	return withApp(func(a *app) error {
		if err := a.alloc.Release(id); err != nil {
			return err
		}
		fmt.Printf("Released thread %d\n", id)
		return nil
	})
}
