package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weft-sh/weft/internal/registry"
)

var setStatusCmd = &cobra.Command{
	Use:   "set-status <id> <status>",
	Short: "Set a thread's lifecycle status",
	Args:  cobra.ExactArgs(2),
	RunE:  runSetStatus,
}

func init() {
	rootCmd.AddCommand(setStatusCmd)
}

func runSetStatus(cmd *cobra.Command, args []string) error {
	id, err := parseThreadID(args[0])
	if err != nil {
		return err
	}
	status, err := registry.ParseStatus(args[1])
	if err != nil {
		return err
	}

	return withApp(func(a *app) error {
		if err := a.alloc.UpdateStatus(id, status); err != nil {
			return err
		}
		fmt.Printf("Thread %d is now %s\n", id, status)
		return nil
	})
}
