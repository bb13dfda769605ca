package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weft-sh/weft/internal/status"
)

var infoCmd = &cobra.Command{
	Use:   "info <id>",
	Short: "Show one thread in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	id, err := parseThreadID(args[0])
	if err != nil {
		return err
	}

	return withApp(func(a *app) error {
		svc := status.New(a.store, a.provider, a.log)

		th, err := svc.Info(id)
		if err != nil {
			return err
		}

		fmt.Printf("Thread %d\n", th.ID)
		fmt.Printf("  Branch:     %s\n", th.Branch)
		fmt.Printf("  Status:     %s\n", statusLabel(th.Status))
		fmt.Printf("  Backend:    http://localhost:%d\n", th.BackendPort)
		fmt.Printf("  Frontend:   http://localhost:%d\n", th.FrontendPort)
		fmt.Printf("  Worktree:   %s\n", th.WorktreePath)
		fmt.Printf("  Containers: %s\n", containerLabel(th.Containers))
		fmt.Printf("  Created:    %s\n", th.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		return nil
	})
}
