package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/weft-sh/weft/internal/registry"
	"github.com/weft-sh/weft/internal/status"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List live threads",
	Long:  `Display every live thread with its ports, status, and running container count.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		svc := status.New(a.store, a.provider, a.log)

		threads, err := svc.List()
		if err != nil {
			return err
		}
		if len(threads) == 0 {
			fmt.Println("No live threads")
			return nil
		}

		fmt.Printf("%-4s %-32s %-7s %-8s %-13s %-10s %s\n",
			"ID", "BRANCH", "BACKEND", "FRONTEND", "STATUS", "CONTAINERS", "CREATED")
		for _, th := range threads {
			fmt.Printf("%-4d %-32s %-7d %-8d %-13s %-10s %s\n",
				th.ID, th.Branch, th.BackendPort, th.FrontendPort,
				statusLabel(th.Status), containerLabel(th.Containers),
				th.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	})
}

func statusLabel(s registry.Status) string {
	switch s {
	case registry.StatusReady, registry.StatusActive:
		return color.New(color.FgGreen).Sprint(string(s))
	case registry.StatusInitializing:
		return color.New(color.FgYellow).Sprint(string(s))
	default:
		return string(s)
	}
}

func containerLabel(count int) string {
	if count == status.ContainersUnknown {
		return color.New(color.FgYellow).Sprint("unknown")
	}
	return fmt.Sprintf("%d", count)
}
