package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/weft-sh/weft/internal/envfile"
	"github.com/weft-sh/weft/internal/registry"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate a legacy registry to the current schema",
	Long: `Rewrite a legacy-schema registry (four service ports per record) in the
current two-port layout. Ids, branches, worktree paths, and creation times
are preserved; ports are recomputed from the id and each live worktree's env
file is re-rendered to match. Safe to re-run: a current-schema registry is
left unchanged.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		fs, ok := a.store.(*registry.FileStore)
		if !ok {
			return fmt.Errorf("migrate applies to the file registry backend, not %q", a.cfg.Registry.Backend)
		}

		timeout := time.Duration(a.cfg.Lock.TimeoutSeconds) * time.Second
		if err := a.gate.Acquire(timeout); err != nil {
			return err
		}
		defer a.gate.Release()

		legacy, err := fs.LegacyOnDisk()
		if err != nil {
			return err
		}
		if !legacy {
			fmt.Println("Registry already uses the current schema")
			return nil
		}

		records, err := fs.Migrate()
		if err != nil {
			return err
		}

		// Re-render env files so ports baked into worktrees match the
		// recomputed pair. Worktrees that no longer exist are skipped.
		for _, rec := range records {
			if _, err := os.Stat(rec.WorktreePath); err != nil {
				continue
			}
			path := filepath.Join(rec.WorktreePath, ".env.thread")
			if err := envfile.Render(path, rec, a.cfg.Env.ParentFile, a.cfg.Env.Allowlist); err != nil {
				fmt.Printf("warning: env file for thread %d: %v\n", rec.ID, err)
			}
		}

		fmt.Printf("Migrated %d records to the current schema\n", len(records))
		return nil
	})
}
