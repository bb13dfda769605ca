// Package provision builds a thread end to end: identity, worktrees, env
// files, containers, data migration. The build runs as an ordered list of
// steps, each paired with a compensating rollback; any step failure unwinds
// the completed steps in reverse and releases the id last, so a failed
// provision leaves no trace in the registry or on the host.
package provision

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/weft-sh/weft/internal/allocator"
	"github.com/weft-sh/weft/internal/config"
	"github.com/weft-sh/weft/internal/envfile"
	wefterrors "github.com/weft-sh/weft/internal/errors"
	"github.com/weft-sh/weft/internal/logging"
	"github.com/weft-sh/weft/internal/registry"
	"github.com/weft-sh/weft/internal/resource"
)

// envFileName is the rendered env file's name inside each worktree.
const envFileName = ".env.thread"

// Orchestrator provisions threads.
type Orchestrator struct {
	alloc    *allocator.Allocator
	provider resource.Provider
	cfg      config.Config
	log      *logging.Logger
}

// New creates an Orchestrator.
func New(alloc *allocator.Allocator, provider resource.Provider, cfg config.Config, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		alloc:    alloc,
		provider: provider,
		cfg:      cfg,
		log:      log,
	}
}

// Result is a successful provision: the ready record, plus any non-fatal
// warnings raised along the way (currently only the health-wait timeout).
type Result struct {
	Record   registry.Record
	Warnings []string
}

// step is one forward transition with its compensating action. rollback may
// be nil when the step leaves nothing behind that later steps don't own.
type step struct {
	name     string
	run      func() error
	rollback func()
}

// Provision allocates a thread for feature and builds its resources:
// one worktree per configured repository on a shared new branch off
// baseBranch, a rendered env file per worktree, the compose stack, and the
// data migration. On any step failure the completed steps are rolled back in
// reverse, the id is released, and a ProvisioningError naming the step is
// returned.
func (o *Orchestrator) Provision(feature, baseBranch string) (Result, error) {
	rec, err := o.alloc.Allocate(feature)
	if err != nil {
		return Result{}, err
	}
	log := o.log.WithThread(rec.ID)
	log.Info("provisioning thread", "branch", rec.Branch, "base", baseBranch)

	var (
		worktrees []threadWorktree
		warnings  []string
	)

	steps := []step{
		{
			name: "create worktrees",
			run: func() error {
				var err error
				worktrees, err = o.createWorktrees(rec, baseBranch)
				return err
			},
			rollback: func() { o.removeWorktrees(rec, worktrees) },
		},
		{
			name: "render env files",
			run:  func() error { return o.renderEnvFiles(rec, worktrees) },
			// Rendered files live inside the worktrees; their rollback
			// removes them.
		},
		{
			name: "start containers",
			run:  func() error { return o.provider.StartContainers(rec) },
			rollback: func() {
				if err := o.provider.StopContainers(rec); err != nil {
					log.Warn("rollback: stop containers failed", "error", err)
				}
				if err := o.provider.RemoveVolumes(rec.ID); err != nil {
					log.Warn("rollback: remove volumes failed", "error", err)
				}
				if err := o.provider.RemoveNetwork(rec.ID); err != nil {
					log.Warn("rollback: remove network failed", "error", err)
				}
			},
		},
		{
			name: "wait for services",
			run: func() error {
				timeout := time.Duration(o.cfg.Health.TimeoutSeconds) * time.Second
				if err := o.provider.WaitHealthy(rec, timeout); err != nil {
					// Slow services are the operator's problem to watch, not
					// a reason to unwind a thread that may be seconds from
					// healthy.
					warnings = append(warnings, err.Error())
					log.Warn("services not confirmed healthy", "error", err)
				}
				return nil
			},
		},
		{
			name: "run migration",
			run:  func() error { return o.provider.RunMigration(rec) },
		},
		{
			name: "mark ready",
			run:  func() error { return o.alloc.UpdateStatus(rec.ID, registry.StatusReady) },
		},
	}

	if err := o.runSteps(rec.ID, steps); err != nil {
		return Result{}, err
	}

	rec.Status = registry.StatusReady
	log.Info("thread ready", "warnings", len(warnings))
	return Result{Record: rec, Warnings: warnings}, nil
}

// runSteps executes steps in order. On failure it runs the rollbacks of the
// completed steps in reverse, releases the id last so the slot is reusable
// immediately, and wraps the failure in a ProvisioningError.
func (o *Orchestrator) runSteps(id int, steps []step) error {
	var completed []step
	for _, st := range steps {
		if err := st.run(); err != nil {
			o.log.WithThread(id).Error("provisioning step failed, rolling back", "step", st.name, "error", err)
			for i := len(completed) - 1; i >= 0; i-- {
				if completed[i].rollback != nil {
					completed[i].rollback()
				}
			}
			if relErr := o.alloc.Release(id); relErr != nil {
				o.log.WithThread(id).Error("rollback: release failed", "error", relErr)
			}
			return wefterrors.NewProvisioningError(st.name, err)
		}
		completed = append(completed, st)
	}
	return nil
}

// threadWorktree pairs a source repository with the thread checkout created
// from it.
type threadWorktree struct {
	repoPath string
	path     string
}

// createWorktrees creates one worktree per configured repository, all on the
// record's branch off baseBranch. Returns the worktrees created so far even
// on failure, so the rollback can remove them.
func (o *Orchestrator) createWorktrees(rec registry.Record, baseBranch string) ([]threadWorktree, error) {
	root := allocator.ThreadRoot(o.cfg, rec.ID)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create thread root: %w", err)
	}

	var created []threadWorktree
	for _, repoPath := range o.cfg.Repos.All() {
		wt := threadWorktree{
			repoPath: repoPath,
			path:     filepath.Join(root, filepath.Base(repoPath)),
		}
		if err := o.provider.CreateWorktree(repoPath, wt.path, rec.Branch, baseBranch); err != nil {
			return created, fmt.Errorf("worktree for %s: %w", repoPath, err)
		}
		created = append(created, wt)
	}
	return created, nil
}

// removeWorktrees is the worktree step's compensating action: remove each
// created worktree and its branch, then the thread root directory.
func (o *Orchestrator) removeWorktrees(rec registry.Record, worktrees []threadWorktree) {
	log := o.log.WithThread(rec.ID)
	for i := len(worktrees) - 1; i >= 0; i-- {
		wt := worktrees[i]
		if err := o.provider.RemoveWorktree(wt.repoPath, wt.path); err != nil {
			log.Warn("rollback: remove worktree failed", "path", wt.path, "error", err)
		}
		if err := o.provider.DeleteBranch(wt.repoPath, rec.Branch); err != nil {
			log.Warn("rollback: delete branch failed", "repo", wt.repoPath, "error", err)
		}
	}
	if err := os.RemoveAll(allocator.ThreadRoot(o.cfg, rec.ID)); err != nil {
		log.Warn("rollback: remove thread root failed", "error", err)
	}
}

// renderEnvFiles writes the thread env file into every worktree.
func (o *Orchestrator) renderEnvFiles(rec registry.Record, worktrees []threadWorktree) error {
	for _, wt := range worktrees {
		path := filepath.Join(wt.path, envFileName)
		if err := envfile.Render(path, rec, o.cfg.Env.ParentFile, o.cfg.Env.Allowlist); err != nil {
			return fmt.Errorf("env file for %s: %w", wt.path, err)
		}
	}
	return nil
}
