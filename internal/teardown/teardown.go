// Package teardown reclaims a thread's resources in reverse provisioning
// order. Every step is best-effort: a failure is recorded as a warning and
// the remaining steps still run, because a half-removed thread must always
// be recoverable by running teardown again. The single exception is the
// final registry removal, which is what makes the id reusable and is
// therefore fatal on failure.
package teardown

import (
	"os"
	"path/filepath"

	"github.com/weft-sh/weft/internal/allocator"
	"github.com/weft-sh/weft/internal/config"
	wefterrors "github.com/weft-sh/weft/internal/errors"
	"github.com/weft-sh/weft/internal/logging"
	"github.com/weft-sh/weft/internal/registry"
	"github.com/weft-sh/weft/internal/resource"
)

// Orchestrator tears threads down.
type Orchestrator struct {
	store    registry.Store
	alloc    *allocator.Allocator
	provider resource.Provider
	cfg      config.Config
	log      *logging.Logger
}

// New creates an Orchestrator.
func New(store registry.Store, alloc *allocator.Allocator, provider resource.Provider, cfg config.Config, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		alloc:    alloc,
		provider: provider,
		cfg:      cfg,
		log:      log,
	}
}

// StepResult records one teardown step's outcome. Warning is nil when the
// step succeeded or had nothing to do.
type StepResult struct {
	Name    string
	Warning error
}

// Summary reports which steps ran, which warned, and whether the registry
// record was ultimately removed.
type Summary struct {
	ID              int
	Steps           []StepResult
	RegistryRemoved bool
}

// Warnings returns the per-step warnings, in step order.
func (s Summary) Warnings() []error {
	var warnings []error
	for _, st := range s.Steps {
		if st.Warning != nil {
			warnings = append(warnings, st.Warning)
		}
	}
	return warnings
}

// Clean reports whether every step completed without a warning.
func (s Summary) Clean() bool {
	return len(s.Warnings()) == 0
}

// Teardown reclaims thread id: containers, volumes, network, worktrees,
// branches, the thread root directory, and finally the registry record.
// Idempotent: an absent record is a no-op, unless force is set, in which
// case the container-side resources are still swept by naming convention
// (the recovery path for a registry that lost its record mid-operation).
// The returned error is non-nil only when the final registry removal fails.
func (o *Orchestrator) Teardown(id int, force bool) (Summary, error) {
	summary := Summary{ID: id}
	log := o.log.WithThread(id)

	rec, err := o.store.Get(id)
	if wefterrors.Is(err, wefterrors.ErrNotFound) {
		if !force {
			log.Info("teardown: no record, nothing to do")
			return summary, nil
		}
		// No record means no worktree paths; sweep what the naming
		// convention can still find.
		rec = registry.Record{ID: id}
		log.Info("teardown: no record, forcing container sweep")
	} else if err != nil {
		return summary, err
	}

	log.Info("tearing down thread", "branch", rec.Branch)

	o.step(&summary, "stop containers", func() error {
		return o.provider.StopContainers(rec)
	})
	o.step(&summary, "remove volumes", func() error {
		return o.provider.RemoveVolumes(id)
	})
	o.step(&summary, "remove network", func() error {
		return o.provider.RemoveNetwork(id)
	})

	// The backend worktree path comes from the record itself; paths for the
	// other repos are derived from the current config. A thread provisioned
	// under an older state_dir still gets its recorded worktree removed.
	threadRoot := allocator.ThreadRoot(o.cfg, id)
	if rec.WorktreePath != "" {
		threadRoot = filepath.Dir(rec.WorktreePath)
	}

	if rec.Branch != "" {
		for _, repoPath := range o.cfg.Repos.All() {
			repoPath := repoPath
			wtPath := filepath.Join(threadRoot, filepath.Base(repoPath))
			if repoPath == o.cfg.Repos.Backend && rec.WorktreePath != "" {
				wtPath = rec.WorktreePath
			}
			o.step(&summary, "remove worktree "+filepath.Base(repoPath), func() error {
				if _, err := os.Stat(wtPath); os.IsNotExist(err) {
					return nil
				}
				return o.provider.RemoveWorktree(repoPath, wtPath)
			})
			o.step(&summary, "delete branch in "+filepath.Base(repoPath), func() error {
				if err := o.provider.DeleteBranch(repoPath, rec.Branch); err != nil {
					return err
				}
				return o.provider.DeleteRemoteBranch(repoPath, rec.Branch)
			})
		}
	}

	o.step(&summary, "remove thread directory", func() error {
		return os.RemoveAll(threadRoot)
	})

	// The one fatal step: until the record is gone the id stays occupied.
	if err := o.alloc.Release(id); err != nil {
		log.Error("teardown: registry removal failed", "error", err)
		return summary, err
	}
	summary.RegistryRemoved = true

	log.Info("thread torn down", "warnings", len(summary.Warnings()))
	return summary, nil
}

// step runs one best-effort teardown step and records its outcome. Failures
// become warnings; the sequence always continues.
func (o *Orchestrator) step(summary *Summary, name string, run func() error) {
	result := StepResult{Name: name}
	if err := run(); err != nil {
		result.Warning = &wefterrors.TeardownWarning{Step: name, Err: err}
		o.log.WithThread(summary.ID).Warn("teardown step failed, continuing", "step", name, "error", err)
	}
	summary.Steps = append(summary.Steps, result)
}
