// Package allocator assigns thread identities and their derived ports.
// Allocation is the only check-then-act sequence in the system — scan for a
// free id, then commit the new record — so the whole of it runs while
// holding the registry gate.
package allocator

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/weft-sh/weft/internal/config"
	wefterrors "github.com/weft-sh/weft/internal/errors"
	"github.com/weft-sh/weft/internal/gate"
	"github.com/weft-sh/weft/internal/logging"
	"github.com/weft-sh/weft/internal/registry"
	"github.com/weft-sh/weft/internal/resource"
)

// Allocator hands out the lowest free thread id and its port pair.
type Allocator struct {
	store registry.Store
	gate  *gate.Gate
	probe resource.PortProber
	cfg   config.Config
	log   *logging.Logger
}

// New creates an Allocator.
func New(store registry.Store, g *gate.Gate, probe resource.PortProber, cfg config.Config, log *logging.Logger) *Allocator {
	return &Allocator{
		store: store,
		gate:  g,
		probe: probe,
		cfg:   cfg,
		log:   log,
	}
}

// Derive returns the current port derivation for the configured bases:
// backendPort = BaseBackend + id, frontendPort = BaseFrontend + id.
func Derive(ports config.PortsConfig) registry.PortDeriver {
	return func(id int) (int, int) {
		return ports.BaseBackend + id, ports.BaseFrontend + id
	}
}

// LegacyPorts returns the four sequential service ports the legacy schema
// assigned a thread: a per-thread block at LegacyBase + id*LegacyBlockSize.
func LegacyPorts(ports config.PortsConfig, id int) (db, cache, app, debug int) {
	base := ports.LegacyBase + id*ports.LegacyBlockSize
	return base + 1, base + 2, base + 3, base + 4
}

// Allocate chooses the lowest free id in [1, MaxThreads], derives and
// probes its ports, and commits an initializing record — all under the
// registry gate. A failed port probe does not consume the id.
func (a *Allocator) Allocate(feature string) (registry.Record, error) {
	if err := a.gate.Acquire(a.lockTimeout()); err != nil {
		return registry.Record{}, err
	}
	defer a.gate.Release()

	records, err := a.store.Load()
	if err != nil {
		return registry.Record{}, err
	}

	id, err := lowestFreeID(records, a.cfg.Pool.MaxThreads)
	if err != nil {
		return registry.Record{}, err
	}

	branch := BranchName(a.cfg.Branch.Prefix, feature)
	for _, r := range records {
		if r.Branch == branch {
			return registry.Record{}, fmt.Errorf("%w: %s (thread %d)", wefterrors.ErrBranchInUse, branch, r.ID)
		}
	}

	backend, frontend := Derive(a.cfg.Ports)(id)
	for _, port := range []int{backend, frontend} {
		if !a.probe.PortIsFree(port) {
			return registry.Record{}, fmt.Errorf("%w: port %d (thread %d)", wefterrors.ErrPortUnavailable, port, id)
		}
	}

	rec := registry.Record{
		ID:           id,
		Branch:       branch,
		BackendPort:  backend,
		FrontendPort: frontend,
		WorktreePath: a.worktreePath(id),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		Status:       registry.StatusInitializing,
	}

	if err := a.store.ReplaceAll(append(records, rec)); err != nil {
		return registry.Record{}, fmt.Errorf("commit allocation: %w", err)
	}

	a.log.Info("thread allocated",
		"thread_id", id, "branch", branch,
		"backend_port", backend, "frontend_port", frontend)
	return rec, nil
}

// Release removes the record for id. Removing an absent id is a no-op, not
// an error: release is called both by normal teardown and by provisioning
// rollback, either of which may race a crashed predecessor.
func (a *Allocator) Release(id int) error {
	if err := a.gate.Acquire(a.lockTimeout()); err != nil {
		return err
	}
	defer a.gate.Release()

	records, err := a.store.Load()
	if err != nil {
		return err
	}

	kept := records[:0]
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return nil // already gone
	}

	if err := a.store.ReplaceAll(kept); err != nil {
		return fmt.Errorf("release thread %d: %w", id, err)
	}
	a.log.Info("thread released", "thread_id", id)
	return nil
}

// UpdateStatus sets the status of an existing record.
func (a *Allocator) UpdateStatus(id int, status registry.Status) error {
	if err := a.gate.Acquire(a.lockTimeout()); err != nil {
		return err
	}
	defer a.gate.Release()

	records, err := a.store.Load()
	if err != nil {
		return err
	}

	found := false
	for i := range records {
		if records[i].ID == id {
			records[i].Status = status
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: id %d", wefterrors.ErrNotFound, id)
	}

	return a.store.ReplaceAll(records)
}

// lowestFreeID scans [1, maxThreads] ascending and returns the first id not
// held by a live record. Reclaimed ids are reused immediately, keeping the
// pool densely packed — container names and port ranges are keyed off the
// id, so a sparse pool would strand resources.
func lowestFreeID(records []registry.Record, maxThreads int) (int, error) {
	live := make(map[int]bool, len(records))
	for _, r := range records {
		live[r.ID] = true
	}

	for id := 1; id <= maxThreads; id++ {
		if !live[id] {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: all %d slots in use", wefterrors.ErrPoolExhausted, maxThreads)
}

// worktreePath returns the thread's backend worktree path:
// {stateDir}/threads/{id}/{backendRepoName}.
func (a *Allocator) worktreePath(id int) string {
	return filepath.Join(ThreadRoot(a.cfg, id), filepath.Base(a.cfg.Repos.Backend))
}

// ThreadRoot returns the directory owning all of a thread's worktrees.
func ThreadRoot(cfg config.Config, id int) string {
	return filepath.Join(cfg.Registry.StateDir, "threads", strconv.Itoa(id))
}

func (a *Allocator) lockTimeout() time.Duration {
	return time.Duration(a.cfg.Lock.TimeoutSeconds) * time.Second
}
