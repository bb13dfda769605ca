// Package resource defines the seam between the lifecycle orchestrators and
// the external tools they drive (git, the container runtime, the host
// network stack). Orchestrators depend only on these interfaces; the Live
// implementation shells out, and tests substitute deterministic fakes.
package resource

import (
	"time"

	"github.com/weft-sh/weft/internal/registry"
)

// PortProber checks OS-level availability of a port.
type PortProber interface {
	// PortIsFree reports whether the port can currently be bound.
	PortIsFree(port int) bool
}

// WorktreeProvider covers the git side of a thread's resources.
// All paths are absolute; repoPath is the source repository the worktree
// hangs off, worktreePath the thread-owned checkout.
type WorktreeProvider interface {
	// CreateWorktree creates a worktree at worktreePath with a new branch
	// based off baseBranch.
	CreateWorktree(repoPath, worktreePath, newBranch, baseBranch string) error

	// RemoveWorktree removes a worktree, escalating from graceful removal
	// to working-tree pre-clean to direct deletion plus prune.
	RemoveWorktree(repoPath, worktreePath string) error

	// DeleteBranch deletes a local branch.
	DeleteBranch(repoPath, branch string) error

	// DeleteRemoteBranch deletes the branch on the origin remote, if present.
	DeleteRemoteBranch(repoPath, branch string) error
}

// ContainerProvider covers the container side of a thread's resources.
// Containers, volumes, and networks follow the {project}-thread-{id}-*
// naming convention, which is how they are found again without a mapping
// table.
type ContainerProvider interface {
	// StartContainers brings up the thread's compose stack, substituting the
	// record's ports into the environment.
	StartContainers(rec registry.Record) error

	// StopContainers takes the stack down, purging its volumes.
	StopContainers(rec registry.Record) error

	// RemoveVolumes removes named volumes belonging to the thread.
	RemoveVolumes(id int) error

	// RemoveNetwork removes the thread-specific network.
	RemoveNetwork(id int) error

	// RunningContainers counts the thread's running containers.
	RunningContainers(id int) (int, error)

	// WaitHealthy blocks until the thread's services report healthy or the
	// timeout elapses, in which case it returns an error the caller treats
	// as a warning.
	WaitHealthy(rec registry.Record, timeout time.Duration) error

	// RunMigration runs the configured data-layer migration inside the
	// thread's own stack.
	RunMigration(rec registry.Record) error
}

// Provider combines everything the orchestrators need from the outside world.
type Provider interface {
	PortProber
	WorktreeProvider
	ContainerProvider
}
