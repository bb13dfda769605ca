package resource

import (
	"fmt"
	"net"

	"github.com/weft-sh/weft/internal/runtime"
	"github.com/weft-sh/weft/internal/worktree"
)

// Live is the real Provider: git operations through the worktree package,
// container operations through the docker runtime, port probes through the
// host network stack.
type Live struct {
	*runtime.Docker
}

// NewLive wires a Provider over the given docker runtime.
func NewLive(docker *runtime.Docker) *Live {
	return &Live{Docker: docker}
}

// PortIsFree reports whether the port can currently be bound. Binding a
// listener is the probe: anything weaker (parsing ss/netstat output) races
// with the processes it is trying to observe.
func (l *Live) PortIsFree(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// CreateWorktree creates a worktree at worktreePath with a new branch based
// off baseBranch.
func (l *Live) CreateWorktree(repoPath, worktreePath, newBranch, baseBranch string) error {
	m, err := worktree.New(repoPath)
	if err != nil {
		return err
	}
	return m.Create(worktreePath, newBranch, baseBranch)
}

// RemoveWorktree removes a worktree with the escalating fallback chain.
func (l *Live) RemoveWorktree(repoPath, worktreePath string) error {
	m, err := worktree.New(repoPath)
	if err != nil {
		return err
	}
	return m.Remove(worktreePath)
}

// DeleteBranch deletes a local branch.
func (l *Live) DeleteBranch(repoPath, branch string) error {
	m, err := worktree.New(repoPath)
	if err != nil {
		return err
	}
	if !m.BranchExists(branch) {
		return nil
	}
	return m.DeleteBranch(branch)
}

// DeleteRemoteBranch deletes the branch on origin, if present.
func (l *Live) DeleteRemoteBranch(repoPath, branch string) error {
	m, err := worktree.New(repoPath)
	if err != nil {
		return err
	}
	return m.DeleteRemoteBranch(branch)
}

var _ Provider = (*Live)(nil)
