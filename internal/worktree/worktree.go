// Package worktree wraps the git operations weft needs to give every thread
// its own checkout: worktree creation on a fresh branch, escalating removal,
// and branch cleanup, all by shelling out to git.
package worktree

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Manager handles git worktree operations for one source repository.
type Manager struct {
	repoDir string
}

// FindGitRoot finds the root of the git repository by traversing up from
// startDir. It returns the directory containing .git (a directory for a
// normal repo, a file for a worktree).
func FindGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() || info.Mode().IsRegular() {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a git repository (or any parent up to mount point)")
		}
		dir = parent
	}
}

// New creates a worktree Manager for the repository at repoDir.
func New(repoDir string) (*Manager, error) {
	gitRoot, err := FindGitRoot(repoDir)
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %s", repoDir)
	}

	return &Manager{repoDir: gitRoot}, nil
}

// RepoDir returns the repository root this manager operates on.
func (m *Manager) RepoDir() string {
	return m.repoDir
}

// Create creates a worktree at path with a new branch based off baseBranch.
func (m *Manager) Create(path, newBranch, baseBranch string) error {
	cmd := exec.Command("git", "worktree", "add", "-b", newBranch, path, baseBranch)
	cmd.Dir = m.repoDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to create worktree from branch %s: %w\n%s", baseBranch, err, string(output))
	}

	return nil
}

// Remove removes a worktree, escalating on failure: graceful forced removal
// first, then a working-tree pre-clean and retry, finally direct filesystem
// deletion followed by a prune so git forgets the registration.
func (m *Manager) Remove(path string) error {
	if err := m.removeOnce(path); err == nil {
		return nil
	}

	// A dirty or partially deleted working tree is the usual culprit.
	m.preClean(path)
	if err := m.removeOnce(path); err == nil {
		return nil
	}

	if err := os.RemoveAll(path); err != nil {
		_ = m.Prune()
		return fmt.Errorf("failed to remove worktree %s: %w", path, err)
	}
	return m.Prune()
}

// removeOnce attempts a single forced git worktree removal.
func (m *Manager) removeOnce(path string) error {
	cmd := exec.Command("git", "worktree", "remove", "--force", path)
	cmd.Dir = m.repoDir

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git worktree remove: %w\n%s", err, string(output))
	}
	return nil
}

// preClean resets and cleans the worktree's working tree so a retry of the
// removal does not trip over local modifications. Best-effort.
func (m *Manager) preClean(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	resetCmd := exec.Command("git", "reset", "--hard")
	resetCmd.Dir = path
	_ = resetCmd.Run()

	cleanCmd := exec.Command("git", "clean", "-fdx")
	cleanCmd.Dir = path
	_ = cleanCmd.Run()
}

// Prune drops stale worktree registrations from the repository.
func (m *Manager) Prune() error {
	cmd := exec.Command("git", "worktree", "prune")
	cmd.Dir = m.repoDir

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to prune worktrees: %w\n%s", err, string(output))
	}
	return nil
}

// List returns the paths of all worktrees attached to the repository.
func (m *Manager) List() ([]string, error) {
	cmd := exec.Command("git", "worktree", "list", "--porcelain")
	cmd.Dir = m.repoDir

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}

	var worktrees []string
	for _, line := range strings.Split(string(output), "\n") {
		if strings.HasPrefix(line, "worktree ") {
			worktrees = append(worktrees, strings.TrimPrefix(line, "worktree "))
		}
	}

	return worktrees, nil
}

// DeleteBranch deletes a local branch.
func (m *Manager) DeleteBranch(branch string) error {
	cmd := exec.Command("git", "branch", "-D", branch)
	cmd.Dir = m.repoDir

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to delete branch: %w\n%s", err, string(output))
	}

	return nil
}

// DeleteRemoteBranch deletes the branch from the origin remote. A branch
// that never made it to the remote is not an error.
func (m *Manager) DeleteRemoteBranch(branch string) error {
	checkCmd := exec.Command("git", "ls-remote", "--exit-code", "--heads", "origin", branch)
	checkCmd.Dir = m.repoDir
	if err := checkCmd.Run(); err != nil {
		return nil // no such remote branch (or no remote at all)
	}

	cmd := exec.Command("git", "push", "origin", "--delete", branch)
	cmd.Dir = m.repoDir

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to delete remote branch: %w\n%s", err, string(output))
	}

	return nil
}

// HasUncommittedChanges checks if a worktree has uncommitted changes.
func (m *Manager) HasUncommittedChanges(path string) (bool, error) {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = path

	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("failed to check status: %w", err)
	}

	return len(strings.TrimSpace(string(output))) > 0, nil
}

// BranchExists reports whether a local branch exists in the repository.
func (m *Manager) BranchExists(branch string) bool {
	cmd := exec.Command("git", "rev-parse", "--verify", "refs/heads/"+branch)
	cmd.Dir = m.repoDir
	return cmd.Run() == nil
}
