// Package runtime drives the container side of a thread by shelling out to
// docker and docker compose. Every derived resource follows the
// {project}-thread-{id}-{resource} naming convention; that convention is
// how containers, volumes, and networks are found again for status queries
// and teardown, without a separate mapping table.
package runtime

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/weft-sh/weft/internal/logging"
	"github.com/weft-sh/weft/internal/registry"
)

// healthPollInterval is how often WaitHealthy re-queries container health.
const healthPollInterval = 2 * time.Second

// Docker manages a thread's compose stack.
type Docker struct {
	project    string
	migrateCmd []string
	log        *logging.Logger
}

// NewDocker creates a Docker runtime for the given project name.
// migrateCmd, when non-empty, is the command RunMigration executes inside
// the thread's backend service.
func NewDocker(project string, migrateCmd []string, log *logging.Logger) *Docker {
	return &Docker{
		project:    project,
		migrateCmd: migrateCmd,
		log:        log,
	}
}

// ComposeProject returns the compose project name for a thread id.
func (d *Docker) ComposeProject(id int) string {
	return fmt.Sprintf("%s-thread-%d", d.project, id)
}

// namePrefix returns the resource-name prefix shared by all of a thread's
// containers, volumes, and networks.
func (d *Docker) namePrefix(id int) string {
	return fmt.Sprintf("%s-thread-%d-", d.project, id)
}

// StartContainers brings up the thread's compose stack from its backend
// worktree, with the thread's identity and ports in the environment for
// compose-file substitution.
func (d *Docker) StartContainers(rec registry.Record) error {
	cmd := exec.Command("docker", "compose", "-p", d.ComposeProject(rec.ID), "up", "-d")
	cmd.Dir = rec.WorktreePath
	cmd.Env = append(os.Environ(), threadEnv(rec)...)

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("compose up for thread %d: %w\n%s", rec.ID, err, string(output))
	}
	return nil
}

// StopContainers takes the stack down, purging volumes. When the compose
// file is already gone (worktree removed first, or a re-run after partial
// teardown), it falls back to force-removing containers by name.
func (d *Docker) StopContainers(rec registry.Record) error {
	if _, err := os.Stat(rec.WorktreePath); err == nil {
		cmd := exec.Command("docker", "compose", "-p", d.ComposeProject(rec.ID), "down", "-v", "--remove-orphans")
		cmd.Dir = rec.WorktreePath
		cmd.Env = append(os.Environ(), threadEnv(rec)...)
		if output, err := cmd.CombinedOutput(); err == nil {
			return nil
		} else if d.log != nil {
			d.log.Warn("compose down failed, falling back to force removal",
				"thread_id", rec.ID, "output", string(output))
		}
	}
	return d.forceRemoveContainers(rec.ID)
}

// forceRemoveContainers removes the thread's containers by name filter.
func (d *Docker) forceRemoveContainers(id int) error {
	ids, err := dockerLines("ps", "-aq", "--filter", "name="+d.namePrefix(id))
	if err != nil {
		return fmt.Errorf("list containers for thread %d: %w", id, err)
	}
	if len(ids) == 0 {
		return nil
	}

	args := append([]string{"rm", "-f"}, ids...)
	if output, err := exec.Command("docker", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("remove containers for thread %d: %w\n%s", id, err, string(output))
	}
	return nil
}

// RemoveVolumes removes the thread's named volumes.
func (d *Docker) RemoveVolumes(id int) error {
	names, err := dockerLines("volume", "ls", "-q", "--filter", "name="+d.ComposeProject(id))
	if err != nil {
		return fmt.Errorf("list volumes for thread %d: %w", id, err)
	}
	if len(names) == 0 {
		return nil
	}

	args := append([]string{"volume", "rm", "-f"}, names...)
	if output, err := exec.Command("docker", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("remove volumes for thread %d: %w\n%s", id, err, string(output))
	}
	return nil
}

// RemoveNetwork removes the thread-specific networks.
func (d *Docker) RemoveNetwork(id int) error {
	names, err := dockerLines("network", "ls", "--format", "{{.Name}}", "--filter", "name="+d.ComposeProject(id))
	if err != nil {
		return fmt.Errorf("list networks for thread %d: %w", id, err)
	}
	if len(names) == 0 {
		return nil
	}

	args := append([]string{"network", "rm"}, names...)
	if output, err := exec.Command("docker", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("remove network for thread %d: %w\n%s", id, err, string(output))
	}
	return nil
}

// RunningContainers counts the thread's running containers.
func (d *Docker) RunningContainers(id int) (int, error) {
	ids, err := dockerLines("ps", "-q", "--filter", "name="+d.namePrefix(id))
	if err != nil {
		return 0, fmt.Errorf("count containers for thread %d: %w", id, err)
	}
	return len(ids), nil
}

// WaitHealthy polls the thread's containers until none are starting or
// unhealthy and at least one is running, or the timeout elapses. The
// returned timeout error is advisory: callers surface it as a warning and
// proceed.
func (d *Docker) WaitHealthy(rec registry.Record, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	prefix := d.namePrefix(rec.ID)

	for {
		running, err := dockerLines("ps", "-q", "--filter", "name="+prefix)
		if err != nil {
			return fmt.Errorf("query containers for thread %d: %w", rec.ID, err)
		}
		settling := 0
		for _, state := range []string{"starting", "unhealthy"} {
			pending, err := dockerLines("ps", "-q", "--filter", "name="+prefix, "--filter", "health="+state)
			if err != nil {
				return fmt.Errorf("query container health for thread %d: %w", rec.ID, err)
			}
			settling += len(pending)
		}

		if len(running) > 0 && settling == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("thread %d services not healthy after %s (%d running, %d settling)",
				rec.ID, timeout, len(running), settling)
		}
		time.Sleep(healthPollInterval)
	}
}

// RunMigration executes the configured migration command inside the
// thread's backend service. A thread gets its own database instance, so
// migrations never touch another thread's data. No-op when unconfigured.
func (d *Docker) RunMigration(rec registry.Record) error {
	if len(d.migrateCmd) == 0 {
		return nil
	}

	args := append([]string{"compose", "-p", d.ComposeProject(rec.ID), "exec", "-T", "backend"}, d.migrateCmd...)
	cmd := exec.Command("docker", args...)
	cmd.Dir = rec.WorktreePath
	cmd.Env = append(os.Environ(), threadEnv(rec)...)

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("migration for thread %d: %w\n%s", rec.ID, err, string(output))
	}
	return nil
}

// threadEnv returns the compose substitution variables for a record.
func threadEnv(rec registry.Record) []string {
	return []string{
		"THREAD_ID=" + strconv.Itoa(rec.ID),
		"BACKEND_PORT=" + strconv.Itoa(rec.BackendPort),
		"FRONTEND_PORT=" + strconv.Itoa(rec.FrontendPort),
	}
}

// dockerLines runs a docker query and returns its non-empty output lines.
func dockerLines(args ...string) ([]string, error) {
	output, err := exec.Command("docker", args...).Output()
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
