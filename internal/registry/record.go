// Package registry persists thread records: the single source of truth for
// which thread ids are live. Records are kept in a pipe-delimited table
// rewritten atomically under the registry gate, or in an embedded sqlite
// store selected by configuration. External resource state (containers,
// worktrees) is derived from these records, never authoritative.
package registry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	wefterrors "github.com/weft-sh/weft/internal/errors"
)

// Status is a thread record's lifecycle state. A record is created
// initializing, marked ready by the provisioning orchestrator, and removed
// from the registry entirely on teardown (there is no terminal status).
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusReady        Status = "ready"
	// StatusActive is accepted as a synonym of ready in older registries.
	StatusActive Status = "active"
)

// valid reports whether s is a known status value.
func (s Status) valid() bool {
	switch s {
	case StatusInitializing, StatusReady, StatusActive:
		return true
	}
	return false
}

// ParseStatus validates an operator-supplied status string.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if !status.valid() {
		return "", fmt.Errorf("unknown status %q (want initializing, ready, or active)", s)
	}
	return status, nil
}

// Field counts distinguishing the on-disk schema versions.
const (
	currentFieldCount   = 7
	legacyFieldCount    = 9
	legacyFieldCountMax = 10 // a historical trailing field is tolerated
)

// Record is one live thread.
type Record struct {
	ID           int
	Branch       string
	BackendPort  int
	FrontendPort int
	WorktreePath string
	CreatedAt    time.Time
	Status       Status
}

// LegacyRecord is the wider pre-migration record with four independent
// service ports. It survives only long enough to be migrated.
type LegacyRecord struct {
	ID           int
	Branch       string
	DBPort       int
	CachePort    int
	AppPort      int
	DebugPort    int
	WorktreePath string
	CreatedAt    time.Time
	Status       Status
}

// PortDeriver computes the current (backend, frontend) port pair for an id.
// It is a pure function of the id and the configured bases.
type PortDeriver func(id int) (backend, frontend int)

// Format serializes a record as a current-schema registry line.
func (r Record) Format() string {
	return strings.Join([]string{
		strconv.Itoa(r.ID),
		r.Branch,
		strconv.Itoa(r.BackendPort),
		strconv.Itoa(r.FrontendPort),
		r.WorktreePath,
		r.CreatedAt.UTC().Format(time.RFC3339),
		string(r.Status),
	}, "|")
}

// ParseLine parses one registry line, detecting the schema by field count.
// Legacy lines are converted to the current layout: id, branch, worktree
// path, created-at, and status are preserved; ports are recomputed via
// derive. Unrecognized field counts fail with ErrCorruptRegistry.
func ParseLine(line string, derive PortDeriver) (Record, error) {
	fields := strings.Split(line, "|")

	switch len(fields) {
	case currentFieldCount:
		return parseCurrent(fields)
	case legacyFieldCount, legacyFieldCountMax:
		legacy, err := parseLegacy(fields)
		if err != nil {
			return Record{}, err
		}
		return legacy.Migrate(derive), nil
	default:
		return Record{}, fmt.Errorf("%w: %d fields in %q", wefterrors.ErrCorruptRegistry, len(fields), line)
	}
}

// Migrate converts a legacy record to the current layout, recomputing the
// port pair from the id and dropping the four legacy service ports.
func (l LegacyRecord) Migrate(derive PortDeriver) Record {
	backend, frontend := derive(l.ID)
	status := l.Status
	if status == StatusActive {
		status = StatusReady
	}
	return Record{
		ID:           l.ID,
		Branch:       l.Branch,
		BackendPort:  backend,
		FrontendPort: frontend,
		WorktreePath: l.WorktreePath,
		CreatedAt:    l.CreatedAt,
		Status:       status,
	}
}

func parseCurrent(fields []string) (Record, error) {
	id, err := parsePositiveInt(fields[0], "id")
	if err != nil {
		return Record{}, err
	}
	backend, err := parsePositiveInt(fields[2], "backend port")
	if err != nil {
		return Record{}, err
	}
	frontend, err := parsePositiveInt(fields[3], "frontend port")
	if err != nil {
		return Record{}, err
	}
	createdAt, err := parseTimestamp(fields[5])
	if err != nil {
		return Record{}, err
	}
	status := Status(fields[6])
	if !status.valid() {
		return Record{}, fmt.Errorf("%w: unknown status %q", wefterrors.ErrCorruptRegistry, fields[6])
	}

	return Record{
		ID:           id,
		Branch:       fields[1],
		BackendPort:  backend,
		FrontendPort: frontend,
		WorktreePath: fields[4],
		CreatedAt:    createdAt,
		Status:       status,
	}, nil
}

func parseLegacy(fields []string) (LegacyRecord, error) {
	id, err := parsePositiveInt(fields[0], "id")
	if err != nil {
		return LegacyRecord{}, err
	}

	ports := make([]int, 4)
	names := []string{"db port", "cache port", "app port", "debug port"}
	for i := 0; i < 4; i++ {
		ports[i], err = parsePositiveInt(fields[2+i], names[i])
		if err != nil {
			return LegacyRecord{}, err
		}
	}

	createdAt, err := parseTimestamp(fields[7])
	if err != nil {
		return LegacyRecord{}, err
	}
	status := Status(fields[8])
	if !status.valid() {
		return LegacyRecord{}, fmt.Errorf("%w: unknown status %q", wefterrors.ErrCorruptRegistry, fields[8])
	}

	return LegacyRecord{
		ID:           id,
		Branch:       fields[1],
		DBPort:       ports[0],
		CachePort:    ports[1],
		AppPort:      ports[2],
		DebugPort:    ports[3],
		WorktreePath: fields[6],
		CreatedAt:    createdAt,
		Status:       status,
	}, nil
}

func parsePositiveInt(s, what string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: bad %s %q", wefterrors.ErrCorruptRegistry, what, s)
	}
	return n, nil
}

func parseTimestamp(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", wefterrors.ErrCorruptRegistry, s)
	}
	return ts, nil
}
