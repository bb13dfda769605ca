package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps the registry as a pipe-delimited table, one record per
// line. Rewrites go through a temp file in the same directory followed by
// an atomic rename, so a crash mid-write leaves the prior table intact.
type FileStore struct {
	path   string
	derive PortDeriver
}

// NewFileStore creates a FileStore over the table at path. derive supplies
// the current port derivation, used to recompute ports when legacy-schema
// lines are encountered.
func NewFileStore(path string, derive PortDeriver) *FileStore {
	return &FileStore{path: path, derive: derive}
}

// Load reads the full table. Blank lines are tolerated; the schema of each
// line is detected by field count, with legacy lines converted in memory
// (the file itself is untouched until the next ReplaceAll or an explicit
// Migrate). A missing file is an empty registry.
func (s *FileStore) Load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var records []Record
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rec, err := ParseLine(line, s.derive)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReplaceAll atomically rewrites the table: serialize to a temp file in the
// registry's directory, fsync, then rename over the live file.
func (s *FileStore) ReplaceAll(records []Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(r.Format())
		sb.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp registry: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

// Get returns the record for id, or ErrNotFound. Read-only; no gate needed.
func (s *FileStore) Get(id int) (Record, error) {
	return getRecord(s, id)
}

// LegacyOnDisk reports whether any line of the on-disk table still uses the
// legacy schema.
func (s *FileStore) LegacyOnDisk() (bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch n := len(strings.Split(line, "|")); n {
		case currentFieldCount:
		case legacyFieldCount, legacyFieldCountMax:
			return true, nil
		default:
			return false, fmt.Errorf("unrecognized registry line (%d fields)", n)
		}
	}
	return false, nil
}

// Migrate rewrites a legacy-schema table in the current layout, preserving
// id, branch, worktree path, and created-at, with ports recomputed from the
// id. Returns the migrated records. Idempotent: a current-schema table is
// rewritten unchanged.
func (s *FileStore) Migrate() ([]Record, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}
	if err := s.ReplaceAll(records); err != nil {
		return nil, err
	}
	return records, nil
}

var _ Store = (*FileStore)(nil)
