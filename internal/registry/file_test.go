package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	wefterrors "github.com/weft-sh/weft/internal/errors"
)

// testDerive is the port derivation used throughout these tests:
// backend = 8100 + id, frontend = 3100 + id.
func testDerive(id int) (int, int) {
	return 8100 + id, 3100 + id
}

func testRecords() []Record {
	created := time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC)
	return []Record{
		{ID: 1, Branch: "thread/1-auth", BackendPort: 8101, FrontendPort: 3101,
			WorktreePath: "/threads/1/backend", CreatedAt: created, Status: StatusReady},
		{ID: 2, Branch: "thread/2-search", BackendPort: 8102, FrontendPort: 3102,
			WorktreePath: "/threads/2/backend", CreatedAt: created.Add(time.Hour), Status: StatusInitializing},
	}
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "registry"), testDerive)
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store := newTestStore(t)
	records, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty registry, got %d records", len(records))
	}
}

func TestReplaceAllRoundTrip(t *testing.T) {
	store := newTestStore(t)
	want := testRecords()

	if err := store.ReplaceAll(want); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLoadToleratesBlankLines(t *testing.T) {
	store := newTestStore(t)
	rec := testRecords()[0]

	content := "\n" + rec.Format() + "\n\n\n"
	if err := os.WriteFile(store.path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 1 || records[0] != rec {
		t.Errorf("got %+v, want single record %+v", records, rec)
	}
}

func TestLoadRejectsUnrecognizedFieldCount(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.path, []byte("1|branch|8101\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := store.Load()
	if !wefterrors.Is(err, wefterrors.ErrCorruptRegistry) {
		t.Fatalf("expected ErrCorruptRegistry, got: %v", err)
	}
}

func TestLoadRejectsGarbageFields(t *testing.T) {
	store := newTestStore(t)
	line := "x|branch|8101|3101|/w|2026-05-12T09:30:00Z|ready\n"
	if err := os.WriteFile(store.path, []byte(line), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load(); !wefterrors.Is(err, wefterrors.ErrCorruptRegistry) {
		t.Fatalf("expected ErrCorruptRegistry for non-numeric id, got: %v", err)
	}
}

// TestCrashBeforeRenamePreservesPriorTable simulates a writer that died after
// writing its temp file but before the rename: the live table must still
// load complete and unchanged.
func TestCrashBeforeRenamePreservesPriorTable(t *testing.T) {
	store := newTestStore(t)
	want := testRecords()
	if err := store.ReplaceAll(want); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	// The abandoned temp file a crashed writer would leave behind.
	tmp := filepath.Join(filepath.Dir(store.path), ".registry-crashed.tmp")
	if err := os.WriteFile(tmp, []byte("3|thread/3-x|81"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load after simulated crash failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestGet(t *testing.T) {
	store := newTestStore(t)
	if err := store.ReplaceAll(testRecords()); err != nil {
		t.Fatal(err)
	}

	rec, err := store.Get(2)
	if err != nil {
		t.Fatalf("Get(2) failed: %v", err)
	}
	if rec.Branch != "thread/2-search" {
		t.Errorf("Get(2).Branch = %q", rec.Branch)
	}

	if _, err := store.Get(99); !wefterrors.Is(err, wefterrors.ErrNotFound) {
		t.Errorf("Get(99) = %v, want ErrNotFound", err)
	}
}

const legacyLine = "4|thread/4-billing|40041|40042|40043|40044|/threads/4/backend|2025-11-02T18:00:00Z|active"

func TestLoadConvertsLegacyLines(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.path, []byte(legacyLine+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	r := records[0]
	if r.ID != 4 || r.Branch != "thread/4-billing" || r.WorktreePath != "/threads/4/backend" {
		t.Errorf("identity fields not preserved: %+v", r)
	}
	if !r.CreatedAt.Equal(time.Date(2025, 11, 2, 18, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt not preserved: %v", r.CreatedAt)
	}
	if r.BackendPort != 8104 || r.FrontendPort != 3104 {
		t.Errorf("ports not recomputed from id: backend=%d frontend=%d", r.BackendPort, r.FrontendPort)
	}
	if r.Status != StatusReady {
		t.Errorf("legacy active should normalize to ready, got %q", r.Status)
	}
}

func TestLoadToleratesTenthLegacyField(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.path, []byte(legacyLine+"|historical\n"), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed on 10-field legacy line: %v", err)
	}
	if len(records) != 1 || records[0].ID != 4 {
		t.Errorf("got %+v", records)
	}
}

func TestMigrateRewritesLegacyTable(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.path, []byte(legacyLine+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	legacy, err := store.LegacyOnDisk()
	if err != nil || !legacy {
		t.Fatalf("LegacyOnDisk = %v, %v; want true", legacy, err)
	}

	migrated, err := store.Migrate()
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if len(migrated) != 1 {
		t.Fatalf("migrated %d records, want 1", len(migrated))
	}

	legacy, err = store.LegacyOnDisk()
	if err != nil || legacy {
		t.Fatalf("LegacyOnDisk after migrate = %v, %v; want false", legacy, err)
	}

	// The rewritten line is current-schema: 7 fields.
	data, err := os.ReadFile(store.path)
	if err != nil {
		t.Fatal(err)
	}
	line := strings.TrimSpace(string(data))
	if n := len(strings.Split(line, "|")); n != 7 {
		t.Errorf("migrated line has %d fields, want 7: %q", n, line)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	want := testRecords()
	if err := store.ReplaceAll(want); err != nil {
		t.Fatal(err)
	}

	migrated, err := store.Migrate()
	if err != nil {
		t.Fatalf("Migrate on current-schema table failed: %v", err)
	}
	if len(migrated) != len(want) {
		t.Fatalf("migrated %d records, want %d", len(migrated), len(want))
	}
	for i := range want {
		if migrated[i] != want[i] {
			t.Errorf("record %d changed by migration: %+v != %+v", i, migrated[i], want[i])
		}
	}
}
