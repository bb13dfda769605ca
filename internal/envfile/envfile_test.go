package envfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	wefterrors "github.com/weft-sh/weft/internal/errors"
	"github.com/weft-sh/weft/internal/registry"
)

func testRecord() registry.Record {
	return registry.Record{
		ID:           3,
		Branch:       "thread/search",
		BackendPort:  8103,
		FrontendPort: 3103,
		WorktreePath: "/threads/3/backend",
		CreatedAt:    time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Status:       registry.StatusInitializing,
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFile(t *testing.T) {
	parent := writeFile(t, t.TempDir(), ".env", strings.Join([]string{
		"# secrets",
		"",
		"API_KEY=abc123",
		"export DB_URL=postgres://localhost/dev",
		`QUOTED="hello world"`,
		"SINGLE='x'",
		"EMPTY=",
	}, "\n"))

	vars, err := ParseFile(parent)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}

	want := map[string]string{
		"API_KEY": "abc123",
		"DB_URL":  "postgres://localhost/dev",
		"QUOTED":  "hello world",
		"SINGLE":  "x",
		"EMPTY":   "",
	}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("vars[%q] = %q, want %q", k, vars[k], v)
		}
	}
	if len(vars) != len(want) {
		t.Errorf("parsed %d vars, want %d", len(vars), len(want))
	}
}

func TestParseFileRejectsMalformedLine(t *testing.T) {
	parent := writeFile(t, t.TempDir(), ".env", "JUST_A_WORD\n")

	if _, err := ParseFile(parent); err == nil {
		t.Fatal("expected error for line without =")
	}
}

func TestCopyAllowedIsStrict(t *testing.T) {
	parent := map[string]string{
		"API_KEY":    "abc",
		"AWS_SECRET": "never",
		"DB_URL":     "postgres://x",
	}

	copied := CopyAllowed(parent, []string{"API_KEY", "MISSING"})

	if copied["API_KEY"] != "abc" {
		t.Errorf("API_KEY = %q, want abc", copied["API_KEY"])
	}
	if _, ok := copied["AWS_SECRET"]; ok {
		t.Error("variable outside the allow-list was copied")
	}
	if _, ok := copied["MISSING"]; ok {
		t.Error("absent variable should be skipped, not materialized")
	}
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	parent := writeFile(t, dir, "parent.env", "API_KEY=abc123\nAWS_SECRET=never\n")
	out := filepath.Join(dir, ".env.thread")

	if err := Render(out, testRecord(), parent, []string{"API_KEY"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	for _, line := range []string{
		"THREAD_ID=3",
		"THREAD_BRANCH=thread/search",
		"BACKEND_PORT=8103",
		"FRONTEND_PORT=3103",
		"API_KEY=abc123",
	} {
		if !strings.Contains(content, line+"\n") {
			t.Errorf("rendered file missing %q:\n%s", line, content)
		}
	}
	if strings.Contains(content, "AWS_SECRET") {
		t.Error("rendered file contains a variable outside the allow-list")
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("env file mode = %o, want 0600", perm)
	}
}

func TestRenderWithoutParentFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), ".env.thread")

	if err := Render(out, testRecord(), "", nil); err != nil {
		t.Fatalf("identity-only render failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "THREAD_ID=3\n") {
		t.Errorf("missing identity variables:\n%s", data)
	}
}

func TestRenderRequiresParentWhenAllowlisted(t *testing.T) {
	out := filepath.Join(t.TempDir(), ".env.thread")

	err := Render(out, testRecord(), "", []string{"API_KEY"})
	var cfgErr *wefterrors.ConfigError
	if !wefterrors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got: %v", err)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	parent := writeFile(t, dir, "parent.env", "B=2\nA=1\nC=3\n")

	first := filepath.Join(dir, "first.env")
	second := filepath.Join(dir, "second.env")
	allow := []string{"C", "A", "B"}

	if err := Render(first, testRecord(), parent, allow); err != nil {
		t.Fatal(err)
	}
	if err := Render(second, testRecord(), parent, allow); err != nil {
		t.Fatal(err)
	}

	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if string(a) != string(b) {
		t.Error("identical inputs rendered different files")
	}
}
