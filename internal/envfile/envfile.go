// Package envfile renders per-thread environment files. Each thread gets
// its own file carrying the thread's identity and ports, plus secrets copied
// from the operator's parent env file by an explicit allow-list. Variables
// outside the allow-list never cross into a thread.
package envfile

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	wefterrors "github.com/weft-sh/weft/internal/errors"
	"github.com/weft-sh/weft/internal/registry"
)

// ThreadVars returns the identity variables every thread env file carries.
func ThreadVars(rec registry.Record) map[string]string {
	return map[string]string{
		"THREAD_ID":     strconv.Itoa(rec.ID),
		"THREAD_BRANCH": rec.Branch,
		"BACKEND_PORT":  strconv.Itoa(rec.BackendPort),
		"FRONTEND_PORT": strconv.Itoa(rec.FrontendPort),
	}
}

// ParseFile reads an env file into a map. Lines are KEY=VALUE; blank lines
// and #-comments are skipped, an optional "export " prefix is tolerated, and
// matching single or double quotes around the value are stripped.
func ParseFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}

	vars := make(map[string]string)
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%s:%d: not a KEY=VALUE line", path, i+1)
		}
		vars[key] = unquote(strings.TrimSpace(value))
	}
	return vars, nil
}

// CopyAllowed extracts exactly the allow-listed variables from parent.
// Names absent from parent are skipped, not errors, so one allow-list can
// serve environments that define different subsets.
func CopyAllowed(parent map[string]string, allowlist []string) map[string]string {
	copied := make(map[string]string, len(allowlist))
	for _, name := range allowlist {
		if value, ok := parent[name]; ok {
			copied[name] = value
		}
	}
	return copied
}

// Render writes the env file for rec at path: thread identity variables
// first, then the allow-listed secrets from parentFile. The file is written
// 0600 since it may carry credentials. An empty parentFile with an empty
// allow-list renders identity only; a non-empty allow-list requires the
// parent file to exist.
func Render(path string, rec registry.Record, parentFile string, allowlist []string) error {
	secrets := map[string]string{}
	if len(allowlist) > 0 {
		if parentFile == "" {
			return wefterrors.NewConfigError("env.parent_file", "required when env.allowlist is set")
		}
		parent, err := ParseFile(parentFile)
		if err != nil {
			return err
		}
		secrets = CopyAllowed(parent, allowlist)
	}

	var sb strings.Builder
	writeVars(&sb, ThreadVars(rec))
	writeVars(&sb, secrets)

	if err := os.WriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}

// writeVars appends KEY=VALUE lines in sorted key order so renders are
// byte-for-byte reproducible.
func writeVars(sb *strings.Builder, vars map[string]string) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(vars[k])
		sb.WriteByte('\n')
	}
}

func unquote(value string) string {
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
