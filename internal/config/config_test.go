package config

import (
	"strings"
	"testing"
)

// validConfig returns a Config that passes validation, for tests to mutate.
func validConfig() Config {
	return Config{
		Project: "weft",
		Registry: RegistryConfig{
			Backend:  "file",
			StateDir: "/tmp/weft-test",
		},
		Repos: ReposConfig{
			Backend: "/src/backend",
		},
		Pool:    PoolConfig{MaxThreads: 9},
		Ports:   PortsConfig{BaseBackend: 8100, BaseFrontend: 3100, LegacyBase: 40000, LegacyBlockSize: 10},
		Lock:    LockConfig{TimeoutSeconds: 10, StaleAfterSeconds: 60},
		Health:  HealthConfig{TimeoutSeconds: 90},
		Branch:  BranchConfig{Prefix: "thread"},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got: %v", ValidationErrors(errs))
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "zero max threads",
			mutate: func(c *Config) { c.Pool.MaxThreads = 0 },
			field:  "pool.max_threads",
		},
		{
			name:   "negative max threads",
			mutate: func(c *Config) { c.Pool.MaxThreads = -3 },
			field:  "pool.max_threads",
		},
		{
			name:   "missing backend repo",
			mutate: func(c *Config) { c.Repos.Backend = "" },
			field:  "repos.backend",
		},
		{
			name:   "privileged backend base port",
			mutate: func(c *Config) { c.Ports.BaseBackend = 80 },
			field:  "ports.base_backend",
		},
		{
			name:   "port ranges overlap",
			mutate: func(c *Config) { c.Ports.BaseFrontend = c.Ports.BaseBackend + 2 },
			field:  "ports.base_frontend",
		},
		{
			name:   "unknown registry backend",
			mutate: func(c *Config) { c.Registry.Backend = "etcd" },
			field:  "registry.backend",
		},
		{
			name:   "empty state dir",
			mutate: func(c *Config) { c.Registry.StateDir = "" },
			field:  "registry.state_dir",
		},
		{
			name:   "stale threshold below lock timeout",
			mutate: func(c *Config) { c.Lock.StaleAfterSeconds = 2 },
			field:  "lock.stale_after_seconds",
		},
		{
			name:   "uppercase project name",
			mutate: func(c *Config) { c.Project = "Weft" },
			field:  "project",
		},
		{
			name:   "branch prefix starting with digit",
			mutate: func(c *Config) { c.Branch.Prefix = "1thread" },
			field:  "branch.prefix",
		},
		{
			name:   "bogus log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
			field:  "logging.level",
		},
		{
			name:   "legacy block too small for four ports",
			mutate: func(c *Config) { c.Ports.LegacyBlockSize = 2 },
			field:  "ports.legacy_block_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatalf("expected validation error for %s, got none", tt.field)
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on field %s, got: %v", tt.field, ValidationErrors(errs))
			}
		})
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "pool.max_threads", Value: 0, Message: "must be at least 1"},
		{Field: "repos.backend", Value: "", Message: "a backend repository path is required"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("expected count header, got: %q", msg)
	}
	if !strings.Contains(msg, "pool.max_threads") || !strings.Contains(msg, "repos.backend") {
		t.Errorf("expected both fields in message, got: %q", msg)
	}
}

func TestReposAll(t *testing.T) {
	tests := []struct {
		name  string
		repos ReposConfig
		want  int
	}{
		{"backend only", ReposConfig{Backend: "/b"}, 1},
		{"backend and frontend", ReposConfig{Backend: "/b", Frontend: "/f"}, 2},
		{"with aux repos", ReposConfig{Backend: "/b", Frontend: "/f", Aux: []string{"/x", "/y"}}, 4},
		{"aux without frontend", ReposConfig{Backend: "/b", Aux: []string{"/x"}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.repos.All()
			if len(got) != tt.want {
				t.Errorf("All() returned %d paths, want %d: %v", len(got), tt.want, got)
			}
			if got[0] != tt.repos.Backend {
				t.Errorf("backend must come first, got %v", got)
			}
		})
	}
}
