// Package config defines the weft configuration and its validation rules.
// Configuration is loaded once at the CLI boundary (via viper) and passed by
// value into every core entry point; the core packages never consult global
// state.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete weft configuration.
type Config struct {
	// Project is the name prefix for all derived external resources
	// (containers, volumes, networks): {project}-thread-{id}-{resource}.
	Project string `mapstructure:"project"`

	Registry RegistryConfig `mapstructure:"registry"`
	Repos    ReposConfig    `mapstructure:"repos"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Ports    PortsConfig    `mapstructure:"ports"`
	Lock     LockConfig     `mapstructure:"lock"`
	Health   HealthConfig   `mapstructure:"health"`
	Branch   BranchConfig   `mapstructure:"branch"`
	Env      EnvConfig      `mapstructure:"env"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// RegistryConfig controls where and how thread records are persisted.
type RegistryConfig struct {
	// Backend selects the registry store: "file" (pipe-delimited table with
	// atomic rewrites) or "sqlite" (embedded transactional store).
	Backend string `mapstructure:"backend"`
	// StateDir holds the registry, the lock file, and per-thread roots.
	StateDir string `mapstructure:"state_dir"`
}

// ReposConfig names the source repositories that get a worktree per thread.
// Backend is always required; the others are capability flags, worktreed
// only when a path is configured.
type ReposConfig struct {
	Backend  string   `mapstructure:"backend"`
	Frontend string   `mapstructure:"frontend"`
	Aux      []string `mapstructure:"aux"`
}

// All returns the configured repository paths, backend first.
func (r ReposConfig) All() []string {
	repos := []string{r.Backend}
	if r.Frontend != "" {
		repos = append(repos, r.Frontend)
	}
	repos = append(repos, r.Aux...)
	return repos
}

// PoolConfig bounds the thread slot pool.
type PoolConfig struct {
	// MaxThreads is the highest allocatable id; slots are [1, MaxThreads].
	MaxThreads int `mapstructure:"max_threads"`
}

// PortsConfig controls port derivation from a thread id.
type PortsConfig struct {
	// BaseBackend and BaseFrontend anchor the current derivation:
	// backendPort = BaseBackend + id, frontendPort = BaseFrontend + id.
	BaseBackend  int `mapstructure:"base_backend"`
	BaseFrontend int `mapstructure:"base_frontend"`
	// LegacyBase and LegacyBlockSize anchor the legacy derivation
	// (four sequential ports at LegacyBase + id*LegacyBlockSize), kept so
	// legacy registries can be interpreted before migration.
	LegacyBase      int `mapstructure:"legacy_base"`
	LegacyBlockSize int `mapstructure:"legacy_block_size"`
}

// LockConfig controls the registry gate.
type LockConfig struct {
	// TimeoutSeconds bounds how long a caller waits for the gate.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// StaleAfterSeconds is the age beyond which a waiter may reclaim a lock
	// whose holder never released it (crashed process).
	StaleAfterSeconds int `mapstructure:"stale_after_seconds"`
}

// HealthConfig controls post-start health waiting.
type HealthConfig struct {
	// TimeoutSeconds bounds the wait for containers to report healthy.
	// Expiry is a warning, not a provisioning failure.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// MigrateCommand, when non-empty, is run inside the thread's backend
	// container after services are up (e.g. a database migration).
	MigrateCommand []string `mapstructure:"migrate_command"`
}

// BranchConfig controls branch naming: {prefix}/{slug}.
type BranchConfig struct {
	Prefix string `mapstructure:"prefix"`
}

// EnvConfig controls per-thread env file rendering.
type EnvConfig struct {
	// ParentFile is the environment file secrets are copied from.
	ParentFile string `mapstructure:"parent_file"`
	// Allowlist names the variables copied from ParentFile. Nothing outside
	// the allowlist ever crosses into a thread's env file.
	Allowlist []string `mapstructure:"allowlist"`
}

// LoggingConfig controls the structured debug log.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultStateDir returns the default state directory, ~/.weft.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".weft"
	}
	return filepath.Join(home, ".weft")
}

// SetDefaults registers default values with viper. Called before reading
// the config file so defaults apply even when no file exists.
func SetDefaults() {
	viper.SetDefault("project", "weft")
	viper.SetDefault("registry.backend", "file")
	viper.SetDefault("registry.state_dir", DefaultStateDir())
	viper.SetDefault("pool.max_threads", 9)
	viper.SetDefault("ports.base_backend", 8100)
	viper.SetDefault("ports.base_frontend", 3100)
	viper.SetDefault("ports.legacy_base", 40000)
	viper.SetDefault("ports.legacy_block_size", 10)
	viper.SetDefault("lock.timeout_seconds", 10)
	viper.SetDefault("lock.stale_after_seconds", 60)
	viper.SetDefault("health.timeout_seconds", 90)
	viper.SetDefault("branch.prefix", "thread")
	viper.SetDefault("logging.level", "info")
}

// Load unmarshals the current viper state into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return Config{}, ValidationErrors(errs)
	}
	return cfg, nil
}
