package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // the config field path (e.g., "pool.max_threads")
	Value   any    // the invalid value
	Message string // human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// branchPrefixRegex validates branch prefix characters.
// Prefixes must start alphanumeric and may contain alphanumeric, hyphen, underscore.
var branchPrefixRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// projectRegex validates project names, which flow into container, volume,
// and network names and must stay within docker's accepted character set.
var projectRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidRegistryBackends returns the list of valid registry backends.
func ValidRegistryBackends() []string {
	return []string{"file", "sqlite"}
}

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Project == "" || !projectRegex.MatchString(c.Project) {
		errors = append(errors, ValidationError{
			Field:   "project",
			Value:   c.Project,
			Message: "must be lowercase alphanumeric with hyphens/underscores, starting with a letter",
		})
	}

	if !slices.Contains(ValidRegistryBackends(), c.Registry.Backend) {
		errors = append(errors, ValidationError{
			Field:   "registry.backend",
			Value:   c.Registry.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidRegistryBackends(), ", ")),
		})
	}
	if c.Registry.StateDir == "" {
		errors = append(errors, ValidationError{
			Field:   "registry.state_dir",
			Value:   c.Registry.StateDir,
			Message: "must not be empty",
		})
	}

	if c.Repos.Backend == "" {
		errors = append(errors, ValidationError{
			Field:   "repos.backend",
			Value:   c.Repos.Backend,
			Message: "a backend repository path is required",
		})
	}

	errors = append(errors, c.validatePool()...)
	errors = append(errors, c.validatePorts()...)
	errors = append(errors, c.validateLock()...)

	if c.Health.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "health.timeout_seconds",
			Value:   c.Health.TimeoutSeconds,
			Message: "must not be negative",
		})
	}

	if !branchPrefixRegex.MatchString(c.Branch.Prefix) {
		errors = append(errors, ValidationError{
			Field:   "branch.prefix",
			Value:   c.Branch.Prefix,
			Message: "must start with a letter and contain only alphanumeric, hyphen, underscore",
		})
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

func (c *Config) validatePool() []ValidationError {
	var errors []ValidationError
	if c.Pool.MaxThreads < 1 {
		errors = append(errors, ValidationError{
			Field:   "pool.max_threads",
			Value:   c.Pool.MaxThreads,
			Message: "must be at least 1",
		})
	}
	return errors
}

func (c *Config) validatePorts() []ValidationError {
	var errors []ValidationError

	if c.Ports.BaseBackend < 1024 || c.Ports.BaseBackend > 65535-c.Pool.MaxThreads {
		errors = append(errors, ValidationError{
			Field:   "ports.base_backend",
			Value:   c.Ports.BaseBackend,
			Message: "must leave room for max_threads ports above 1024",
		})
	}
	if c.Ports.BaseFrontend < 1024 || c.Ports.BaseFrontend > 65535-c.Pool.MaxThreads {
		errors = append(errors, ValidationError{
			Field:   "ports.base_frontend",
			Value:   c.Ports.BaseFrontend,
			Message: "must leave room for max_threads ports above 1024",
		})
	}

	// The two derived ranges must not collide: a backend port equal to some
	// other thread's frontend port would break the uniqueness invariant.
	if c.Pool.MaxThreads >= 1 {
		bLo, bHi := c.Ports.BaseBackend+1, c.Ports.BaseBackend+c.Pool.MaxThreads
		fLo, fHi := c.Ports.BaseFrontend+1, c.Ports.BaseFrontend+c.Pool.MaxThreads
		if bLo <= fHi && fLo <= bHi {
			errors = append(errors, ValidationError{
				Field:   "ports.base_frontend",
				Value:   c.Ports.BaseFrontend,
				Message: "frontend port range overlaps backend port range",
			})
		}
	}

	if c.Ports.LegacyBlockSize < 4 {
		errors = append(errors, ValidationError{
			Field:   "ports.legacy_block_size",
			Value:   c.Ports.LegacyBlockSize,
			Message: "must be at least 4 (legacy threads used four sequential ports)",
		})
	}

	return errors
}

func (c *Config) validateLock() []ValidationError {
	var errors []ValidationError
	if c.Lock.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "lock.timeout_seconds",
			Value:   c.Lock.TimeoutSeconds,
			Message: "must be at least 1",
		})
	}
	if c.Lock.StaleAfterSeconds < c.Lock.TimeoutSeconds {
		errors = append(errors, ValidationError{
			Field:   "lock.stale_after_seconds",
			Value:   c.Lock.StaleAfterSeconds,
			Message: "must be at least lock.timeout_seconds, or waiters reclaim live locks",
		})
	}
	return errors
}
