package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/weft-sh/weft/internal/allocator"
	"github.com/weft-sh/weft/internal/config"
	"github.com/weft-sh/weft/internal/gate"
	"github.com/weft-sh/weft/internal/logging"
	"github.com/weft-sh/weft/internal/registry"
	"github.com/weft-sh/weft/internal/resource"
	"github.com/weft-sh/weft/internal/runtime"
)

// registryFileName is the flat-file registry's name under the state dir.
const registryFileName = "registry"

// app holds the assembled core, one per command invocation.
type app struct {
	cfg      config.Config
	log      *logging.Logger
	store    registry.Store
	gate     *gate.Gate
	alloc    *allocator.Allocator
	provider *resource.Live

	closers []func() error
}

// newApp loads configuration and assembles the core packages.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logging.NewLogger(cfg.Registry.StateDir, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, log.Close)

	a.store, err = openStore(cfg, a)
	if err != nil {
		a.close()
		return nil, err
	}

	staleAfter := time.Duration(cfg.Lock.StaleAfterSeconds) * time.Second
	a.gate = gate.New(filepath.Join(cfg.Registry.StateDir, "registry.lock"), staleAfter)

	docker := runtime.NewDocker(cfg.Project, cfg.Health.MigrateCommand, log)
	a.provider = resource.NewLive(docker)
	a.alloc = allocator.New(a.store, a.gate, a.provider, cfg, log)
	return a, nil
}

// openStore builds the configured registry backend.
func openStore(cfg config.Config, a *app) (registry.Store, error) {
	derive := allocator.Derive(cfg.Ports)
	switch cfg.Registry.Backend {
	case "", "file":
		return registry.NewFileStore(filepath.Join(cfg.Registry.StateDir, registryFileName), derive), nil
	case "sqlite":
		store, err := registry.OpenSQLiteStore(filepath.Join(cfg.Registry.StateDir, "registry.db"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}
}

// close releases the app's resources, most-recent first.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// parseThreadID parses a positional thread id argument.
func parseThreadID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid thread id %q: want a positive integer", arg)
	}
	return id, nil
}

// withApp assembles the core, runs fn, and cleans up.
func withApp(fn func(a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
