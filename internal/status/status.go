// Package status answers read-only queries about live threads. Queries skip
// the registry gate (display reads tolerate a concurrent rewrite, which is
// atomic anyway) and enrich each record with a live container count from the
// runtime. Enrichment is best-effort: an unreachable runtime degrades the
// count to unknown rather than failing the query.
package status

import (
	"github.com/weft-sh/weft/internal/logging"
	"github.com/weft-sh/weft/internal/registry"
	"github.com/weft-sh/weft/internal/resource"
)

// ContainersUnknown is the container count reported when the runtime could
// not be queried.
const ContainersUnknown = -1

// Thread is a registry record enriched with live runtime state.
type Thread struct {
	registry.Record
	// Containers is the thread's running container count, or
	// ContainersUnknown when the runtime query failed.
	Containers int
}

// Service serves list and info queries.
type Service struct {
	store   registry.Store
	runtime resource.ContainerProvider
	log     *logging.Logger
}

// New creates a Service.
func New(store registry.Store, runtime resource.ContainerProvider, log *logging.Logger) *Service {
	return &Service{
		store:   store,
		runtime: runtime,
		log:     log,
	}
}

// List returns every live record, enriched.
func (s *Service) List() ([]Thread, error) {
	records, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	threads := make([]Thread, 0, len(records))
	for _, rec := range records {
		threads = append(threads, s.enrich(rec))
	}
	return threads, nil
}

// Info returns the enriched record for id, or ErrNotFound.
func (s *Service) Info(id int) (Thread, error) {
	rec, err := s.store.Get(id)
	if err != nil {
		return Thread{}, err
	}
	return s.enrich(rec), nil
}

// enrich attaches the live container count to a record.
func (s *Service) enrich(rec registry.Record) Thread {
	count, err := s.runtime.RunningContainers(rec.ID)
	if err != nil {
		s.log.WithThread(rec.ID).Warn("container count unavailable", "error", err)
		count = ContainersUnknown
	}
	return Thread{Record: rec, Containers: count}
}
