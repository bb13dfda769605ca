package registry

import (
	"fmt"

	wefterrors "github.com/weft-sh/weft/internal/errors"
)

// Store is the durability contract for the registry. Whatever the backing
// implementation, ReplaceAll must be atomic: a reader concurrent with a
// crashed writer observes either the prior table or the new one, never a
// torn record.
//
// Mutations are expressed as load → transform in memory → ReplaceAll and
// must run while holding the registry gate. Pure reads need no gate; they
// may observe a value from between two writer lock windows, but never a
// partial write.
type Store interface {
	// Load returns all live records in table order.
	Load() ([]Record, error)

	// ReplaceAll atomically rewrites the full table.
	ReplaceAll(records []Record) error

	// Get returns the record for id, or ErrNotFound.
	Get(id int) (Record, error)
}

// getRecord is the shared read-only linear scan behind Store.Get.
func getRecord(s Store, id int) (Record, error) {
	records, err := s.Load()
	if err != nil {
		return Record{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, fmt.Errorf("%w: id %d", wefterrors.ErrNotFound, id)
}
