// Package history persists completed QA runs, newest first, up to a fixed
// number of entries.
package history

import (
	"context"
	"errors"

	"github.com/entrhq/qarunner/pkg/types"
)

// DefaultLimit is the number of entries kept when no limit is configured.
const DefaultLimit = 100

var ErrNotFound = errors.New("history: entry not found")

// Store is the history backend used by the QA service.
type Store interface {
	// Add prepends entry and evicts anything beyond the store's limit.
	Add(ctx context.Context, entry *types.HistoryEntry) error

	// List returns all entries, newest first.
	List(ctx context.Context) ([]*types.HistoryEntry, error)

	// GetByName returns the newest entry for projectName, or ErrNotFound.
	GetByName(ctx context.Context, projectName string) (*types.HistoryEntry, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
