package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/openpromo/hermes/repository"
)

// ClusterTable is the in-memory lookup from segmentation cluster id to
// human-readable profile name. It is loaded explicitly via Reload and the
// loaded table is immutable; Reload swaps the whole map rather than patching
// entries in place.
type ClusterTable struct {
	repo repository.ClusterProfileRepository

	mu    sync.RWMutex
	names map[int]string
}

func NewClusterTable(repo repository.ClusterProfileRepository) *ClusterTable {
	return &ClusterTable{repo: repo, names: map[int]string{}}
}

// Reload loads all cluster profiles from the database and atomically replaces
// the current table.
func (t *ClusterTable) Reload(ctx context.Context) error {
	if t == nil || t.repo == nil {
		return errors.New("cluster profile repository not configured")
	}
	rows, err := t.repo.ListAll(ctx)
	if err != nil {
		return err
	}

	names := make(map[int]string, len(rows))
	for _, row := range rows {
		names[row.ClusterID] = row.ProfileName
	}

	t.mu.Lock()
	t.names = names
	t.mu.Unlock()
	return nil
}

// Name returns the profile name for the cluster id, if known
func (t *ClusterTable) Name(clusterID int) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.names[clusterID]
	return name, ok
}

// Len returns the number of loaded profiles
func (t *ClusterTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}
