package inmemory

import (
	"context"
	"sync"

	aggregationdomain "family-ledger-go/internal/domain/aggregation"
)

// SnapshotRepository keeps dashboard snapshots for the lifetime of the
// process. It backs STORE_DRIVER=memory.
type SnapshotRepository struct {
	mu    sync.RWMutex
	items []aggregationdomain.Snapshot
	max   int
}

// NewSnapshotRepository keeps at most max snapshots; older ones are
// dropped first. A max of zero keeps everything.
func NewSnapshotRepository(max int) *SnapshotRepository {
	return &SnapshotRepository{max: max}
}

func (r *SnapshotRepository) Save(ctx context.Context, snapshot *aggregationdomain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, cloneSnapshot(*snapshot))
	if r.max > 0 && len(r.items) > r.max {
		r.items = append([]aggregationdomain.Snapshot(nil), r.items[len(r.items)-r.max:]...)
	}
	return nil
}

// List walks the history backwards, so the newest snapshot comes first.
func (r *SnapshotRepository) List(ctx context.Context, userID string, limit int) ([]aggregationdomain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]aggregationdomain.Snapshot, 0)
	for i := len(r.items) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		if r.items[i].UserID == userID {
			result = append(result, cloneSnapshot(r.items[i]))
		}
	}
	return result, nil
}

func (r *SnapshotRepository) Get(ctx context.Context, id string) (*aggregationdomain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.items {
		if r.items[i].ID == id {
			snapshot := cloneSnapshot(r.items[i])
			return &snapshot, nil
		}
	}
	return nil, aggregationdomain.ErrSnapshotNotFound
}

func cloneSnapshot(snapshot aggregationdomain.Snapshot) aggregationdomain.Snapshot {
	if snapshot.Groups == nil {
		return snapshot
	}
	groups := make([]aggregationdomain.Group, len(snapshot.Groups))
	for i, group := range snapshot.Groups {
		groups[i] = group
		groups[i].Items = append([]aggregationdomain.Item(nil), group.Items...)
	}
	snapshot.Groups = groups
	return snapshot
}
