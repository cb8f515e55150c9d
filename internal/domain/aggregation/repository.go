package aggregation

import "context"

type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *Snapshot) error
	List(ctx context.Context, userID string, limit int) ([]Snapshot, error)
	Get(ctx context.Context, id string) (*Snapshot, error)
}
