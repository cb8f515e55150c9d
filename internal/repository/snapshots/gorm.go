package snapshots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	aggregationdomain "family-ledger-go/internal/domain/aggregation"
	"gorm.io/gorm"
)

// record is the row layout of dashboard_snapshots. Totals and groups are
// stored as JSON documents.
type record struct {
	ID             string    `gorm:"column:id;primaryKey"`
	UserID         string    `gorm:"column:user_id"`
	RangeFrom      time.Time `gorm:"column:range_from"`
	RangeTo        time.Time `gorm:"column:range_to"`
	Source         string    `gorm:"column:source"`
	Totals         string    `gorm:"column:totals"`
	CategoryGroups string    `gorm:"column:category_groups"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (record) TableName() string {
	return "dashboard_snapshots"
}

// GormRepository serves both the postgres and the sqlite store.
type GormRepository struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Save(ctx context.Context, snapshot *aggregationdomain.Snapshot) error {
	row, err := toRecord(snapshot)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *GormRepository) List(ctx context.Context, userID string, limit int) ([]aggregationdomain.Snapshot, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []record
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]aggregationdomain.Snapshot, 0, len(rows))
	for _, row := range rows {
		snapshot, err := fromRecord(row)
		if err != nil {
			return nil, err
		}
		result = append(result, *snapshot)
	}
	return result, nil
}

func (r *GormRepository) Get(ctx context.Context, id string) (*aggregationdomain.Snapshot, error) {
	var row record
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, aggregationdomain.ErrSnapshotNotFound
		}
		return nil, err
	}
	return fromRecord(row)
}

func toRecord(snapshot *aggregationdomain.Snapshot) (record, error) {
	totals, err := json.Marshal(snapshot.Totals)
	if err != nil {
		return record{}, fmt.Errorf("encode totals: %w", err)
	}
	groups := snapshot.Groups
	if groups == nil {
		groups = []aggregationdomain.Group{}
	}
	encodedGroups, err := json.Marshal(groups)
	if err != nil {
		return record{}, fmt.Errorf("encode groups: %w", err)
	}
	createdAt := snapshot.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return record{
		ID:             snapshot.ID,
		UserID:         snapshot.UserID,
		RangeFrom:      snapshot.From.UTC(),
		RangeTo:        snapshot.To.UTC(),
		Source:         string(snapshot.Source),
		Totals:         string(totals),
		CategoryGroups: string(encodedGroups),
		CreatedAt:      createdAt.UTC(),
	}, nil
}

func fromRecord(row record) (*aggregationdomain.Snapshot, error) {
	snapshot := &aggregationdomain.Snapshot{
		ID:        row.ID,
		UserID:    row.UserID,
		From:      row.RangeFrom,
		To:        row.RangeTo,
		Source:    aggregationdomain.Source(row.Source),
		CreatedAt: row.CreatedAt,
	}
	if err := json.Unmarshal([]byte(row.Totals), &snapshot.Totals); err != nil {
		return nil, fmt.Errorf("decode totals of snapshot %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.CategoryGroups), &snapshot.Groups); err != nil {
		return nil, fmt.Errorf("decode groups of snapshot %s: %w", row.ID, err)
	}
	return snapshot, nil
}
