package snapshots

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"family-ledger-go/internal/config"
	"family-ledger-go/internal/db"
	aggregationdomain "family-ledger-go/internal/domain/aggregation"
)

func newSQLiteRepository(t *testing.T) *GormRepository {
	t.Helper()
	cfg := config.Config{Store: config.StoreConfig{
		Driver:     config.StoreDriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
	}}

	gormDB, err := db.Open(cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gormDB) })

	if err := db.Migrate(cfg, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGorm(gormDB)
}

func sampleSnapshot(id, userID string, createdAt time.Time) *aggregationdomain.Snapshot {
	return &aggregationdomain.Snapshot{
		ID:     id,
		UserID: userID,
		From:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		Source: aggregationdomain.SourceServer,
		Totals: aggregationdomain.Totals{Income: 1000, Expenses: 650, Remaining: 350, RemainingPercent: 35},
		Groups: []aggregationdomain.Group{{
			Name:  "Housing",
			Total: 650,
			Count: 1,
			Items: []aggregationdomain.Item{{ID: "e1", Title: "Rent", Amount: 650, Kind: aggregationdomain.KindPublic}},
		}},
		CreatedAt: createdAt,
	}
}

func TestGormRepositoryRoundTrip(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"s1", "s2", "s3"} {
		if err := repo.Save(ctx, sampleSnapshot(id, "u1", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	if err := repo.Save(ctx, sampleSnapshot("other", "u2", base)); err != nil {
		t.Fatalf("save other: %v", err)
	}

	list, err := repo.List(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "s3" || list[1].ID != "s2" {
		t.Fatalf("expected newest two snapshots, got %+v", list)
	}

	got, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Totals.Remaining != 350 || len(got.Groups) != 1 || got.Groups[0].Items[0].Title != "Rent" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if !got.From.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range start %v", got.From)
	}
}

func TestGormRepositoryNotFound(t *testing.T) {
	repo := newSQLiteRepository(t)

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, aggregationdomain.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
}
