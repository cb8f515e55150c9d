package aggregation

import (
	"context"
	"time"

	"family-ledger-go/internal/cache"
	"family-ledger-go/internal/domain/ledger"
	"family-ledger-go/pkg/logger"
	"github.com/google/uuid"
)

const (
	defaultRecentIncomes  = 4
	defaultSnapshotsLimit = 20
	maxSnapshotsLimit     = 200
)

type Loader interface {
	Load(ctx context.Context, mount *cache.Mount, filter ledger.ListFilter, collections ...cache.Collection) (cache.Snapshot, error)
}

// Reporter serves the authoritative totals for a range.
type Reporter interface {
	Remaining(ctx context.Context, r ledger.Range) (*ledger.RemainingReport, error)
}

type Config struct {
	SnapshotsEnabled bool
	RecentIncomes    int
}

type Service struct {
	loader    Loader
	reporter  Reporter
	snapshots SnapshotRepository
	cfg       Config
	log       logger.Logger
	now       func() time.Time
}

// NewService builds the dashboard service. snapshots may be nil, which
// disables the history.
func NewService(loader Loader, reporter Reporter, snapshots SnapshotRepository, cfg Config, log logger.Logger) *Service {
	if cfg.RecentIncomes <= 0 {
		cfg.RecentIncomes = defaultRecentIncomes
	}
	return &Service{
		loader:    loader,
		reporter:  reporter,
		snapshots: snapshots,
		cfg:       cfg,
		log:       logger.OrNop(log).Component("aggregation"),
		now:       time.Now,
	}
}

// Dashboard builds the range's dashboard and records it in the snapshot
// history.
func (s *Service) Dashboard(ctx context.Context, mount *cache.Mount, viewer ledger.User, r ledger.Range) (*Dashboard, error) {
	dashboard, err := s.Build(ctx, mount, viewer, r)
	if err != nil {
		return nil, err
	}
	s.saveSnapshot(ctx, viewer, dashboard)
	return dashboard, nil
}

// Build loads the range's collections and reduces them to totals and
// de-duplicated category groups without touching the history; exports use
// it. Collection failures never fail the call; they are listed in
// Dashboard.Degraded.
func (s *Service) Build(ctx context.Context, mount *cache.Mount, viewer ledger.User, r ledger.Range) (*Dashboard, error) {
	if r.From.IsZero() && r.To.IsZero() {
		r = ledger.MonthRange(s.now())
	}

	collections := []cache.Collection{cache.Incomes, cache.Expenses, cache.Approved}
	if viewer.Role.IsAdmin() {
		collections = append(collections, cache.Pending)
	}

	snapshot, err := s.loader.Load(ctx, mount, ledger.FilterForRange(r), collections...)
	if err != nil {
		return nil, err
	}

	dashboard := &Dashboard{
		From:          r.From,
		To:            r.To,
		Groups:        GroupByCategory(snapshot.Expenses, ExcludeMaterialized(snapshot.Expenses, snapshot.Approved)),
		RecentIncomes: recentIncomes(snapshot.Incomes, s.cfg.RecentIncomes),
		Pending:       pendingSummaries(snapshot.Pending),
		Degraded:      make([]string, 0, len(snapshot.Failures)),
		GeneratedAt:   s.now().UTC(),
	}
	for _, failure := range snapshot.Failures {
		dashboard.Degraded = append(dashboard.Degraded, string(failure.Collection))
	}

	report, err := s.reporter.Remaining(ctx, r)
	if err != nil {
		s.log.BusinessError("aggregation.dashboard: remaining report unavailable, summing locally", err)
		dashboard.Totals = FallbackTotals(snapshot.Incomes, snapshot.Expenses, snapshot.Approved)
		dashboard.Source = SourceClient
	} else {
		dashboard.Totals = ServerTotals(*report)
		dashboard.Source = SourceServer
	}

	if !mount.Active() {
		return nil, cache.ErrUnmounted
	}
	return dashboard, nil
}

func (s *Service) saveSnapshot(ctx context.Context, viewer ledger.User, dashboard *Dashboard) {
	if s.snapshots == nil || !s.cfg.SnapshotsEnabled {
		return
	}

	snapshot := &Snapshot{
		ID:        uuid.NewString(),
		UserID:    viewer.ID,
		From:      dashboard.From,
		To:        dashboard.To,
		Source:    dashboard.Source,
		Totals:    dashboard.Totals,
		Groups:    dashboard.Groups,
		CreatedAt: dashboard.GeneratedAt,
	}
	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		s.log.InternalError("aggregation.snapshot: save failed", err, "snapshot_id", snapshot.ID)
	}
}

// Snapshots lists the viewer's stored dashboards, newest first.
func (s *Service) Snapshots(ctx context.Context, viewer ledger.User, limit int) ([]Snapshot, error) {
	if s.snapshots == nil {
		return []Snapshot{}, nil
	}
	switch {
	case limit <= 0:
		limit = defaultSnapshotsLimit
	case limit > maxSnapshotsLimit:
		limit = maxSnapshotsLimit
	}
	return s.snapshots.List(ctx, viewer.ID, limit)
}

func (s *Service) Snapshot(ctx context.Context, viewer ledger.User, id string) (*Snapshot, error) {
	if s.snapshots == nil {
		return nil, ErrSnapshotNotFound
	}
	snapshot, err := s.snapshots.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if snapshot.UserID != viewer.ID {
		return nil, ErrSnapshotNotFound
	}
	return snapshot, nil
}

func recentIncomes(incomes []ledger.Income, limit int) []RecentIncome {
	if len(incomes) > limit {
		incomes = incomes[:limit]
	}
	result := make([]RecentIncome, 0, len(incomes))
	for _, income := range incomes {
		result = append(result, RecentIncome{
			ID:         income.ID,
			SourceName: income.SourceName,
			Amount:     income.Amount,
			Currency:   income.Currency,
			Date:       income.Date,
		})
	}
	return result
}

func pendingSummaries(pending []ledger.PersonalExpenseRequest) []PendingSummary {
	result := make([]PendingSummary, 0, len(pending))
	for _, request := range pending {
		result = append(result, PendingSummary{
			ID:                  request.ID,
			Title:               firstNonEmpty(request.Title, untitled),
			Requester:           request.User.Name(),
			Price:               request.DisplayPrice(),
			ApprovalsCount:      request.ApprovalsCount,
			RequiredAdminsCount: request.RequiredAdminsCount,
		})
	}
	return result
}
