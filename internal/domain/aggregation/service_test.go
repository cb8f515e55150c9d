package aggregation

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"family-ledger-go/internal/cache"
	"family-ledger-go/internal/domain/ledger"
	"family-ledger-go/internal/gateway"
	"family-ledger-go/internal/gateway/gatewaytest"
)

type fakeLoader struct {
	snapshot    cache.Snapshot
	collections []cache.Collection
	filter      ledger.ListFilter
}

func (l *fakeLoader) Load(ctx context.Context, mount *cache.Mount, filter ledger.ListFilter, collections ...cache.Collection) (cache.Snapshot, error) {
	l.collections = collections
	l.filter = filter
	if !mount.Active() {
		return cache.Snapshot{}, cache.ErrUnmounted
	}
	return l.snapshot, nil
}

type fakeReporter struct {
	report *ledger.RemainingReport
	err    error
}

func (r *fakeReporter) Remaining(ctx context.Context, rng ledger.Range) (*ledger.RemainingReport, error) {
	return r.report, r.err
}

type fakeSnapshots struct {
	saved []Snapshot
	err   error
}

func (r *fakeSnapshots) Save(ctx context.Context, snapshot *Snapshot) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, *snapshot)
	return nil
}

func (r *fakeSnapshots) List(ctx context.Context, userID string, limit int) ([]Snapshot, error) {
	result := make([]Snapshot, 0)
	for i := len(r.saved) - 1; i >= 0 && len(result) < limit; i-- {
		if r.saved[i].UserID == userID {
			result = append(result, r.saved[i])
		}
	}
	return result, nil
}

func (r *fakeSnapshots) Get(ctx context.Context, id string) (*Snapshot, error) {
	for i := range r.saved {
		if r.saved[i].ID == id {
			return &r.saved[i], nil
		}
	}
	return nil, ErrSnapshotNotFound
}

var viewer = ledger.User{ID: "u1", Username: "root", Role: ledger.RoleSuperadmin}

func TestDashboardDefaultsToCurrentMonth(t *testing.T) {
	loader := &fakeLoader{}
	service := NewService(loader, &fakeReporter{report: &ledger.RemainingReport{}}, nil, Config{}, nil)
	service.now = func() time.Time { return time.Date(2025, 4, 18, 9, 0, 0, 0, time.UTC) }

	dashboard, err := service.Dashboard(context.Background(), nil, viewer, ledger.Range{})
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dashboard.From.Day() != 1 || dashboard.To.Day() != 30 {
		t.Fatalf("expected april range, got %v - %v", dashboard.From, dashboard.To)
	}
	if loader.filter.From != dashboard.From {
		t.Fatalf("expected range passed to loader")
	}
	if len(loader.collections) != 4 {
		t.Fatalf("expected admin to load the pending queue, got %v", loader.collections)
	}
}

func TestDashboardSkipsPendingForRegularUsers(t *testing.T) {
	loader := &fakeLoader{}
	service := NewService(loader, &fakeReporter{report: &ledger.RemainingReport{}}, nil, Config{}, nil)

	if _, err := service.Dashboard(context.Background(), nil, ledger.User{ID: "u2", Role: ledger.RoleUser}, ledger.Range{}); err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	for _, collection := range loader.collections {
		if collection == cache.Pending {
			t.Fatalf("did not expect pending for a regular user")
		}
	}
}

func TestDashboardPrefersServerTotals(t *testing.T) {
	loader := &fakeLoader{snapshot: cache.Snapshot{
		Incomes: []ledger.Income{{Amount: 1}},
	}}
	reporter := &fakeReporter{report: &ledger.RemainingReport{TotalIncome: 1000, TotalExpenses: 650, Remaining: 350}}
	service := NewService(loader, reporter, nil, Config{}, nil)

	dashboard, err := service.Dashboard(context.Background(), nil, viewer, ledger.Range{})
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dashboard.Source != SourceServer || dashboard.Totals.Income != 1000 || dashboard.Totals.RemainingPercent != 35 {
		t.Fatalf("expected server totals, got %+v", dashboard.Totals)
	}
}

func TestDashboardFallsBackWhenReportFails(t *testing.T) {
	loader := &fakeLoader{snapshot: cache.Snapshot{
		Incomes:  []ledger.Income{{Amount: 1000}},
		Expenses: []ledger.PublicExpenseEntry{publicEntry("e1", "Rent", "Housing", 650)},
	}}
	service := NewService(loader, &fakeReporter{err: errors.New("down")}, nil, Config{}, nil)

	dashboard, err := service.Dashboard(context.Background(), nil, viewer, ledger.Range{})
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dashboard.Source != SourceClient || dashboard.Totals.Remaining != 350 {
		t.Fatalf("expected client totals, got %+v", dashboard.Totals)
	}
}

func TestDashboardSummaries(t *testing.T) {
	bob := ledger.User{ID: "u2", Username: "bob", DisplayName: "Bob"}
	loader := &fakeLoader{snapshot: cache.Snapshot{
		Incomes: []ledger.Income{{ID: "i1"}, {ID: "i2"}, {ID: "i3"}, {ID: "i4"}, {ID: "i5"}},
		Pending: []ledger.PersonalExpenseRequest{{
			ID:                  "p1",
			Title:               "Monitor",
			AmountMin:           ledger.Float(100),
			AmountAvg:           ledger.Float(150),
			User:                ledger.UserRef{ID: bob.ID, User: &bob},
			RequiredAdminsCount: 2,
		}},
	}}
	service := NewService(loader, &fakeReporter{report: &ledger.RemainingReport{}}, nil, Config{}, nil)

	dashboard, err := service.Dashboard(context.Background(), nil, viewer, ledger.Range{})
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(dashboard.RecentIncomes) != 4 || dashboard.RecentIncomes[3].ID != "i4" {
		t.Fatalf("expected first four incomes, got %+v", dashboard.RecentIncomes)
	}
	pending := dashboard.Pending
	if len(pending) != 1 || pending[0].Requester != "Bob" || pending[0].Price != 150 || pending[0].RequiredAdminsCount != 2 {
		t.Fatalf("unexpected pending summary %+v", pending)
	}
}

func TestDashboardDropsUnmountedView(t *testing.T) {
	service := NewService(&fakeLoader{}, &fakeReporter{report: &ledger.RemainingReport{}}, nil, Config{}, nil)
	mount := cache.NewMount()
	mount.Unmount()

	_, err := service.Dashboard(context.Background(), mount, viewer, ledger.Range{})
	if !errors.Is(err, cache.ErrUnmounted) {
		t.Fatalf("expected unmounted error, got %v", err)
	}
}

func TestDashboardStoresSnapshots(t *testing.T) {
	repo := &fakeSnapshots{}
	service := NewService(&fakeLoader{}, &fakeReporter{report: &ledger.RemainingReport{TotalIncome: 10, Remaining: 10}}, repo, Config{SnapshotsEnabled: true}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := service.Dashboard(ctx, nil, viewer, ledger.Range{}); err != nil {
			t.Fatalf("dashboard: %v", err)
		}
	}

	list, err := service.Snapshots(ctx, viewer, 2)
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(list) != 2 || list[0].ID != repo.saved[2].ID {
		t.Fatalf("expected newest two snapshots, got %+v", list)
	}

	other := ledger.User{ID: "someone-else"}
	if _, err := service.Snapshot(ctx, other, list[0].ID); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected snapshots scoped to their owner, got %v", err)
	}
}

func TestBuildLeavesHistoryAlone(t *testing.T) {
	repo := &fakeSnapshots{}
	service := NewService(&fakeLoader{}, &fakeReporter{report: &ledger.RemainingReport{TotalIncome: 10, Remaining: 10}}, repo, Config{SnapshotsEnabled: true}, nil)

	dashboard, err := service.Build(context.Background(), nil, viewer, ledger.Range{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if dashboard.Totals.Income != 10 {
		t.Fatalf("expected server totals, got %+v", dashboard.Totals)
	}
	if len(repo.saved) != 0 {
		t.Fatalf("expected no snapshot from build, got %d", len(repo.saved))
	}
}

func TestDashboardIgnoresSnapshotFailures(t *testing.T) {
	repo := &fakeSnapshots{err: errors.New("disk full")}
	service := NewService(&fakeLoader{}, &fakeReporter{report: &ledger.RemainingReport{}}, repo, Config{SnapshotsEnabled: true}, nil)

	if _, err := service.Dashboard(context.Background(), nil, viewer, ledger.Range{}); err != nil {
		t.Fatalf("expected snapshot failure to be swallowed, got %v", err)
	}
}

func TestDashboardToleratesIncomeFailure(t *testing.T) {
	fake := gatewaytest.New()
	defer fake.Close()
	fake.AddUser("root", "pw", ledger.RoleSuperadmin)
	fake.AddIncome(ledger.Income{SourceName: "Salary", Amount: 1000})
	fake.AddExpense(publicEntry("", "Rent", "Housing", 650))
	fake.Fail("GET /api/incomes", http.StatusInternalServerError)
	fake.Fail("GET /api/reports/remaining", http.StatusBadGateway)

	client, err := gateway.New(gateway.Config{BaseURL: fake.URL, Timeout: 5 * time.Second}, nil, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	user, err := client.Login(context.Background(), ledger.Credentials{Username: "root", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	store := cache.NewStore(client, client.Session(), nil)
	service := NewService(store, client, nil, Config{}, nil)

	dashboard, err := service.Dashboard(context.Background(), nil, user, ledger.Range{})
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dashboard.Totals.Income != 0 || dashboard.Totals.GlobalExpenses != 650 {
		t.Fatalf("expected expense totals with zero income, got %+v", dashboard.Totals)
	}
	if len(dashboard.Degraded) != 1 || dashboard.Degraded[0] != string(cache.Incomes) {
		t.Fatalf("expected incomes degraded, got %v", dashboard.Degraded)
	}
	housing := findGroup(dashboard.Groups, "Housing")
	if housing == nil || housing.Total != 650 {
		t.Fatalf("expected housing group, got %+v", dashboard.Groups)
	}
}
