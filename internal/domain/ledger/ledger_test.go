package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type fakeGateway struct {
	incomeCalls   int
	expenseCalls  int
	categoryCalls int
	lastIncome    CreateIncomeInput
	err           error
}

func (g *fakeGateway) ListCategories(ctx context.Context) ([]Category, error) {
	g.categoryCalls++
	if g.err != nil {
		return nil, g.err
	}
	return []Category{{ID: "c1", Name: "Housing"}}, nil
}

func (g *fakeGateway) CreateIncome(ctx context.Context, input CreateIncomeInput) (*Income, error) {
	g.incomeCalls++
	g.lastIncome = input
	if g.err != nil {
		return nil, g.err
	}
	return &Income{ID: "inc-1", SourceName: input.SourceName, Amount: input.Amount}, nil
}

func (g *fakeGateway) CreateExpense(ctx context.Context, input CreateExpenseInput) (*PublicExpenseEntry, error) {
	g.expenseCalls++
	if g.err != nil {
		return nil, g.err
	}
	return &PublicExpenseEntry{ID: "exp-1", Title: input.Title, AmountAvg: input.AmountAvg}, nil
}

type fakeRefresher struct {
	incomes  int
	expenses int
}

func (r *fakeRefresher) RefreshIncomes(ctx context.Context) error {
	r.incomes++
	return nil
}

func (r *fakeRefresher) RefreshExpenses(ctx context.Context) error {
	r.expenses++
	return nil
}

func TestResolvedAmountFallbackChain(t *testing.T) {
	cases := []struct {
		name  string
		entry PublicExpenseEntry
		want  float64
	}{
		{"actual wins", PublicExpenseEntry{ActualAmount: Float(10), ApprovedAmount: Float(20), AmountAvg: Float(30)}, 10},
		{"approved next", PublicExpenseEntry{ApprovedAmount: Float(20), AmountAvg: Float(30)}, 20},
		{"avg next", PublicExpenseEntry{AmountAvg: Float(30), AmountMin: Float(5)}, 30},
		{"min next", PublicExpenseEntry{AmountMin: Float(5), AmountMax: Float(50)}, 5},
		{"max last", PublicExpenseEntry{AmountMax: Float(50)}, 50},
		{"zero present", PublicExpenseEntry{ActualAmount: Float(0), AmountAvg: Float(30)}, 0},
		{"nothing", PublicExpenseEntry{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.entry.ResolvedAmount(); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	request := PersonalExpenseRequest{ApprovedAmount: Float(180), AmountAvg: Float(150)}
	if got := request.ResolvedAmount(); got != 180 {
		t.Fatalf("expected approved amount, got %v", got)
	}
	request.ApprovedAmount = nil
	if got := request.ResolvedAmount(); got != 150 {
		t.Fatalf("expected avg fallback, got %v", got)
	}
}

func TestDisplayPrice(t *testing.T) {
	request := PersonalExpenseRequest{AmountMin: Float(100), AmountAvg: Float(150)}
	if got := request.DisplayPrice(); got != 150 {
		t.Fatalf("expected avg, got %v", got)
	}
	request.RequestedAmount = Float(120)
	if got := request.DisplayPrice(); got != 120 {
		t.Fatalf("expected requested, got %v", got)
	}
}

func TestAmountsOrdered(t *testing.T) {
	if !AmountsOrdered(Float(1), Float(2), Float(3)) {
		t.Fatalf("expected ordered")
	}
	if AmountsOrdered(Float(5), Float(2), Float(3)) {
		t.Fatalf("expected unordered")
	}
	if !AmountsOrdered(nil, Float(2), nil) {
		t.Fatalf("expected single amount to be ordered")
	}
}

func TestSumAvoidsFloatDrift(t *testing.T) {
	if got := Sum(0.1, 0.2); got != 0.3 {
		t.Fatalf("expected 0.3, got %v", got)
	}
}

func TestRefsAcceptStringOrObject(t *testing.T) {
	var entry PublicExpenseEntry
	payload := `{"_id":"e1","title":"Rent","category":"Housing","created_by":"u1"}`
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.Category.Name != "Housing" || entry.CreatedBy.ID != "u1" {
		t.Fatalf("unexpected refs %+v %+v", entry.Category, entry.CreatedBy)
	}

	payload = `{"_id":"e2","category":{"_id":"c1","name":"Food"},"created_by":{"_id":"u2","username":"bob","role":"adminA"}}`
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.Category.ID != "c1" || entry.Category.Name != "Food" {
		t.Fatalf("unexpected category %+v", entry.Category)
	}
	if entry.CreatedBy.User == nil || entry.CreatedBy.User.Role != RoleAdminA || entry.CreatedBy.Name() != "bob" {
		t.Fatalf("unexpected user %+v", entry.CreatedBy)
	}
}

func TestListFilterValues(t *testing.T) {
	filter := ListFilter{
		Status: StatusApproved,
		From:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		User:   "u1",
	}
	got := filter.Values().Encode()
	want := "from=2025-03-01&status=approved&to=2025-03-31&user=u1"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMonthRange(t *testing.T) {
	r := MonthRange(time.Date(2024, 2, 17, 15, 0, 0, 0, time.UTC))
	if r.From.Day() != 1 || r.To.Day() != 29 || r.To.Month() != time.February {
		t.Fatalf("unexpected range %v - %v", r.From, r.To)
	}
}

func TestCreateIncomeRequiresSuperadmin(t *testing.T) {
	gateway := &fakeGateway{}
	service := NewService(gateway, &fakeRefresher{}, nil)

	_, err := service.CreateIncome(context.Background(), User{ID: "u1", Role: RoleAdminA}, CreateIncomeInput{SourceName: "Salary", Amount: 100})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if gateway.incomeCalls != 0 {
		t.Fatalf("expected no gateway call")
	}
}

func TestCreateIncomeValidatesAndRefetches(t *testing.T) {
	gateway := &fakeGateway{}
	refresher := &fakeRefresher{}
	service := NewService(gateway, refresher, nil)
	service.now = func() time.Time { return time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC) }
	actor := User{ID: "root", Role: RoleSuperadmin}

	_, err := service.CreateIncome(context.Background(), actor, CreateIncomeInput{SourceName: "  ", Amount: 100})
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	income, err := service.CreateIncome(context.Background(), actor, CreateIncomeInput{SourceName: " Salary ", Amount: 2500, Currency: "eur"})
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	if income.SourceName != "Salary" || gateway.lastIncome.Currency != "EUR" {
		t.Fatalf("expected normalized input, got %+v", gateway.lastIncome)
	}
	if gateway.lastIncome.Date.IsZero() {
		t.Fatalf("expected default date")
	}
	if refresher.incomes != 1 {
		t.Fatalf("expected incomes refetch, got %d", refresher.incomes)
	}
}

func TestCreateExpenseRequiresAdminAndAmounts(t *testing.T) {
	gateway := &fakeGateway{}
	refresher := &fakeRefresher{}
	service := NewService(gateway, refresher, nil)

	_, err := service.CreateExpense(context.Background(), User{Role: RoleUser}, CreateExpenseInput{Title: "Rent"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	_, err = service.CreateExpense(context.Background(), User{Role: RoleAdminB}, CreateExpenseInput{Title: "Rent", Category: "Housing", AmountMin: Float(1)})
	var validation *ValidationError
	if !errors.As(err, &validation) || len(validation.Fields) != 2 {
		t.Fatalf("expected two missing amounts, got %v", err)
	}

	_, err = service.CreateExpense(context.Background(), User{Role: RoleAdminB}, CreateExpenseInput{
		Title: "Rent", Category: "Housing", AmountMin: Float(900), AmountAvg: Float(1000), AmountMax: Float(1100),
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if gateway.expenseCalls != 1 || refresher.expenses != 1 {
		t.Fatalf("expected one call and one refetch, got %d %d", gateway.expenseCalls, refresher.expenses)
	}
}

type mapCategoriesCache struct {
	items map[string][]Category
}

func (c *mapCategoriesCache) GetByUserID(userID string) ([]Category, bool) {
	items, ok := c.items[userID]
	return items, ok
}

func (c *mapCategoriesCache) SetByUserID(userID string, categories []Category, ttl time.Duration) {
	c.items[userID] = categories
}

func (c *mapCategoriesCache) DeleteByUserID(userID string) {
	delete(c.items, userID)
}

func TestListCategoriesUsesCache(t *testing.T) {
	gateway := &fakeGateway{}
	cache := &mapCategoriesCache{items: make(map[string][]Category)}
	service := NewService(gateway, &fakeRefresher{}, nil).WithCategoriesCache(cache, time.Minute)
	viewer := User{ID: "u1", Role: RoleAdminA}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		categories, err := service.ListCategories(ctx, viewer)
		if err != nil {
			t.Fatalf("list categories: %v", err)
		}
		if len(categories) != 1 || categories[0].Name != "Housing" {
			t.Fatalf("unexpected categories %+v", categories)
		}
	}
	if gateway.categoryCalls != 1 {
		t.Fatalf("expected one gateway call, got %d", gateway.categoryCalls)
	}

	_, err := service.CreateExpense(ctx, viewer, CreateExpenseInput{
		Title: "Rent", Category: "Housing", AmountMin: Float(1), AmountAvg: Float(1), AmountMax: Float(1),
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if _, err := service.ListCategories(ctx, viewer); err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if gateway.categoryCalls != 2 {
		t.Fatalf("expected cache invalidated by a new expense, got %d calls", gateway.categoryCalls)
	}
}

func TestListCategoriesWithoutCache(t *testing.T) {
	gateway := &fakeGateway{}
	service := NewService(gateway, nil, nil)

	for i := 0; i < 2; i++ {
		if _, err := service.ListCategories(context.Background(), User{ID: "u1"}); err != nil {
			t.Fatalf("list categories: %v", err)
		}
	}
	if gateway.categoryCalls != 2 {
		t.Fatalf("expected every call to reach the gateway, got %d", gateway.categoryCalls)
	}
}
