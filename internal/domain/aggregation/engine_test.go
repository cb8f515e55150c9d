package aggregation

import (
	"testing"

	"family-ledger-go/internal/domain/ledger"
)

func approved(id, title string, amount float64) ledger.PersonalExpenseRequest {
	return ledger.PersonalExpenseRequest{
		ID:             id,
		Title:          title,
		Status:         ledger.StatusApproved,
		ApprovedAmount: ledger.Float(amount),
	}
}

func publicEntry(id, title, category string, amount float64) ledger.PublicExpenseEntry {
	return ledger.PublicExpenseEntry{
		ID:        id,
		Title:     title,
		Category:  ledger.CategoryRef{Name: category},
		AmountAvg: ledger.Float(amount),
	}
}

func countItems(groups []Group, amount float64) int {
	count := 0
	for _, group := range groups {
		for _, item := range group.Items {
			if item.Amount == amount {
				count++
			}
		}
	}
	return count
}

func findGroup(groups []Group, name string) *Group {
	for i := range groups {
		if groups[i].Name == name {
			return &groups[i]
		}
	}
	return nil
}

func TestMirroredRequestAppearsOnce(t *testing.T) {
	entries := []ledger.PublicExpenseEntry{publicEntry("e1", "[Personal] Car repair", "Transport", 500)}
	requests := []ledger.PersonalExpenseRequest{approved("p1", "Car repair", 500)}

	groups := GroupByCategory(entries, ExcludeMaterialized(entries, requests))

	if got := countItems(groups, 500); got != 1 {
		t.Fatalf("expected exactly one item of 500, got %d", got)
	}
}

func TestDedupIgnoresCaseAndWhitespace(t *testing.T) {
	entries := []ledger.PublicExpenseEntry{publicEntry("e1", "  [personal]   car repair  ", "", 500)}
	requests := []ledger.PersonalExpenseRequest{approved("p1", "  Car Repair  ", 500)}

	if survivors := ExcludeMaterialized(entries, requests); len(survivors) != 0 {
		t.Fatalf("expected request matched, got %+v", survivors)
	}
}

func TestDedupRequiresSameAmount(t *testing.T) {
	entries := []ledger.PublicExpenseEntry{publicEntry("e1", "[Personal] Car repair", "", 450)}
	requests := []ledger.PersonalExpenseRequest{approved("p1", "Car repair", 500)}

	survivors := ExcludeMaterialized(entries, requests)
	if len(survivors) != 1 {
		t.Fatalf("expected request kept on amount mismatch, got %d", len(survivors))
	}
}

func TestUnmatchedRequestGoesToPersonalGroup(t *testing.T) {
	entries := []ledger.PublicExpenseEntry{publicEntry("e1", "Groceries", "Food", 80)}
	requests := []ledger.PersonalExpenseRequest{approved("p1", "Dentist", 120)}

	groups := GroupByCategory(entries, ExcludeMaterialized(entries, requests))

	personal := findGroup(groups, PersonalGroupName)
	if personal == nil || personal.Count != 1 || personal.Items[0].ID != "p1" || personal.Items[0].Kind != KindPersonal {
		t.Fatalf("expected dentist in personal group, got %+v", groups)
	}
}

func TestPersonalGroupMergesPublicAndPersonalItems(t *testing.T) {
	entries := []ledger.PublicExpenseEntry{
		publicEntry("e1", "Gym membership", PersonalGroupName, 40),
		publicEntry("e2", "Rent", "Housing", 900),
	}
	requests := []ledger.PersonalExpenseRequest{approved("p1", "Glasses", 200)}

	groups := GroupByCategory(entries, requests)

	if len(groups) != 2 {
		t.Fatalf("expected two groups, got %d", len(groups))
	}
	personal := findGroup(groups, PersonalGroupName)
	if personal == nil || personal.Count != 2 || personal.Total != 240 {
		t.Fatalf("expected merged personal bucket, got %+v", personal)
	}
	if personal.Items[0].ID != "e1" || personal.Items[1].ID != "p1" {
		t.Fatalf("expected public item kept before personal, got %+v", personal.Items)
	}
}

func TestGroupingOrderAndFallbacks(t *testing.T) {
	entries := []ledger.PublicExpenseEntry{
		publicEntry("e1", "Bus", "Transport", 2),
		{ID: "e2", Note: "no title", AmountMin: ledger.Float(5)},
		publicEntry("e3", "", "Food", 10),
		publicEntry("e4", "Train", "Transport", 30),
		{ID: "e5"},
	}

	groups := GroupByCategory(entries, nil)

	names := []string{"Transport", UncategorizedName, "Food"}
	if len(groups) != len(names) {
		t.Fatalf("expected %d groups, got %+v", len(names), groups)
	}
	for i, name := range names {
		if groups[i].Name != name {
			t.Fatalf("group %d: expected %q, got %q", i, name, groups[i].Name)
		}
	}
	if groups[0].Total != 32 || groups[0].Count != 2 {
		t.Fatalf("unexpected transport group %+v", groups[0])
	}
	uncategorized := groups[1]
	if uncategorized.Items[0].Title != "no title" || uncategorized.Items[1].Title != "Untitled" {
		t.Fatalf("unexpected title fallbacks %+v", uncategorized.Items)
	}
	if groups[2].Items[0].Title != "Food" {
		t.Fatalf("expected category name fallback, got %q", groups[2].Items[0].Title)
	}
}

func TestUntitledPersonalItem(t *testing.T) {
	groups := GroupByCategory(nil, []ledger.PersonalExpenseRequest{approved("p1", "  ", 30)})

	personal := findGroup(groups, PersonalGroupName)
	if personal == nil || len(personal.Items) != 1 {
		t.Fatalf("expected one personal item, got %+v", groups)
	}
	if personal.Items[0].Title != "Untitled" {
		t.Fatalf("expected Untitled, got %q", personal.Items[0].Title)
	}
}

func TestExplicitReferenceExcludesRegardlessOfTitle(t *testing.T) {
	entries := []ledger.PublicExpenseEntry{{
		ID:                      "e1",
		Title:                   "Reimbursement",
		ApprovedAmount:          ledger.Float(75),
		SourcePersonalExpenseID: "p1",
	}}
	requests := []ledger.PersonalExpenseRequest{
		approved("p1", "Taxi to airport", 80),
		approved("p2", "Reimbursement", 75),
	}

	survivors := ExcludeMaterialized(entries, requests)
	if len(survivors) != 1 || survivors[0].ID != "p2" {
		t.Fatalf("expected only p2 to survive, got %+v", survivors)
	}
}

func TestDedupIsIdempotent(t *testing.T) {
	entries := []ledger.PublicExpenseEntry{publicEntry("e1", "[Personal] Car repair", "", 500)}
	requests := []ledger.PersonalExpenseRequest{approved("p1", "Car repair", 500), approved("p2", "Boots", 60)}

	once := ExcludeMaterialized(entries, requests)
	twice := ExcludeMaterialized(entries, once)
	if len(once) != 1 || len(twice) != 1 || twice[0].ID != "p2" {
		t.Fatalf("expected stable result, got %+v then %+v", once, twice)
	}
}

func TestRemainingComputation(t *testing.T) {
	remaining, percent := Remaining(1000, 650)
	if remaining != 350 || percent != 35 {
		t.Fatalf("expected 350 and 35, got %v and %v", remaining, percent)
	}

	if _, percent := Remaining(0, 10); percent != 0 {
		t.Fatalf("expected 0 without income, got %v", percent)
	}
	if _, percent := Remaining(100, 150); percent != 0 {
		t.Fatalf("expected clamp at 0, got %v", percent)
	}
}

func TestFallbackTotalsCountApprovedOnce(t *testing.T) {
	incomes := []ledger.Income{{Amount: 600}, {Amount: 400}}
	entries := []ledger.PublicExpenseEntry{
		publicEntry("e1", "Rent", "Housing", 450),
		publicEntry("e2", "[Personal] Office chair", "", 180),
		{ID: "e3", Title: "Chair", Note: "Approved personal expense", ApprovedAmount: ledger.Float(20)},
	}
	requests := []ledger.PersonalExpenseRequest{approved("p1", "Office chair", 180), approved("p2", "Cable", 20)}

	totals := FallbackTotals(incomes, entries, requests)

	if totals.Income != 1000 || totals.GlobalExpenses != 450 || totals.PersonalApproved != 200 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if totals.Expenses != 650 || totals.Remaining != 350 || totals.RemainingPercent != 35 {
		t.Fatalf("unexpected derived totals %+v", totals)
	}
}

func TestServerTotalsUseReport(t *testing.T) {
	totals := ServerTotals(ledger.RemainingReport{
		TotalIncome:           2000,
		TotalGlobalExpenses:   500,
		TotalPersonalApproved: 100,
		TotalExpenses:         600,
		Remaining:             1400,
	})
	if totals.RemainingPercent != 70 || totals.Expenses != 600 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}
