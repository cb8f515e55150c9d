package aggregation

import (
	"regexp"
	"strconv"
	"strings"

	"family-ledger-go/internal/domain/ledger"
)

const (
	UncategorizedName = "Uncategorized"
	PersonalGroupName = "Personal Expenses"
	untitled          = "Untitled"
)

var (
	mirrorTitle          = regexp.MustCompile(`(?i)^\s*\[Personal\]\s*(.+?)\s*$`)
	mirrorPrefix         = regexp.MustCompile(`(?i)^\s*\[Personal\]`)
	approvedPersonalNote = regexp.MustCompile(`(?i)approved personal expense`)
)

// MirrorIndex describes which personal requests are already materialized in
// the public ledger.
type MirrorIndex struct {
	keys    map[string]struct{}
	sources map[string]struct{}
}

func (m MirrorIndex) Materialized(request ledger.PersonalExpenseRequest) bool {
	if _, ok := m.sources[request.ID]; ok && request.ID != "" {
		return true
	}
	_, ok := m.keys[personalKey(request)]
	return ok
}

// MirrorKeys indexes public entries that mirror a personal request, either
// through source_personal_expense_id or a "[Personal] <title>" title at the
// same resolved amount.
func MirrorKeys(entries []ledger.PublicExpenseEntry) MirrorIndex {
	index := MirrorIndex{
		keys:    make(map[string]struct{}),
		sources: make(map[string]struct{}),
	}
	for _, entry := range entries {
		if entry.SourcePersonalExpenseID != "" {
			index.sources[entry.SourcePersonalExpenseID] = struct{}{}
		}
		match := mirrorTitle.FindStringSubmatch(entry.Title)
		if match == nil {
			continue
		}
		index.keys[dedupKey(match[1], entry.ResolvedAmount())] = struct{}{}
	}
	return index
}

func personalKey(request ledger.PersonalExpenseRequest) string {
	return dedupKey(request.Title, request.ResolvedAmount())
}

func dedupKey(title string, amount float64) string {
	return strings.ToLower(strings.TrimSpace(title)) + "__" + strconv.FormatFloat(amount, 'f', -1, 64)
}

// ExcludeMaterialized drops approved requests that already appear in the
// public ledger under a mirror entry.
func ExcludeMaterialized(entries []ledger.PublicExpenseEntry, approved []ledger.PersonalExpenseRequest) []ledger.PersonalExpenseRequest {
	index := MirrorKeys(entries)
	result := make([]ledger.PersonalExpenseRequest, 0, len(approved))
	for _, request := range approved {
		if index.Materialized(request) {
			continue
		}
		result = append(result, request)
	}
	return result
}

type ItemKind string

const (
	KindPublic   ItemKind = "public"
	KindPersonal ItemKind = "personal"
)

type Item struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Amount float64  `json:"amount"`
	Kind   ItemKind `json:"kind"`
}

type Group struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
	Items []Item  `json:"items"`
}

type groupBuilder struct {
	name  string
	total ledger.Accumulator
	items []Item
}

func (b *groupBuilder) add(item Item) {
	b.items = append(b.items, item)
	b.total.Add(item.Amount)
}

// GroupByCategory groups public entries by category name in first-seen
// order and merges the personal items into the "Personal Expenses" group.
func GroupByCategory(entries []ledger.PublicExpenseEntry, personal []ledger.PersonalExpenseRequest) []Group {
	order := make([]*groupBuilder, 0)
	byName := make(map[string]*groupBuilder)
	bucket := func(name string) *groupBuilder {
		if builder, ok := byName[name]; ok {
			return builder
		}
		builder := &groupBuilder{name: name}
		byName[name] = builder
		order = append(order, builder)
		return builder
	}

	for _, entry := range entries {
		name := strings.TrimSpace(entry.Category.Name)
		if name == "" {
			name = UncategorizedName
		}
		bucket(name).add(Item{
			ID:     entry.ID,
			Title:  firstNonEmpty(entry.Title, entry.Note, entry.Category.Name, untitled),
			Amount: entry.ResolvedAmount(),
			Kind:   KindPublic,
		})
	}

	if len(personal) > 0 {
		group := bucket(PersonalGroupName)
		for _, request := range personal {
			group.add(Item{
				ID:     request.ID,
				Title:  firstNonEmpty(request.Title, untitled),
				Amount: request.ResolvedAmount(),
				Kind:   KindPersonal,
			})
		}
	}

	groups := make([]Group, 0, len(order))
	for _, builder := range order {
		groups = append(groups, Group{
			Name:  builder.name,
			Total: builder.total.Float64(),
			Count: len(builder.items),
			Items: builder.items,
		})
	}
	return groups
}

type Source string

const (
	SourceServer Source = "server"
	SourceClient Source = "client"
)

type Totals struct {
	Income           float64 `json:"income"`
	GlobalExpenses   float64 `json:"global_expenses"`
	PersonalApproved float64 `json:"personal_approved"`
	Expenses         float64 `json:"expenses"`
	Remaining        float64 `json:"remaining"`
	RemainingPercent float64 `json:"remaining_percent"`
}

// ServerTotals takes the gateway's report as the headline figures.
func ServerTotals(report ledger.RemainingReport) Totals {
	return Totals{
		Income:           report.TotalIncome,
		GlobalExpenses:   report.TotalGlobalExpenses,
		PersonalApproved: report.TotalPersonalApproved,
		Expenses:         report.TotalExpenses,
		Remaining:        report.Remaining,
		RemainingPercent: remainingPercent(report.TotalIncome, report.Remaining),
	}
}

// IsMirror reports whether a public entry is a materialized personal
// request and must stay out of the global total.
func IsMirror(entry ledger.PublicExpenseEntry) bool {
	return entry.SourcePersonalExpenseID != "" ||
		approvedPersonalNote.MatchString(entry.Note) ||
		mirrorPrefix.MatchString(entry.Title)
}

// FallbackTotals sums the fetched collections when the gateway report is
// unavailable. Mirrors are left out of the global total and every approved
// request is counted once in the personal total.
func FallbackTotals(incomes []ledger.Income, entries []ledger.PublicExpenseEntry, approved []ledger.PersonalExpenseRequest) Totals {
	var income, global, personal ledger.Accumulator
	for _, item := range incomes {
		income.Add(item.Amount)
	}
	for _, entry := range entries {
		if IsMirror(entry) {
			continue
		}
		global.Add(entry.ResolvedAmount())
	}
	for _, request := range approved {
		if request.Status != "" && request.Status != ledger.StatusApproved {
			continue
		}
		personal.Add(request.ResolvedAmount())
	}

	totals := Totals{
		Income:           income.Float64(),
		GlobalExpenses:   global.Float64(),
		PersonalApproved: personal.Float64(),
	}
	totals.Expenses = ledger.Sum(totals.GlobalExpenses, totals.PersonalApproved)
	totals.Remaining, totals.RemainingPercent = Remaining(totals.Income, totals.Expenses)
	return totals
}

// Remaining returns income minus expenses and that balance as a share of
// income, clamped to 0..100. The share is 0 without income.
func Remaining(income, expenses float64) (float64, float64) {
	remaining := ledger.Sum(income, -expenses)
	return remaining, remainingPercent(income, remaining)
}

func remainingPercent(income, remaining float64) float64 {
	if income <= 0 {
		return 0
	}
	percent := remaining * 100 / income
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
