package ledger

import (
	"net/http"

	"family-ledger-go/internal/cache"
	ledgerdomain "family-ledger-go/internal/domain/ledger"
	commonhandler "family-ledger-go/internal/transport/httpserver/handler/common"
	"family-ledger-go/internal/transport/httpserver/middleware"
	"github.com/go-chi/chi/v5"
)

type createIncomeRequest struct {
	SourceName string  `json:"source_name"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	Date       string  `json:"date"`
	Note       string  `json:"note"`
}

type createExpenseRequest struct {
	Title     string   `json:"title"`
	Category  string   `json:"category"`
	AmountMin *float64 `json:"amount_min"`
	AmountAvg *float64 `json:"amount_avg"`
	AmountMax *float64 `json:"amount_max"`
	Note      string   `json:"note"`
	Date      string   `json:"date"`
}

func (h *Handlers) ListIncomes(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.load(w, r, "incomes.list", cache.Incomes)
	if !ok {
		return
	}
	commonhandler.Items(w, snapshot.Incomes)
}

func (h *Handlers) CreateIncome(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var req createIncomeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	date, err := parseDate(req.Date, "date")
	if err != nil {
		writeDomainError(w, h.log, "incomes.create", err)
		return
	}

	income, err := h.Ledger.CreateIncome(r.Context(), user, ledgerdomain.CreateIncomeInput{
		SourceName: req.SourceName,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Date:       date,
		Note:       req.Note,
	})
	if err != nil {
		writeDomainError(w, h.log, "incomes.create", err, "user_id", user.ID)
		return
	}
	commonhandler.Item(w, http.StatusCreated, income)
}

func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.load(w, r, "expenses.list", cache.Expenses)
	if !ok {
		return
	}
	commonhandler.Items(w, snapshot.Expenses)
}

// GetExpense reads one public expense from the gateway; an unknown id is a
// 404.
func (h *Handlers) GetExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := h.Gateway.GetExpense(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.log, "expenses.get", err, "id", id)
		return
	}
	commonhandler.Item(w, http.StatusOK, entry)
}

func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var req createExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	date, err := parseDate(req.Date, "date")
	if err != nil {
		writeDomainError(w, h.log, "expenses.create", err)
		return
	}

	entry, err := h.Ledger.CreateExpense(r.Context(), user, ledgerdomain.CreateExpenseInput{
		Title:     req.Title,
		Category:  req.Category,
		AmountMin: req.AmountMin,
		AmountAvg: req.AmountAvg,
		AmountMax: req.AmountMax,
		Note:      req.Note,
		Date:      date,
	})
	if err != nil {
		writeDomainError(w, h.log, "expenses.create", err, "user_id", user.ID)
		return
	}
	commonhandler.Item(w, http.StatusCreated, entry)
}

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	categories, err := h.Ledger.ListCategories(r.Context(), user)
	if err != nil {
		writeDomainError(w, h.log, "categories.list", err, "user_id", user.ID)
		return
	}
	commonhandler.Items(w, categories)
}

// load fetches one collection through the cache. A list endpoint has
// nothing to degrade to, so a failed collection is an error here.
func (h *Handlers) load(w http.ResponseWriter, r *http.Request, op string, collection cache.Collection) (cache.Snapshot, bool) {
	filter, err := commonhandler.ParseListFilter(r)
	if err != nil {
		writeDomainError(w, h.log, op, err)
		return cache.Snapshot{}, false
	}

	snapshot, err := h.Store.Load(r.Context(), commonhandler.RequestMount(r), filter, collection)
	if err == nil {
		err = commonhandler.CollectionError(snapshot, collection)
	}
	if err != nil {
		writeDomainError(w, h.log, op, err)
		return cache.Snapshot{}, false
	}
	return snapshot, true
}
