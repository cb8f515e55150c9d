// Package gatewaytest runs an in-memory ledger gateway over httptest. It
// implements the REST contract the client consumes, with per-route failure
// injection and call counters.
package gatewaytest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"family-ledger-go/internal/domain/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const refreshCookie = "refreshToken"

var personalPrefix = regexp.MustCompile(`(?i)^\s*\[Personal\]`)

// MirrorMode controls what the fake does when a personal request reaches
// approved.
type MirrorMode int

const (
	MirrorNone MirrorMode = iota
	// MirrorLegacy writes a "[Personal] <title>" public entry without a
	// back reference.
	MirrorLegacy
	// MirrorReference also sets source_personal_expense_id.
	MirrorReference
)

type account struct {
	password string
	user     ledger.User
}

type Server struct {
	*httptest.Server

	mu             sync.Mutex
	now            func() time.Time
	seq            int
	secret         []byte
	tokenTTL       time.Duration
	requiredAdmins int
	mirror         MirrorMode

	accounts      map[string]*account
	accessTokens  map[string]string
	refreshTokens map[string]string

	incomes       []ledger.Income
	expenses      []ledger.PublicExpenseEntry
	categories    []ledger.Category
	personal      []*ledger.PersonalExpenseRequest
	approvals     map[string][]ledger.ApprovalRecord
	notifications map[string][]ledger.Notification
	uploads       []ledger.Attachment

	failures map[string]int
	calls    map[string]int
}

func New() *Server {
	s := &Server{
		now:            time.Now,
		secret:         []byte("gatewaytest"),
		tokenTTL:       15 * time.Minute,
		requiredAdmins: 1,
		accounts:       make(map[string]*account),
		accessTokens:   make(map[string]string),
		refreshTokens:  make(map[string]string),
		approvals:      make(map[string][]ledger.ApprovalRecord),
		notifications:  make(map[string][]ledger.Notification),
		failures:       make(map[string]int),
		calls:          make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.track)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.Post("/refresh", s.refresh)
		r.Post("/logout", s.logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/api/incomes", s.listIncomes)
		r.Post("/api/incomes", s.createIncome)
		r.Get("/api/expenses", s.listExpenses)
		r.Post("/api/expenses", s.createExpense)
		r.Get("/api/expenses/{id}", s.getExpense)
		r.Get("/api/expense-categories", s.listCategories)

		r.Get("/api/personal-expenses", s.listPersonal)
		r.Post("/api/personal-expenses", s.createPersonal)
		r.Get("/api/personal-expenses/pending/list", s.listPending)
		r.Get("/api/personal-expenses/{id}", s.getPersonal)
		r.Put("/api/personal-expenses/{id}", s.updatePersonal)
		r.Post("/api/personal-expenses/{id}/submit", s.submitPersonal)
		r.Post("/api/personal-expenses/{id}/cancel", s.cancelPersonal)
		r.Post("/api/personal-expenses/{id}/approve", s.decidePersonal)
		r.Get("/api/personal-expenses/{id}/approvals", s.listApprovals)

		r.Get("/api/reports/remaining", s.remaining)
		r.Get("/api/reports/approved-expenses", s.approvedExpenses)

		r.Get("/api/notifications", s.listNotifications)
		r.Post("/api/notifications/mark-read", s.markRead)

		r.Post("/api/upload", s.upload)

		r.Get("/api/admin/users", s.listUsers)
		r.Post("/api/admin/users", s.createUser)
		r.Put("/api/admin/users/{id}", s.updateUser)
		r.Delete("/api/admin/users/{id}", s.deleteUser)
	})

	return r
}

// Route keys are "<METHOD> <path>", e.g. "GET /api/incomes".
func routeKey(r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := routeKey(r)
		s.mu.Lock()
		s.calls[key]++
		status, failing := s.failures[key]
		s.mu.Unlock()

		if failing {
			writeJSON(w, status, map[string]string{"message": "injected failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Fail makes every call to route answer with status until ClearFailures.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = status
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]int)
}

func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, count := range s.calls {
		total += count
	}
	return total
}

func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

func (s *Server) SetRequiredAdmins(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requiredAdmins = count
}

func (s *Server) SetMirrorMode(mode MirrorMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = mode
}

func (s *Server) SetTokenTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenTTL = ttl
}

// ExpireAccessTokens invalidates every issued access token; refresh cookies
// stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTokens = make(map[string]string)
}

// RevokeRefreshTokens makes every later refresh fail.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens = make(map[string]string)
}

func (s *Server) AddUser(username, password string, role ledger.Role) ledger.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := ledger.User{
		ID:          s.nextID("user"),
		Username:    username,
		DisplayName: strings.ToUpper(username[:1]) + username[1:],
		Email:       username + "@example.com",
		Role:        role,
	}
	s.accounts[username] = &account{password: password, user: user}
	return user
}

func (s *Server) AddCategory(name string) ledger.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	category := ledger.Category{ID: s.nextID("cat"), Name: name}
	s.categories = append(s.categories, category)
	return category
}

func (s *Server) AddIncome(income ledger.Income) ledger.Income {
	s.mu.Lock()
	defer s.mu.Unlock()
	if income.ID == "" {
		income.ID = s.nextID("inc")
	}
	if income.Date.IsZero() {
		income.Date = s.now().UTC()
	}
	s.incomes = append(s.incomes, income)
	return income
}

func (s *Server) AddExpense(entry ledger.PublicExpenseEntry) ledger.PublicExpenseEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = s.nextID("exp")
	}
	if entry.Date.IsZero() {
		entry.Date = s.now().UTC()
	}
	s.expenses = append(s.expenses, entry)
	return entry
}

// AddPersonalExpense stores request as is. Owner must reference a user
// added with AddUser.
func (s *Server) AddPersonalExpense(request ledger.PersonalExpenseRequest) ledger.PersonalExpenseRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if request.ID == "" {
		request.ID = s.nextID("pe")
	}
	if request.Status == "" {
		request.Status = ledger.StatusDraft
	}
	if request.RequiredAdminsCount == 0 {
		request.RequiredAdminsCount = s.requiredAdmins
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = s.now().UTC()
		request.UpdatedAt = request.CreatedAt
	}
	request.User = s.populateUser(request.User.ID)
	stored := request
	s.personal = append(s.personal, &stored)
	return stored
}

func (s *Server) AddNotification(userID string, notification ledger.Notification) ledger.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if notification.ID == "" {
		notification.ID = s.nextID("note")
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = s.now().UTC()
	}
	s.notifications[userID] = append(s.notifications[userID], notification)
	return notification
}

func (s *Server) PersonalExpense(id string) (ledger.PersonalExpenseRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request := s.findPersonal(id)
	if request == nil {
		return ledger.PersonalExpenseRequest{}, false
	}
	return *request, true
}

func (s *Server) Expenses() []ledger.PublicExpenseEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.PublicExpenseEntry(nil), s.expenses...)
}

func (s *Server) Uploads() []ledger.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Attachment(nil), s.uploads...)
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *Server) userByID(id string) (ledger.User, bool) {
	if id == "" {
		return ledger.User{}, false
	}
	for _, acc := range s.accounts {
		if acc.user.ID == id {
			return acc.user, true
		}
	}
	return ledger.User{}, false
}

func (s *Server) populateUser(id string) ledger.UserRef {
	if user, ok := s.userByID(id); ok {
		return ledger.UserRef{ID: id, User: &user}
	}
	return ledger.UserRef{ID: id}
}

func (s *Server) findPersonal(id string) *ledger.PersonalExpenseRequest {
	for _, request := range s.personal {
		if request.ID == id {
			return request
		}
	}
	return nil
}

// Auth.

type credentials struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if !decode(w, r, &body) {
		return
	}
	if body.Username == "" || body.Password == "" {
		writeMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[body.Username]; exists {
		s.mu.Unlock()
		writeMessage(w, http.StatusConflict, "username taken")
		return
	}
	user := ledger.User{
		ID:          s.nextID("user"),
		Username:    body.Username,
		DisplayName: body.DisplayName,
		Email:       body.Email,
		Role:        ledger.RoleUser,
	}
	s.accounts[body.Username] = &account{password: body.Password, user: user}
	s.mu.Unlock()

	s.startSession(w, user)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[body.Username]
	s.mu.Unlock()
	if !ok || acc.password != body.Password {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	s.startSession(w, acc.user)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookie)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "No refresh token")
		return
	}

	s.mu.Lock()
	user, ok := s.userByID(s.refreshTokens[cookie.Value])
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	token, err := s.issueAccessToken(user.ID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accessToken": token, "user": user})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(refreshCookie); err == nil {
		s.mu.Lock()
		delete(s.refreshTokens, cookie.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: "", Path: "/api/auth", MaxAge: -1, HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) startSession(w http.ResponseWriter, user ledger.User) {
	token, err := s.issueAccessToken(user.ID)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	refresh := s.nextID("refresh")
	s.refreshTokens[refresh] = user.ID
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: refresh, Path: "/api/auth", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{"accessToken": token, "user": user})
}

func (s *Server) issueAccessToken(userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claims := jwt.MapClaims{
		"sub": userID,
		"jti": s.nextID("jti"),
		"exp": s.now().Add(s.tokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}
	s.accessTokens[token] = userID
	return token, nil
}

type userKey struct{}

func withUser(ctx context.Context, user ledger.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func userFrom(ctx context.Context) ledger.User {
	user, _ := ctx.Value(userKey{}).(ledger.User)
	return user
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		user, ok := s.userByID(s.accessTokens[token])
		s.mu.Unlock()
		if token == "" || !ok {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// Incomes and public expenses.

func (s *Server) listIncomes(w http.ResponseWriter, r *http.Request) {
	window := parseWindow(r)
	s.mu.Lock()
	result := make([]ledger.Income, 0, len(s.incomes))
	for _, income := range s.incomes {
		if window.contains(income.Date) {
			result = append(result, income)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (s *Server) createIncome(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if !user.Role.CanRecordIncome() {
		writeMessage(w, http.StatusForbidden, "Only superadmin can add incomes")
		return
	}
	var body ledger.CreateIncomeInput
	if !decode(w, r, &body) {
		return
	}
	if body.SourceName == "" || body.Amount <= 0 {
		writeMessage(w, http.StatusBadRequest, "source_name and amount are required")
		return
	}
	income := s.AddIncome(ledger.Income{
		SourceName: body.SourceName,
		Amount:     body.Amount,
		Currency:   body.Currency,
		Date:       body.Date,
		Note:       body.Note,
		CreatedBy:  ledger.UserRef{ID: user.ID},
	})
	writeJSON(w, http.StatusCreated, map[string]any{"item": income})
}

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	window := parseWindow(r)
	category := r.URL.Query().Get("category")
	s.mu.Lock()
	result := make([]ledger.PublicExpenseEntry, 0, len(s.expenses))
	for _, entry := range s.expenses {
		if !window.contains(entry.Date) {
			continue
		}
		if category != "" && entry.Category.Name != category && entry.Category.ID != category {
			continue
		}
		result = append(result, entry)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (s *Server) getExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.expenses {
		if entry.ID == id {
			writeJSON(w, http.StatusOK, map[string]any{"item": entry})
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Not found")
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if !user.Role.IsAdmin() {
		writeMessage(w, http.StatusForbidden, "Forbidden")
		return
	}
	var body ledger.CreateExpenseInput
	if !decode(w, r, &body) {
		return
	}
	if body.Title == "" || body.AmountMin == nil || body.AmountAvg == nil || body.AmountMax == nil {
		writeMessage(w, http.StatusBadRequest, "title and amounts are required")
		return
	}
	entry := s.AddExpense(ledger.PublicExpenseEntry{
		Title:     body.Title,
		Category:  s.categoryRef(body.Category),
		AmountMin: body.AmountMin,
		AmountAvg: body.AmountAvg,
		AmountMax: body.AmountMax,
		Note:      body.Note,
		Date:      body.Date,
		CreatedBy: ledger.UserRef{ID: user.ID},
	})
	writeJSON(w, http.StatusCreated, map[string]any{"item": entry})
}

func (s *Server) categoryRef(value string) ledger.CategoryRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, category := range s.categories {
		if category.ID == value || strings.EqualFold(category.Name, value) {
			return ledger.CategoryRef{ID: category.ID, Name: category.Name}
		}
	}
	return ledger.CategoryRef{Name: value}
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	result := append([]ledger.Category{}, s.categories...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

// Personal expenses.

func (s *Server) listPersonal(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	query := r.URL.Query()
	status := ledger.Status(query.Get("status"))
	owner := query.Get("user")
	if !user.Role.IsAdmin() {
		owner = user.ID
	}
	window := parseWindow(r)

	s.mu.Lock()
	result := make([]ledger.PersonalExpenseRequest, 0)
	for i := len(s.personal) - 1; i >= 0; i-- {
		request := s.personal[i]
		if status != "" && request.Status != status {
			continue
		}
		if owner != "" && request.User.ID != owner {
			continue
		}
		if !window.contains(request.CreatedAt) {
			continue
		}
		result = append(result, *request)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	if !userFrom(r.Context()).Role.IsAdmin() {
		writeMessage(w, http.StatusForbidden, "Forbidden")
		return
	}
	s.mu.Lock()
	result := make([]ledger.PersonalExpenseRequest, 0)
	for _, request := range s.personal {
		if request.Status == ledger.StatusPending {
			result = append(result, *request)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (s *Server) getPersonal(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	s.mu.Lock()
	request := s.findPersonal(chi.URLParam(r, "id"))
	var snapshot ledger.PersonalExpenseRequest
	if request != nil {
		snapshot = *request
	}
	s.mu.Unlock()

	if request == nil || (!user.Role.IsAdmin() && snapshot.User.ID != user.ID) {
		writeMessage(w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": snapshot})
}

func (s *Server) createPersonal(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	var body ledger.CreatePersonalExpenseInput
	if !decode(w, r, &body) {
		return
	}
	if body.Title == "" || body.AmountMin == nil || body.AmountAvg == nil || body.AmountMax == nil {
		writeMessage(w, http.StatusBadRequest, "title, amount_min, amount_avg, amount_max required")
		return
	}
	request := s.AddPersonalExpense(ledger.PersonalExpenseRequest{
		Title:           body.Title,
		Description:     body.Description,
		AmountMin:       body.AmountMin,
		AmountAvg:       body.AmountAvg,
		AmountMax:       body.AmountMax,
		RequestedAmount: body.RequestedAmount,
		StartDate:       body.StartDate,
		EndDate:         body.EndDate,
		Attachments:     body.Attachments,
		Status:          ledger.StatusDraft,
		User:            ledger.UserRef{ID: user.ID},
	})
	writeJSON(w, http.StatusCreated, map[string]any{"item": request})
}

// mutateOwned applies fn to the caller's own request under the lock.
func (s *Server) mutateOwned(w http.ResponseWriter, r *http.Request, fn func(*ledger.PersonalExpenseRequest) (int, string)) {
	user := userFrom(r.Context())
	s.mu.Lock()
	request := s.findPersonal(chi.URLParam(r, "id"))
	if request == nil {
		s.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "Not found")
		return
	}
	if request.User.ID != user.ID {
		s.mu.Unlock()
		writeMessage(w, http.StatusForbidden, "Forbidden")
		return
	}
	status, message := fn(request)
	if status == 0 {
		request.UpdatedAt = s.now().UTC()
	}
	snapshot := *request
	s.mu.Unlock()

	if status != 0 {
		writeMessage(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": snapshot})
}

func (s *Server) updatePersonal(w http.ResponseWriter, r *http.Request) {
	var patch ledger.PersonalExpensePatch
	if !decode(w, r, &patch) {
		return
	}
	s.mutateOwned(w, r, func(request *ledger.PersonalExpenseRequest) (int, string) {
		if request.Status != ledger.StatusDraft {
			return http.StatusBadRequest, "Only drafts can be edited"
		}
		if patch.Title != nil {
			request.Title = *patch.Title
		}
		if patch.Description != nil {
			request.Description = *patch.Description
		}
		if patch.AmountMin != nil {
			request.AmountMin = patch.AmountMin
		}
		if patch.AmountAvg != nil {
			request.AmountAvg = patch.AmountAvg
		}
		if patch.AmountMax != nil {
			request.AmountMax = patch.AmountMax
		}
		if patch.RequestedAmount != nil {
			request.RequestedAmount = patch.RequestedAmount
		}
		if patch.StartDate != nil {
			request.StartDate = patch.StartDate
		}
		if patch.EndDate != nil {
			request.EndDate = patch.EndDate
		}
		if patch.Attachments != nil {
			request.Attachments = patch.Attachments
		}
		return 0, ""
	})
}

func (s *Server) submitPersonal(w http.ResponseWriter, r *http.Request) {
	s.mutateOwned(w, r, func(request *ledger.PersonalExpenseRequest) (int, string) {
		if request.Status != ledger.StatusDraft {
			return http.StatusBadRequest, "Only drafts can be submitted"
		}
		request.Status = ledger.StatusPending
		request.ApprovalsCount = 0
		return 0, ""
	})
}

func (s *Server) cancelPersonal(w http.ResponseWriter, r *http.Request) {
	s.mutateOwned(w, r, func(request *ledger.PersonalExpenseRequest) (int, string) {
		if request.Status != ledger.StatusDraft && request.Status != ledger.StatusPending {
			return http.StatusBadRequest, "Cannot cancel"
		}
		request.Status = ledger.StatusCancelled
		return 0, ""
	})
}

// decidePersonal records an approval. The request becomes approved once
// approvals reach required_admins_count; any reject is final.
func (s *Server) decidePersonal(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if !user.Role.IsAdmin() {
		writeMessage(w, http.StatusForbidden, "Forbidden")
		return
	}
	var body ledger.DecisionPayload
	if !decode(w, r, &body) {
		return
	}
	if body.Decision != ledger.DecisionApprove && body.Decision != ledger.DecisionReject {
		writeMessage(w, http.StatusBadRequest, "Invalid decision")
		return
	}
	if body.Decision == ledger.DecisionApprove && body.ApprovedAmount == nil {
		writeMessage(w, http.StatusBadRequest, "approved_amount required")
		return
	}

	s.mu.Lock()
	request := s.findPersonal(chi.URLParam(r, "id"))
	if request == nil {
		s.mu.Unlock()
		writeMessage(w, http.StatusNotFound, "Not found")
		return
	}
	if request.Status != ledger.StatusPending {
		s.mu.Unlock()
		writeMessage(w, http.StatusBadRequest, "Request is not pending")
		return
	}

	now := s.now().UTC()
	record := ledger.ApprovalRecord{
		ID:        s.nextID("appr"),
		AdminUser: s.populateUser(user.ID),
		Decision:  body.Decision,
		Comment:   body.Comment,
		DecidedAt: now,
	}
	if body.Decision == ledger.DecisionApprove {
		record.ApprovedAmount = body.ApprovedAmount
	}
	s.approvals[request.ID] = append(s.approvals[request.ID], record)
	request.UpdatedAt = now

	switch body.Decision {
	case ledger.DecisionReject:
		request.Status = ledger.StatusRejected
		request.ApprovedAmount = nil
	case ledger.DecisionApprove:
		request.ApprovalsCount++
		if request.ApprovalsCount >= request.RequiredAdminsCount {
			request.Status = ledger.StatusApproved
			request.ApprovedAmount = body.ApprovedAmount
			s.materialize(request, now)
		}
	}

	owner := request.User.ID
	s.notifications[owner] = append(s.notifications[owner], ledger.Notification{
		ID:        s.nextID("note"),
		Message:   fmt.Sprintf("%s: %s", request.Title, body.Decision),
		Type:      "personal_expense",
		Link:      "/personal/" + request.ID,
		CreatedAt: now,
	})
	snapshot := *request
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"item": snapshot, "approvals": snapshot.ApprovalsCount})
}

func (s *Server) materialize(request *ledger.PersonalExpenseRequest, now time.Time) {
	if s.mirror == MirrorNone {
		return
	}
	entry := ledger.PublicExpenseEntry{
		ID:             s.nextID("exp"),
		Title:          "[Personal] " + request.Title,
		Category:       ledger.CategoryRef{Name: "Personal Expenses"},
		ApprovedAmount: request.ApprovedAmount,
		Note:           "Approved personal expense",
		Date:           now,
		CreatedBy:      ledger.UserRef{ID: request.User.ID},
	}
	if s.mirror == MirrorReference {
		entry.SourcePersonalExpenseID = request.ID
	}
	s.expenses = append(s.expenses, entry)
}

func (s *Server) listApprovals(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	request := s.findPersonal(chi.URLParam(r, "id"))
	result := append([]ledger.ApprovalRecord{}, s.approvals[chi.URLParam(r, "id")]...)
	s.mu.Unlock()
	if request == nil {
		writeMessage(w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvals": result})
}

// Reports.

func (s *Server) remaining(w http.ResponseWriter, r *http.Request) {
	window := parseWindow(r)
	s.mu.Lock()
	var income, global, personal float64
	for _, item := range s.incomes {
		if window.contains(item.Date) {
			income += item.Amount
		}
	}
	for _, entry := range s.expenses {
		if !window.contains(entry.Date) {
			continue
		}
		if personalPrefix.MatchString(entry.Title) || strings.EqualFold(entry.Note, "Approved personal expense") {
			continue
		}
		global += entry.ResolvedAmount()
	}
	for _, request := range s.personal {
		if request.Status == ledger.StatusApproved && window.contains(request.CreatedAt) {
			personal += request.ResolvedAmount()
		}
	}
	s.mu.Unlock()

	total := global + personal
	writeJSON(w, http.StatusOK, ledger.RemainingReport{
		TotalIncome:           income,
		TotalGlobalExpenses:   global,
		TotalPersonalApproved: personal,
		TotalExpenses:         total,
		Remaining:             income - total,
	})
}

func (s *Server) approvedExpenses(w http.ResponseWriter, r *http.Request) {
	window := parseWindow(r)
	owner := r.URL.Query().Get("user")
	s.mu.Lock()
	result := make([]ledger.PersonalExpenseRequest, 0)
	for _, request := range s.personal {
		if request.Status != ledger.StatusApproved || !window.contains(request.CreatedAt) {
			continue
		}
		if owner != "" && request.User.ID != owner {
			continue
		}
		result = append(result, *request)
	}
	s.mu.Unlock()

	if r.URL.Query().Get("format") != "csv" {
		writeJSON(w, http.StatusOK, map[string]any{"items": result})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="approved-expenses.csv"`)
	w.WriteHeader(http.StatusOK)
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"id", "title", "user", "approved_amount"})
	for _, request := range result {
		_ = writer.Write([]string{request.ID, request.Title, request.User.Name(), fmt.Sprint(request.ResolvedAmount())})
	}
	writer.Flush()
}

// Notifications and uploads.

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	s.mu.Lock()
	result := append([]ledger.Notification{}, s.notifications[user.ID]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	var body struct {
		IDs []string `json:"ids"`
	}
	if !decode(w, r, &body) {
		return
	}
	ids := make(map[string]struct{}, len(body.IDs))
	for _, id := range body.IDs {
		ids[id] = struct{}{}
	}

	s.mu.Lock()
	list := s.notifications[user.ID]
	for i := range list {
		if _, ok := ids[list[i].ID]; ok {
			list[i].Read = true
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	size, err := io.Copy(io.Discard, file)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	stored := s.nextID("file") + "-" + header.Filename
	attachment := ledger.Attachment{
		Filename:     stored,
		OriginalName: header.Filename,
		Mime:         header.Header.Get("Content-Type"),
		Size:         size,
		Path:         "/uploads/" + stored,
	}
	s.uploads = append(s.uploads, attachment)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"file": attachment})
}

// Admin users.

func requireSuperadmin(w http.ResponseWriter, r *http.Request) bool {
	if !userFrom(r.Context()).Role.CanManageUsers() {
		writeMessage(w, http.StatusForbidden, "Forbidden")
		return false
	}
	return true
}

func (s *Server) accountByID(id string) *account {
	for _, acc := range s.accounts {
		if acc.user.ID == id {
			return acc
		}
	}
	return nil
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	if !requireSuperadmin(w, r) {
		return
	}
	s.mu.Lock()
	users := make([]ledger.User, 0, len(s.accounts))
	for _, acc := range s.accounts {
		users = append(users, acc.user)
	}
	s.mu.Unlock()
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	if !requireSuperadmin(w, r) {
		return
	}
	var body ledger.CreateUserInput
	if !decode(w, r, &body) {
		return
	}
	if body.Username == "" || body.Email == "" || body.Password == "" {
		writeMessage(w, http.StatusBadRequest, "username, email and password required")
		return
	}
	if body.Role == "" {
		body.Role = ledger.RoleUser
	}

	s.mu.Lock()
	if _, exists := s.accounts[body.Username]; exists {
		s.mu.Unlock()
		writeMessage(w, http.StatusConflict, "username taken")
		return
	}
	user := ledger.User{
		ID:          s.nextID("user"),
		Username:    body.Username,
		DisplayName: body.DisplayName,
		Email:       body.Email,
		Role:        body.Role,
	}
	s.accounts[body.Username] = &account{password: body.Password, user: user}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"item": user})
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	if !requireSuperadmin(w, r) {
		return
	}
	var body ledger.UserPatch
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accountByID(chi.URLParam(r, "id"))
	if acc == nil {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if body.DisplayName != nil {
		acc.user.DisplayName = *body.DisplayName
	}
	if body.Email != nil {
		acc.user.Email = *body.Email
	}
	if body.Role != nil {
		acc.user.Role = *body.Role
	}
	if body.Password != nil {
		acc.password = *body.Password
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": acc.user})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if !requireSuperadmin(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accountByID(chi.URLParam(r, "id"))
	if acc == nil {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	delete(s.accounts, acc.user.Username)
	w.WriteHeader(http.StatusNoContent)
}

// Helpers.

type window struct {
	from time.Time
	to   time.Time
}

func parseWindow(r *http.Request) window {
	var result window
	if from, err := time.Parse("2006-01-02", r.URL.Query().Get("from")); err == nil {
		result.from = from
	}
	if to, err := time.Parse("2006-01-02", r.URL.Query().Get("to")); err == nil {
		result.to = to.Add(24*time.Hour - time.Nanosecond)
	}
	return result
}

func (w window) contains(t time.Time) bool {
	if !w.from.IsZero() && t.Before(w.from) {
		return false
	}
	if !w.to.IsZero() && t.After(w.to) {
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && err != io.EOF {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
