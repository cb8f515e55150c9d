package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"family-ledger-go/pkg/logger"
)

type Gateway interface {
	CreateIncome(ctx context.Context, input CreateIncomeInput) (*Income, error)
	CreateExpense(ctx context.Context, input CreateExpenseInput) (*PublicExpenseEntry, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// Refresher refetches whole collections after a mutation.
type Refresher interface {
	RefreshIncomes(ctx context.Context) error
	RefreshExpenses(ctx context.Context) error
}

// Service records incomes and public expenses on behalf of privileged users.
type Service struct {
	gateway       Gateway
	cache         Refresher
	categories    CategoriesCache
	categoriesTTL time.Duration
	log           logger.Logger
	now           func() time.Time
}

func NewService(gateway Gateway, cache Refresher, log logger.Logger) *Service {
	return &Service{
		gateway:       gateway,
		cache:         cache,
		categories:    noopCategoriesCache{},
		categoriesTTL: DefaultCategoriesTTL,
		log:           logger.OrNop(log).Component("ledger"),
		now:           time.Now,
	}
}

// WithCategoriesCache enables category caching. A ttl <= 0 keeps the
// default.
func (s *Service) WithCategoriesCache(cache CategoriesCache, ttl time.Duration) *Service {
	if cache != nil {
		s.categories = cache
	}
	if ttl > 0 {
		s.categoriesTTL = ttl
	}
	return s
}

func (s *Service) ListCategories(ctx context.Context, viewer User) ([]Category, error) {
	if cached, ok := s.categories.GetByUserID(viewer.ID); ok {
		return cached, nil
	}

	categories, err := s.gateway.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []Category{}
	}
	s.categories.SetByUserID(viewer.ID, categories, s.categoriesTTL)
	return categories, nil
}

func (s *Service) CreateIncome(ctx context.Context, actor User, input CreateIncomeInput) (*Income, error) {
	if !actor.Role.CanRecordIncome() {
		return nil, fmt.Errorf("record income as %s: %w", actor.Role, ErrForbidden)
	}

	input.SourceName = strings.TrimSpace(input.SourceName)
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	if err := Validate(input); err != nil {
		return nil, err
	}
	if input.Date.IsZero() {
		input.Date = s.now().UTC()
	}

	income, err := s.gateway.CreateIncome(ctx, input)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.RefreshIncomes(ctx); err != nil {
			s.log.BusinessError("ledger.create_income: refetch failed", err)
		}
	}
	return income, nil
}

func (s *Service) CreateExpense(ctx context.Context, actor User, input CreateExpenseInput) (*PublicExpenseEntry, error) {
	if !actor.Role.IsAdmin() {
		return nil, fmt.Errorf("record expense as %s: %w", actor.Role, ErrForbidden)
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Category = strings.TrimSpace(input.Category)
	if err := Validate(input); err != nil {
		return nil, err
	}
	if !AmountsOrdered(input.AmountMin, input.AmountAvg, input.AmountMax) {
		s.log.Warn("ledger.create_expense: amounts out of order", "title", input.Title)
	}
	if input.Date.IsZero() {
		input.Date = s.now().UTC()
	}

	entry, err := s.gateway.CreateExpense(ctx, input)
	if err != nil {
		return nil, err
	}
	// A new category name may have been created on the fly.
	s.categories.DeleteByUserID(actor.ID)

	if s.cache != nil {
		if err := s.cache.RefreshExpenses(ctx); err != nil {
			s.log.BusinessError("ledger.create_expense: refetch failed", err)
		}
	}
	return entry, nil
}
