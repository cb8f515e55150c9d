package cache

import (
	"context"
	"errors"
	"sync"

	"family-ledger-go/internal/domain/ledger"
	"family-ledger-go/pkg/logger"
	"golang.org/x/sync/errgroup"
)

var ErrUnmounted = errors.New("cache: results dropped for unmounted view")

type Collection string

const (
	Incomes       Collection = "incomes"
	Expenses      Collection = "expenses"
	Categories    Collection = "categories"
	Mine          Collection = "mine"
	Pending       Collection = "pending"
	Approved      Collection = "approved"
	Notifications Collection = "notifications"
)

type Gateway interface {
	ListIncomes(ctx context.Context, filter ledger.ListFilter) ([]ledger.Income, error)
	ListExpenses(ctx context.Context, filter ledger.ListFilter) ([]ledger.PublicExpenseEntry, error)
	ListCategories(ctx context.Context) ([]ledger.Category, error)
	ListPersonalExpenses(ctx context.Context, filter ledger.ListFilter) ([]ledger.PersonalExpenseRequest, error)
	ListPendingPersonalExpenses(ctx context.Context) ([]ledger.PersonalExpenseRequest, error)
	ListApprovals(ctx context.Context, id string) ([]ledger.ApprovalRecord, error)
	ListNotifications(ctx context.Context) ([]ledger.Notification, error)
}

// Identity tells the store whose "mine" list to fetch.
type Identity interface {
	User() (ledger.User, bool)
}

// Failure records a collection that degraded to empty on the last load.
type Failure struct {
	Collection Collection
	Err        error
}

// Snapshot is a copy of the collections a Load touched.
type Snapshot struct {
	Incomes       []ledger.Income
	Expenses      []ledger.PublicExpenseEntry
	Categories    []ledger.Category
	Mine          []ledger.PersonalExpenseRequest
	Pending       []ledger.PersonalExpenseRequest
	Approved      []ledger.PersonalExpenseRequest
	Notifications []ledger.Notification
	Failures      []Failure
}

func (s Snapshot) Failed(collection Collection) bool {
	for _, failure := range s.Failures {
		if failure.Collection == collection {
			return true
		}
	}
	return false
}

// Store owns the in-memory collections. Readers get copies; only Load,
// the Refresh methods and Reconcile write.
type Store struct {
	gateway  Gateway
	identity Identity
	log      logger.Logger

	mu            sync.RWMutex
	filter        ledger.ListFilter
	incomes       []ledger.Income
	expenses      []ledger.PublicExpenseEntry
	categories    []ledger.Category
	mine          []ledger.PersonalExpenseRequest
	pending       []ledger.PersonalExpenseRequest
	approved      []ledger.PersonalExpenseRequest
	notifications []ledger.Notification
}

func NewStore(gateway Gateway, identity Identity, log logger.Logger) *Store {
	return &Store{
		gateway:  gateway,
		identity: identity,
		log:      logger.OrNop(log).Component("cache"),
	}
}

// fetched holds one Load's results before they are committed.
type fetched struct {
	mu       sync.Mutex
	snapshot Snapshot
	touched  map[Collection]bool
}

func (f *fetched) fail(collection Collection, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot.Failures = append(f.snapshot.Failures, Failure{Collection: collection, Err: err})
}

// Load fetches the named collections in parallel. A failing collection
// degrades to empty and is listed in Snapshot.Failures; Load itself only
// fails with ErrUnmounted when mount was torn down before the results
// arrived, in which case nothing is committed.
func (s *Store) Load(ctx context.Context, mount *Mount, filter ledger.ListFilter, collections ...Collection) (Snapshot, error) {
	result := &fetched{touched: make(map[Collection]bool, len(collections))}
	ownerID := s.ownerID()

	group, groupCtx := errgroup.WithContext(ctx)
	for _, collection := range collections {
		if result.touched[collection] {
			continue
		}
		result.touched[collection] = true

		group.Go(func() error {
			if err := s.fetch(groupCtx, collection, filter, ownerID, result); err != nil {
				s.log.BusinessError("cache.load: collection degraded to empty", err, "collection", string(collection))
				result.fail(collection, err)
			}
			return nil
		})
	}
	_ = group.Wait()

	if !mount.Active() {
		s.log.Debug("cache.load: dropped results for unmounted view", "collections", len(collections))
		return Snapshot{}, ErrUnmounted
	}

	s.commit(filter, result)
	return result.snapshot, nil
}

func (s *Store) fetch(ctx context.Context, collection Collection, filter ledger.ListFilter, ownerID string, result *fetched) error {
	switch collection {
	case Incomes:
		items, err := s.gateway.ListIncomes(ctx, ledger.ListFilter{From: filter.From, To: filter.To})
		result.mu.Lock()
		result.snapshot.Incomes = orEmpty(items, err)
		result.mu.Unlock()
		return err
	case Expenses:
		items, err := s.gateway.ListExpenses(ctx, ledger.ListFilter{From: filter.From, To: filter.To, Category: filter.Category})
		result.mu.Lock()
		result.snapshot.Expenses = orEmpty(items, err)
		result.mu.Unlock()
		return err
	case Categories:
		items, err := s.gateway.ListCategories(ctx)
		result.mu.Lock()
		result.snapshot.Categories = orEmpty(items, err)
		result.mu.Unlock()
		return err
	case Mine:
		items, err := s.gateway.ListPersonalExpenses(ctx, ledger.ListFilter{User: ownerID, Status: filter.Status})
		result.mu.Lock()
		result.snapshot.Mine = orEmpty(items, err)
		result.mu.Unlock()
		return err
	case Pending:
		items, err := s.gateway.ListPendingPersonalExpenses(ctx)
		result.mu.Lock()
		result.snapshot.Pending = orEmpty(items, err)
		result.mu.Unlock()
		return err
	case Approved:
		approvedFilter := filter.WithStatus(ledger.StatusApproved)
		approvedFilter.Category = ""
		items, err := s.gateway.ListPersonalExpenses(ctx, approvedFilter)
		result.mu.Lock()
		result.snapshot.Approved = orEmpty(items, err)
		result.mu.Unlock()
		return err
	case Notifications:
		items, err := s.gateway.ListNotifications(ctx)
		result.mu.Lock()
		result.snapshot.Notifications = orEmpty(items, err)
		result.mu.Unlock()
		return err
	default:
		return errors.New("unknown collection " + string(collection))
	}
}

// commit keeps its own copy of each touched collection so the snapshot
// handed to the caller never aliases cached state.
func (s *Store) commit(filter ledger.ListFilter, result *fetched) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filter = filter
	snapshot := result.snapshot
	for collection := range result.touched {
		switch collection {
		case Incomes:
			s.incomes = clone(snapshot.Incomes)
		case Expenses:
			s.expenses = clone(snapshot.Expenses)
		case Categories:
			s.categories = clone(snapshot.Categories)
		case Mine:
			s.mine = clone(snapshot.Mine)
		case Pending:
			s.pending = clone(snapshot.Pending)
		case Approved:
			s.approved = clone(snapshot.Approved)
		case Notifications:
			s.notifications = clone(snapshot.Notifications)
		}
	}
}

// LoadApprovals fetches one request's approval history in server order.
func (s *Store) LoadApprovals(ctx context.Context, mount *Mount, id string) ([]ledger.ApprovalRecord, error) {
	records, err := s.gateway.ListApprovals(ctx, id)
	if err != nil {
		s.log.BusinessError("cache.approvals: degraded to empty", err, "id", id)
		records = []ledger.ApprovalRecord{}
	}
	if !mount.Active() {
		return nil, ErrUnmounted
	}
	return records, err
}

func (s *Store) refresh(ctx context.Context, collection Collection) error {
	s.mu.RLock()
	filter := s.filter
	s.mu.RUnlock()

	snapshot, err := s.Load(ctx, nil, filter, collection)
	if err != nil {
		return err
	}
	if len(snapshot.Failures) > 0 {
		return snapshot.Failures[0].Err
	}
	return nil
}

// The Refresh methods refetch one whole collection with the filter of the
// last load.

func (s *Store) RefreshIncomes(ctx context.Context) error  { return s.refresh(ctx, Incomes) }
func (s *Store) RefreshExpenses(ctx context.Context) error { return s.refresh(ctx, Expenses) }
func (s *Store) RefreshMine(ctx context.Context) error     { return s.refresh(ctx, Mine) }
func (s *Store) RefreshPending(ctx context.Context) error  { return s.refresh(ctx, Pending) }
func (s *Store) RefreshApproved(ctx context.Context) error { return s.refresh(ctx, Approved) }

func (s *Store) RefreshNotifications(ctx context.Context) error {
	return s.refresh(ctx, Notifications)
}

// Reset drops every collection, used when the session ends.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = ledger.ListFilter{}
	s.incomes = nil
	s.expenses = nil
	s.categories = nil
	s.mine = nil
	s.pending = nil
	s.approved = nil
	s.notifications = nil
}

func (s *Store) ownerID() string {
	if s.identity == nil {
		return ""
	}
	user, ok := s.identity.User()
	if !ok {
		return ""
	}
	return user.ID
}

func orEmpty[T any](items []T, err error) []T {
	if err != nil || items == nil {
		return []T{}
	}
	return items
}

func clone[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}
