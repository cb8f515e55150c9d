package cache

import (
	"context"
	"testing"

	"family-ledger-go/internal/domain/ledger"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	gateway := newFakeGateway()
	gateway.personal = []ledger.PersonalExpenseRequest{
		{ID: "d1", Title: "Desk", Status: ledger.StatusDraft, User: ledger.UserRef{ID: "owner"}},
		{ID: "p1", Title: "Chair", Status: ledger.StatusPending, User: ledger.UserRef{ID: "owner"}},
	}
	gateway.pending = []ledger.PersonalExpenseRequest{
		{ID: "p1", Title: "Chair", Status: ledger.StatusPending, User: ledger.UserRef{ID: "owner"}},
		{ID: "p2", Title: "Lamp", Status: ledger.StatusPending, User: ledger.UserRef{ID: "other"}},
	}
	store := NewStore(gateway, staticIdentity{user: ledger.User{ID: "owner"}}, nil)
	if _, err := store.Load(context.Background(), nil, ledger.ListFilter{}, Mine, Pending, Approved); err != nil {
		t.Fatalf("load: %v", err)
	}
	return store
}

func ids(list []ledger.PersonalExpenseRequest) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, item.ID)
	}
	return out
}

func equalIDs(got []ledger.PersonalExpenseRequest, want ...string) bool {
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		return false
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			return false
		}
	}
	return true
}

func TestReconcileInsertsNewRequestAtFront(t *testing.T) {
	store := seededStore(t)

	store.Reconcile(ledger.PersonalExpenseRequest{ID: "n1", Status: ledger.StatusDraft, User: ledger.UserRef{ID: "owner"}})

	if !equalIDs(cached(store).Mine, "n1", "d1", "p1") {
		t.Fatalf("unexpected mine order %v", ids(cached(store).Mine))
	}
}

func TestReconcileReplacesByID(t *testing.T) {
	store := seededStore(t)

	store.Reconcile(ledger.PersonalExpenseRequest{ID: "d1", Title: "Standing desk", Status: ledger.StatusDraft, User: ledger.UserRef{ID: "owner"}})

	mine := cached(store).Mine
	if !equalIDs(mine, "d1", "p1") || mine[0].Title != "Standing desk" {
		t.Fatalf("expected in-place replace, got %+v", mine)
	}
}

func TestReconcileDecisionLeavesPendingQueue(t *testing.T) {
	store := seededStore(t)

	store.Reconcile(ledger.PersonalExpenseRequest{
		ID:             "p1",
		Status:         ledger.StatusApproved,
		ApprovedAmount: ledger.Float(180),
		User:           ledger.UserRef{ID: "owner"},
	})

	if !equalIDs(cached(store).Pending, "p2") {
		t.Fatalf("expected p1 removed from pending, got %v", ids(cached(store).Pending))
	}
	if !equalIDs(cached(store).Approved, "p1") {
		t.Fatalf("expected p1 approved, got %v", ids(cached(store).Approved))
	}
	if cached(store).Mine[1].Status != ledger.StatusApproved {
		t.Fatalf("expected mine updated, got %+v", cached(store).Mine)
	}
}

func TestReconcileCancelledDropsFromPending(t *testing.T) {
	store := seededStore(t)

	store.Reconcile(ledger.PersonalExpenseRequest{ID: "p1", Status: ledger.StatusCancelled, User: ledger.UserRef{ID: "owner"}})

	if !equalIDs(cached(store).Pending, "p2") {
		t.Fatalf("expected cancelled request dropped, got %v", ids(cached(store).Pending))
	}
}

func TestReconcileIgnoresOthersOutsideMine(t *testing.T) {
	store := seededStore(t)

	store.Reconcile(ledger.PersonalExpenseRequest{ID: "p2", Status: ledger.StatusRejected, User: ledger.UserRef{ID: "other"}})

	if !equalIDs(cached(store).Mine, "d1", "p1") {
		t.Fatalf("expected mine untouched, got %v", ids(cached(store).Mine))
	}
	if !equalIDs(cached(store).Pending, "p1") {
		t.Fatalf("expected p2 removed from pending, got %v", ids(cached(store).Pending))
	}
}
