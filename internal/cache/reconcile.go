package cache

import "family-ledger-go/internal/domain/ledger"

// Reconcile merges a mutation response into every list that can hold the
// request. The response is the sole truth for that id: it replaces any
// cached copy, a new request goes to the front of "mine", it leaves
// "pending" once its status moves on and it joins "approved" when approved.
func (s *Store) Reconcile(item ledger.PersonalExpenseRequest) {
	if item.ID == "" {
		return
	}
	ownerID := s.ownerID()

	s.mu.Lock()
	defer s.mu.Unlock()

	if item.OwnedBy(ownerID) || containsID(s.mine, item.ID) {
		s.mine = upsertFront(s.mine, item)
	}

	if item.Status == ledger.StatusPending {
		if containsID(s.pending, item.ID) {
			s.pending = upsertFront(s.pending, item)
		}
	} else {
		s.pending = removeID(s.pending, item.ID)
	}

	if item.Status == ledger.StatusApproved {
		s.approved = upsertFront(s.approved, item)
	} else {
		s.approved = removeID(s.approved, item.ID)
	}
}

func containsID(list []ledger.PersonalExpenseRequest, id string) bool {
	for _, existing := range list {
		if existing.ID == id {
			return true
		}
	}
	return false
}

// upsertFront replaces the entry with the same id in place, or prepends it.
func upsertFront(list []ledger.PersonalExpenseRequest, item ledger.PersonalExpenseRequest) []ledger.PersonalExpenseRequest {
	out := make([]ledger.PersonalExpenseRequest, 0, len(list)+1)
	replaced := false
	for _, existing := range list {
		if existing.ID == item.ID {
			out = append(out, item)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append([]ledger.PersonalExpenseRequest{item}, out...)
	}
	return out
}

func removeID(list []ledger.PersonalExpenseRequest, id string) []ledger.PersonalExpenseRequest {
	out := make([]ledger.PersonalExpenseRequest, 0, len(list))
	for _, existing := range list {
		if existing.ID != id {
			out = append(out, existing)
		}
	}
	return out
}
