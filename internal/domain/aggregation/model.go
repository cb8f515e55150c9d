package aggregation

import (
	"errors"
	"time"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

type RecentIncome struct {
	ID         string    `json:"id"`
	SourceName string    `json:"source_name"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency,omitempty"`
	Date       time.Time `json:"date"`
}

// PendingSummary is one row of the approval queue on the dashboard.
type PendingSummary struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	Requester           string  `json:"requester"`
	Price               float64 `json:"price"`
	ApprovalsCount      int     `json:"approvals_count"`
	RequiredAdminsCount int     `json:"required_admins_count"`
}

type Dashboard struct {
	From          time.Time        `json:"from"`
	To            time.Time        `json:"to"`
	Source        Source           `json:"source"`
	Totals        Totals           `json:"totals"`
	Groups        []Group          `json:"groups"`
	RecentIncomes []RecentIncome   `json:"recent_incomes"`
	Pending       []PendingSummary `json:"pending"`
	Degraded      []string         `json:"degraded"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// Snapshot is a stored dashboard, kept as a "last updated" history.
type Snapshot struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Source    Source    `json:"source"`
	Totals    Totals    `json:"totals"`
	Groups    []Group   `json:"groups"`
	CreatedAt time.Time `json:"created_at"`
}
