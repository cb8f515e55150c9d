package gateway

import (
	"context"
	"net/http"

	"family-ledger-go/internal/domain/ledger"
)

func (c *Client) Remaining(ctx context.Context, r ledger.Range) (*ledger.RemainingReport, error) {
	var report ledger.RemainingReport
	if err := c.doJSON(ctx, http.MethodGet, "/api/reports/remaining", r.Values(), nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) ApprovedExpenses(ctx context.Context, filter ledger.ListFilter) ([]ledger.PersonalExpenseRequest, error) {
	var payload items[ledger.PersonalExpenseRequest]
	if err := c.doJSON(ctx, http.MethodGet, "/api/reports/approved-expenses", filter.Values(), nil, &payload); err != nil {
		return nil, err
	}
	return payload.list(), nil
}

// ApprovedExpensesCSV returns the gateway's CSV export untouched.
func (c *Client) ApprovedExpensesCSV(ctx context.Context, filter ledger.ListFilter) ([]byte, string, error) {
	query := filter.Values()
	query.Set("format", "csv")
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/api/reports/approved-expenses", query: query})
	if err != nil {
		return nil, "", err
	}
	contentType := resp.contentType
	if contentType == "" {
		contentType = "text/csv"
	}
	return resp.body, contentType, nil
}
