package gateway

import (
	"context"
	"net/http"
	"net/url"

	"family-ledger-go/internal/domain/ledger"
)

func (c *Client) ListIncomes(ctx context.Context, filter ledger.ListFilter) ([]ledger.Income, error) {
	var payload items[ledger.Income]
	if err := c.doJSON(ctx, http.MethodGet, "/api/incomes", filter.Values(), nil, &payload); err != nil {
		return nil, err
	}
	return payload.list(), nil
}

func (c *Client) CreateIncome(ctx context.Context, input ledger.CreateIncomeInput) (*ledger.Income, error) {
	var payload item[ledger.Income]
	if err := c.doJSON(ctx, http.MethodPost, "/api/incomes", nil, input, &payload); err != nil {
		return nil, err
	}
	return &payload.value, nil
}

func (c *Client) ListExpenses(ctx context.Context, filter ledger.ListFilter) ([]ledger.PublicExpenseEntry, error) {
	var payload items[ledger.PublicExpenseEntry]
	if err := c.doJSON(ctx, http.MethodGet, "/api/expenses", filter.Values(), nil, &payload); err != nil {
		return nil, err
	}
	return payload.list(), nil
}

func (c *Client) GetExpense(ctx context.Context, id string) (*ledger.PublicExpenseEntry, error) {
	var payload item[ledger.PublicExpenseEntry]
	if err := c.doJSON(ctx, http.MethodGet, "/api/expenses/"+url.PathEscape(id), nil, nil, &payload); err != nil {
		return nil, err
	}
	return &payload.value, nil
}

func (c *Client) CreateExpense(ctx context.Context, input ledger.CreateExpenseInput) (*ledger.PublicExpenseEntry, error) {
	var payload item[ledger.PublicExpenseEntry]
	if err := c.doJSON(ctx, http.MethodPost, "/api/expenses", nil, input, &payload); err != nil {
		return nil, err
	}
	return &payload.value, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]ledger.Category, error) {
	var payload items[ledger.Category]
	if err := c.doJSON(ctx, http.MethodGet, "/api/expense-categories", nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload.list(), nil
}
