package gateway

import (
	"context"
	"net/http"
	"net/url"

	"family-ledger-go/internal/domain/ledger"
)

const personalPath = "/api/personal-expenses"

func personalItemPath(id string, action ...string) string {
	path := personalPath + "/" + url.PathEscape(id)
	for _, part := range action {
		path += "/" + part
	}
	return path
}

func (c *Client) ListPersonalExpenses(ctx context.Context, filter ledger.ListFilter) ([]ledger.PersonalExpenseRequest, error) {
	var payload items[ledger.PersonalExpenseRequest]
	if err := c.doJSON(ctx, http.MethodGet, personalPath, filter.Values(), nil, &payload); err != nil {
		return nil, err
	}
	return payload.list(), nil
}

// ListPendingPersonalExpenses returns the admin approval queue.
func (c *Client) ListPendingPersonalExpenses(ctx context.Context) ([]ledger.PersonalExpenseRequest, error) {
	var payload items[ledger.PersonalExpenseRequest]
	if err := c.doJSON(ctx, http.MethodGet, personalPath+"/pending/list", nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload.list(), nil
}

func (c *Client) GetPersonalExpense(ctx context.Context, id string) (*ledger.PersonalExpenseRequest, error) {
	return c.personalItem(ctx, http.MethodGet, personalItemPath(id), nil)
}

func (c *Client) CreatePersonalExpense(ctx context.Context, input ledger.CreatePersonalExpenseInput) (*ledger.PersonalExpenseRequest, error) {
	return c.personalItem(ctx, http.MethodPost, personalPath, input)
}

func (c *Client) UpdatePersonalExpense(ctx context.Context, id string, patch ledger.PersonalExpensePatch) (*ledger.PersonalExpenseRequest, error) {
	return c.personalItem(ctx, http.MethodPut, personalItemPath(id), patch)
}

func (c *Client) SubmitPersonalExpense(ctx context.Context, id string) (*ledger.PersonalExpenseRequest, error) {
	return c.personalItem(ctx, http.MethodPost, personalItemPath(id, "submit"), nil)
}

func (c *Client) CancelPersonalExpense(ctx context.Context, id string) (*ledger.PersonalExpenseRequest, error) {
	return c.personalItem(ctx, http.MethodPost, personalItemPath(id, "cancel"), nil)
}

// DecidePersonalExpense records one admin decision. Whether the request
// leaves pending depends on the gateway's quorum.
func (c *Client) DecidePersonalExpense(ctx context.Context, id string, decision ledger.DecisionPayload) (*ledger.PersonalExpenseRequest, error) {
	return c.personalItem(ctx, http.MethodPost, personalItemPath(id, "approve"), decision)
}

func (c *Client) ListApprovals(ctx context.Context, id string) ([]ledger.ApprovalRecord, error) {
	var payload struct {
		Approvals []ledger.ApprovalRecord `json:"approvals"`
	}
	if err := c.doJSON(ctx, http.MethodGet, personalItemPath(id, "approvals"), nil, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Approvals == nil {
		return []ledger.ApprovalRecord{}, nil
	}
	return payload.Approvals, nil
}

func (c *Client) personalItem(ctx context.Context, method, path string, body any) (*ledger.PersonalExpenseRequest, error) {
	var payload item[ledger.PersonalExpenseRequest]
	if err := c.doJSON(ctx, method, path, nil, body, &payload); err != nil {
		return nil, err
	}
	return &payload.value, nil
}
