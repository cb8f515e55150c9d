package gateway

import (
	"context"
	"net/http"
	"net/url"

	"family-ledger-go/internal/domain/ledger"
)

const usersPath = "/api/admin/users"

func (c *Client) ListUsers(ctx context.Context) ([]ledger.User, error) {
	var payload items[ledgerUser]
	if err := c.doJSON(ctx, http.MethodGet, usersPath, nil, nil, &payload); err != nil {
		return nil, err
	}
	users := make([]ledger.User, 0, len(payload))
	for i := range payload {
		users = append(users, *payload[i].toLedger())
	}
	return users, nil
}

func (c *Client) CreateUser(ctx context.Context, input ledger.CreateUserInput) (*ledger.User, error) {
	return c.userItem(ctx, http.MethodPost, usersPath, input)
}

func (c *Client) UpdateUser(ctx context.Context, id string, patch ledger.UserPatch) (*ledger.User, error) {
	return c.userItem(ctx, http.MethodPut, usersPath+"/"+url.PathEscape(id), patch)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, usersPath+"/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) userItem(ctx context.Context, method, path string, body any) (*ledger.User, error) {
	var payload item[ledgerUser]
	if err := c.doJSON(ctx, method, path, nil, body, &payload); err != nil {
		return nil, err
	}
	return payload.value.toLedger(), nil
}
