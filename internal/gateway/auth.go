package gateway

import (
	"context"
	"errors"
	"net/http"

	"family-ledger-go/internal/domain/ledger"
)

// ledgerUser accepts both "_id" and "id" as the user identifier.
type ledgerUser struct {
	ledger.User
	AltID string `json:"id"`
}

func (u *ledgerUser) toLedger() *ledger.User {
	if u == nil {
		return nil
	}
	user := u.User
	if user.ID == "" {
		user.ID = u.AltID
	}
	return &user
}

func (c *Client) Register(ctx context.Context, credentials ledger.Credentials) (ledger.User, error) {
	return c.authenticate(ctx, "register", credentials)
}

func (c *Client) Login(ctx context.Context, credentials ledger.Credentials) (ledger.User, error) {
	return c.authenticate(ctx, "login", credentials)
}

// Refresh renews the access token from the refresh cookie. A rejected
// cookie clears the session; other failures are returned as is.
func (c *Client) Refresh(ctx context.Context) (ledger.User, error) {
	if err := c.refresh(ctx); err != nil {
		if !refreshRejected(err) {
			return ledger.User{}, err
		}
		c.session.Clear()
		return ledger.User{}, ErrUnauthenticated
	}
	user, _ := c.session.User()
	return user, nil
}

// Logout tears the session down even when the gateway call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, authPathPrefix+"logout", nil, nil, nil)
	c.session.Clear()
	return err
}

func (c *Client) authenticate(ctx context.Context, action string, credentials ledger.Credentials) (ledger.User, error) {
	var payload authResponse
	if err := c.doJSON(ctx, http.MethodPost, authPathPrefix+action, nil, credentials, &payload); err != nil {
		return ledger.User{}, err
	}
	if payload.AccessToken == "" {
		return ledger.User{}, errors.New(action + " returned no access token")
	}

	user := payload.User.toLedger()
	if user == nil {
		user = &ledger.User{Username: credentials.Username}
	}
	c.session.Set(payload.AccessToken, user)
	c.log.Info("gateway.auth: session started", "action", action, "user", user.Username, "role", user.Role)
	return *user, nil
}
