package gateway

import (
	"context"
	"net/http"

	"family-ledger-go/internal/domain/ledger"
)

func (c *Client) ListNotifications(ctx context.Context) ([]ledger.Notification, error) {
	var payload items[ledger.Notification]
	if err := c.doJSON(ctx, http.MethodGet, "/api/notifications", nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload.list(), nil
}

func (c *Client) MarkNotificationsRead(ctx context.Context, ids []string) error {
	body := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}
	return c.doJSON(ctx, http.MethodPost, "/api/notifications/mark-read", nil, body, nil)
}
