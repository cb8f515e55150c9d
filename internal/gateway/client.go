package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"family-ledger-go/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	maxResponseBytes = 10 << 20
	authPathPrefix   = "/api/auth/"
	refreshFlightKey = "refresh"
)

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RefreshSkew time.Duration
}

// Client talks to the ledger gateway as the identity held by its Session.
type Client struct {
	baseURL     string
	http        *http.Client
	session     *Session
	refreshSkew time.Duration
	log         logger.Logger
	now         func() time.Time
}

func New(cfg Config, session *Session, log logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("gateway base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("gateway cookie jar: %w", err)
	}
	if session == nil {
		session = NewSession()
	}

	return &Client{
		baseURL:     baseURL,
		http:        &http.Client{Timeout: cfg.Timeout, Jar: jar},
		session:     session,
		refreshSkew: cfg.RefreshSkew,
		log:         logger.OrNop(log).Component("gateway"),
		now:         time.Now,
	}, nil
}

func (c *Client) Session() *Session {
	return c.session
}

// request describes one gateway call. body is encoded once and replayed on
// retry.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

type response struct {
	status      int
	contentType string
	body        []byte
}

func jsonRequest(method, path string, query url.Values, payload any) (request, error) {
	req := request{method: method, path: path, query: query}
	if payload == nil {
		return req, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	req.body = body
	req.contentType = "application/json"
	return req, nil
}

// doJSON sends payload as JSON and decodes the response into out when out is
// not nil.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload any, out any) error {
	req, err := jsonRequest(method, path, query, payload)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// do runs the request pipeline: proactive refresh, bearer header, send, and
// a single refresh-and-retry on 401 for non-auth endpoints.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	isAuth := strings.HasPrefix(req.path, authPathPrefix)

	if !isAuth && c.session.ExpiresWithin(c.now(), c.refreshSkew) {
		if err := c.refresh(ctx); err != nil {
			c.log.Debug("gateway.refresh: proactive refresh failed", "err", err)
		}
	}

	token := c.session.Token()
	resp, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}

	if resp.status == http.StatusUnauthorized && !isAuth {
		// Another caller may already have refreshed while this request was
		// in flight.
		if current := c.session.Token(); current == "" || current == token {
			if err := c.refresh(ctx); err != nil {
				if !refreshRejected(err) {
					c.log.BusinessError("gateway.refresh: failed, session kept", err, "path", req.path)
					return nil, err
				}
				c.session.Clear()
				c.log.BusinessError("gateway.refresh: session cleared", err, "path", req.path)
				return nil, ErrUnauthenticated
			}
		}
		resp, err = c.send(ctx, req, c.session.Token())
		if err != nil {
			return nil, err
		}
		if resp.status == http.StatusUnauthorized {
			c.session.Clear()
			return nil, ErrUnauthenticated
		}
	}

	if resp.status < 200 || resp.status >= 300 {
		return nil, newAPIError(resp.status, resp.body)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, req request, token string) (*response, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.method, req.path, err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID(ctx))
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	started := c.now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", req.method, req.path, err)
	}

	c.log.Debug("gateway.request: done",
		"method", req.method,
		"path", req.path,
		"status", httpResp.StatusCode,
		"duration", c.now().Sub(started),
	)

	return &response{
		status:      httpResp.StatusCode,
		contentType: httpResp.Header.Get("Content-Type"),
		body:        data,
	}, nil
}

type authResponse struct {
	AccessToken string      `json:"accessToken"`
	User        *ledgerUser `json:"user"`
}

// refresh exchanges the refresh cookie for a new access token. Concurrent
// callers share one in-flight refresh, detached from the cancellation of
// whichever caller started it; the http client timeout still bounds it.
func (c *Client) refresh(ctx context.Context) error {
	shared := context.WithoutCancel(ctx)
	_, err, _ := c.session.refreshes.Do(refreshFlightKey, func() (any, error) {
		var payload authResponse
		if err := c.doJSON(shared, http.MethodPost, authPathPrefix+"refresh", nil, nil, &payload); err != nil {
			return nil, err
		}
		if payload.AccessToken == "" {
			return nil, errors.New("refresh returned no access token")
		}
		c.session.Set(payload.AccessToken, payload.User.toLedger())
		c.log.Debug("gateway.refresh: token renewed", "expires_at", c.session.ExpiresAt())
		return nil, nil
	})
	return err
}

// refreshRejected reports whether the gateway refused the refresh cookie.
// Transport failures, cancellations and 5xx answers leave the session alone.
func refreshRejected(err error) bool {
	return IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusForbidden)
}

func requestID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
