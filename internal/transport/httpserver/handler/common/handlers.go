package common

import (
	"context"
	"net/http"
	"strings"

	"family-ledger-go/internal/domain/ledger"
	"family-ledger-go/internal/transport/httpserver/middleware"
	"family-ledger-go/pkg/logger"
)

// Authenticator starts and ends the gateway session.
type Authenticator interface {
	Register(ctx context.Context, credentials ledger.Credentials) (ledger.User, error)
	Login(ctx context.Context, credentials ledger.Credentials) (ledger.User, error)
	Logout(ctx context.Context) error
}

// Resetter drops cached collections when the identity changes.
type Resetter interface {
	Reset()
}

type Handlers struct {
	Auth  Authenticator
	Cache Resetter
	log   logger.Logger
}

func New(auth Authenticator, cache Resetter, log logger.Logger) *Handlers {
	return &Handlers{
		Auth:  auth,
		Cache: cache,
		log:   logger.OrNop(log),
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, "session.register", h.Auth.Register, http.StatusCreated)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, "session.login", h.Auth.Login, http.StatusOK)
}

func (h *Handlers) authenticate(w http.ResponseWriter, r *http.Request, op string, action func(context.Context, ledger.Credentials) (ledger.User, error), status int) {
	var credentials ledger.Credentials
	if err := decodeJSON(r, &credentials); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	credentials.Username = strings.TrimSpace(credentials.Username)
	credentials.Email = strings.TrimSpace(credentials.Email)
	if err := ledger.Validate(credentials); err != nil {
		WriteDomainError(w, h.log, op, err)
		return
	}

	user, err := action(r.Context(), credentials)
	if err != nil {
		WriteDomainError(w, h.log, op, err, "username", credentials.Username)
		return
	}
	h.Cache.Reset()
	h.log.Info(op+": session started", "user_id", user.ID, "role", string(user.Role))
	writeJSON(w, status, user)
}

// Logout always ends the local session; a gateway failure is only logged.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context()); err != nil {
		h.log.BusinessError("session.logout: gateway logout failed", err)
	}
	h.Cache.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "no active session, log in first")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
