package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"family-ledger-go/internal/domain/ledger"
	"family-ledger-go/pkg/logger"
)

type contextKey int

const userKey contextKey = iota

// Identity is the gateway session the BFF acts as.
type Identity interface {
	Authenticated() bool
	User() (ledger.User, bool)
}

type SessionAuth struct {
	identity Identity
	log      logger.Logger
}

func NewSessionAuth(identity Identity, log logger.Logger) *SessionAuth {
	return &SessionAuth{
		identity: identity,
		log:      logger.OrNop(log).Component("http"),
	}
}

// Middleware rejects requests while no gateway session is active and puts
// the signed-in user on the context otherwise.
func (a *SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.identity.Authenticated() {
			unauthorized(w)
			return
		}
		user, ok := a.identity.User()
		if !ok || user.ID == "" {
			a.log.Warn("session: token without user", "path", r.URL.Path)
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "unauthenticated", "no active session, log in first")
}

func WithUser(ctx context.Context, user ledger.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFromContext(ctx context.Context) (ledger.User, bool) {
	user, ok := ctx.Value(userKey).(ledger.User)
	if !ok || user.ID == "" {
		return ledger.User{}, false
	}
	return user, true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
