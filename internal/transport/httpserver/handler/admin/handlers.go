package admin

import (
	"net/http"

	ledgerdomain "family-ledger-go/internal/domain/ledger"
	commonhandler "family-ledger-go/internal/transport/httpserver/handler/common"
	"family-ledger-go/internal/transport/httpserver/middleware"
	"family-ledger-go/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// Handlers serves account management. Every route is superadmin only; the
// role check lives in the user service.
type Handlers struct {
	Users *ledgerdomain.UserService
	log   logger.Logger
}

func New(users *ledgerdomain.UserService, log logger.Logger) *Handlers {
	return &Handlers{
		Users: users,
		log:   logger.OrNop(log),
	}
}

type createUserRequest struct {
	Username    string            `json:"username"`
	DisplayName string            `json:"display_name"`
	Email       string            `json:"email"`
	Password    string            `json:"password"`
	Role        ledgerdomain.Role `json:"role"`
}

type updateUserRequest struct {
	DisplayName *string            `json:"display_name"`
	Email       *string            `json:"email"`
	Role        *ledgerdomain.Role `json:"role"`
	Password    *string            `json:"password"`
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	users, err := h.Users.List(r.Context(), user)
	if err != nil {
		commonhandler.WriteDomainError(w, h.log, "admin.users.list", err, "user_id", user.ID)
		return
	}
	commonhandler.Items(w, users)
}

func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var req createUserRequest
	if err := commonhandler.DecodeJSON(r, &req); err != nil {
		commonhandler.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	created, err := h.Users.Create(r.Context(), user, ledgerdomain.CreateUserInput{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
	})
	if err != nil {
		commonhandler.WriteDomainError(w, h.log, "admin.users.create", err, "user_id", user.ID)
		return
	}
	commonhandler.Item(w, http.StatusCreated, created)
}

func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req updateUserRequest
	if err := commonhandler.DecodeJSON(r, &req); err != nil {
		commonhandler.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	updated, err := h.Users.Update(r.Context(), user, id, ledgerdomain.UserPatch{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Role:        req.Role,
		Password:    req.Password,
	})
	if err != nil {
		commonhandler.WriteDomainError(w, h.log, "admin.users.update", err, "id", id)
		return
	}
	commonhandler.Item(w, http.StatusOK, updated)
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.Users.Delete(r.Context(), user, id); err != nil {
		commonhandler.WriteDomainError(w, h.log, "admin.users.delete", err, "id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
