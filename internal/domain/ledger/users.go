package ledger

import (
	"context"
	"fmt"
	"strings"

	"family-ledger-go/pkg/logger"
)

type UsersGateway interface {
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, input CreateUserInput) (*User, error)
	UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error)
	DeleteUser(ctx context.Context, id string) error
}

// UserService is account management for superadmins. Role checks and field
// validation run before the gateway is called.
type UserService struct {
	gateway UsersGateway
	log     logger.Logger
}

func NewUserService(gateway UsersGateway, log logger.Logger) *UserService {
	return &UserService{
		gateway: gateway,
		log:     logger.OrNop(log).Component("users"),
	}
}

func (s *UserService) List(ctx context.Context, actor User) ([]User, error) {
	if err := canManageUsers(actor, "list users"); err != nil {
		return nil, err
	}
	return s.gateway.ListUsers(ctx)
}

func (s *UserService) Create(ctx context.Context, actor User, input CreateUserInput) (*User, error) {
	if err := canManageUsers(actor, "create user"); err != nil {
		return nil, err
	}

	input.Username = strings.TrimSpace(input.Username)
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	input.Email = strings.TrimSpace(input.Email)
	if input.Role == "" {
		input.Role = RoleUser
	}
	if err := Validate(input); err != nil {
		return nil, err
	}

	created, err := s.gateway.CreateUser(ctx, input)
	if err != nil {
		return nil, err
	}
	s.log.Info("users.create: created", "id", created.ID, "username", created.Username, "role", created.Role, "actor", actor.ID)
	return created, nil
}

func (s *UserService) Update(ctx context.Context, actor User, id string, patch UserPatch) (*User, error) {
	if err := canManageUsers(actor, "update user"); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, NewValidationError("user id is required", "id")
	}

	if patch.DisplayName != nil {
		trimmed := strings.TrimSpace(*patch.DisplayName)
		patch.DisplayName = &trimmed
	}
	if patch.Email != nil {
		trimmed := strings.TrimSpace(*patch.Email)
		patch.Email = &trimmed
	}
	if patch.Empty() {
		return nil, NewValidationError("nothing to update")
	}
	if err := Validate(patch); err != nil {
		return nil, err
	}

	updated, err := s.gateway.UpdateUser(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.log.Info("users.update: updated", "id", id, "role", updated.Role, "password_reset", patch.Password != nil, "actor", actor.ID)
	return updated, nil
}

// Delete removes an account. A superadmin cannot delete the account the
// session is signed in as.
func (s *UserService) Delete(ctx context.Context, actor User, id string) error {
	if err := canManageUsers(actor, "delete user"); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return NewValidationError("user id is required", "id")
	}
	if id == actor.ID {
		return NewValidationError("cannot delete the signed-in account", "id")
	}

	if err := s.gateway.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.Info("users.delete: deleted", "id", id, "actor", actor.ID)
	return nil
}

func canManageUsers(actor User, action string) error {
	if !actor.Role.CanManageUsers() {
		return fmt.Errorf("%s as %s: %w", action, actor.Role, ErrForbidden)
	}
	return nil
}
