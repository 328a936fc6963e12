package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/rbac"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// Store is the subset of Repository the service depends on.
type Store interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	GrantRole(ctx context.Context, userID uuid.UUID, role string) error
	RevokeRole(ctx context.Context, userID uuid.UUID, role string) error
}

// Auditor records role change events.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user management logic.
type Service struct {
	repo   Store
	audit  Auditor
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Store, audit Auditor, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.Get(ctx, id)
}

// GrantRole attaches a role from the closed vocabulary and records who
// did it.
func (s *Service) GrantRole(ctx context.Context, actorID, userID uuid.UUID, role string) error {
	if !validRole(role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if _, err := s.repo.Get(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.GrantRole(ctx, userID, role); err != nil {
		return err
	}
	s.recordChange(ctx, actorID, userID, role, shared.AuditActionRoleGrant)
	return nil
}

// RevokeRole detaches a role and records who did it.
func (s *Service) RevokeRole(ctx context.Context, actorID, userID uuid.UUID, role string) error {
	if !validRole(role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if _, err := s.repo.Get(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.RevokeRole(ctx, userID, role); err != nil {
		return err
	}
	s.recordChange(ctx, actorID, userID, role, shared.AuditActionRoleRevoke)
	return nil
}

func validRole(role string) bool {
	for _, r := range rbac.AllRoles() {
		if r == role {
			return true
		}
	}
	return false
}

func (s *Service) recordChange(ctx context.Context, actorID, userID uuid.UUID, role, action string) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: userID.String(),
		Meta:     map[string]any{"role": role},
	})
	if err != nil && s.logger != nil {
		s.logger.Error("audit role change", slog.Any("error", err))
	}
}
