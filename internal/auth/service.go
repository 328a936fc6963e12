package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// UserStore is the subset of Repository the service depends on.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// RoleSource resolves role names for a user.
type RoleSource interface {
	ResolveRoles(ctx context.Context, principalID uuid.UUID) []string
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	Save(ctx context.Context, hash string, userID uuid.UUID, ttl time.Duration) error
	Resolve(ctx context.Context, hash string) (uuid.UUID, error)
	Delete(ctx context.Context, hash string) error
}

// Auditor records login events.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps authentication business rules.
type Service struct {
	repo    UserStore
	roles   RoleSource
	issuer  *TokenIssuer
	refresh TokenStore
	audit   Auditor
	logger  *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo UserStore, roles RoleSource, issuer *TokenIssuer, refresh TokenStore, audit Auditor, logger *slog.Logger) *Service {
	return &Service{repo: repo, roles: roles, issuer: issuer, refresh: refresh, audit: audit, logger: logger}
}

// Login validates credentials and issues a token pair. Every failure
// path returns the same error so responses do not reveal whether the
// account exists.
func (s *Service) Login(ctx context.Context, email, password, ip string) (*TokenPair, *User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, shared.ErrInvalidCredentials
	}
	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.recordLogin(ctx, user.ID, ip)
	return pair, user, nil
}

// Refresh rotates a refresh token: the old one is revoked before the
// new pair is issued, so a replayed token fails.
func (s *Service) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	hash := HashRefresh(raw)
	userID, err := s.refresh.Resolve(ctx, hash)
	if err != nil {
		return nil, err
	}
	if err := s.refresh.Delete(ctx, hash); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, shared.ErrTokenInvalid
	}
	if !user.IsActive {
		return nil, shared.ErrTokenInvalid
	}
	return s.issuePair(ctx, user)
}

// Logout revokes a refresh token.
func (s *Service) Logout(ctx context.Context, raw string) error {
	return s.refresh.Delete(ctx, HashRefresh(raw))
}

func (s *Service) issuePair(ctx context.Context, user *User) (*TokenPair, error) {
	roles := s.roles.ResolveRoles(ctx, user.ID)
	access, accessExp, err := s.issuer.NewAccessToken(user, roles)
	if err != nil {
		return nil, err
	}
	refreshRaw, refreshExp, err := s.issuer.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := s.refresh.Save(ctx, HashRefresh(refreshRaw), user.ID, s.issuer.RefreshTTL()); err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshRaw,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Service) recordLogin(ctx context.Context, userID uuid.UUID, ip string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  userID,
		Action:   shared.AuditActionLogin,
		Entity:   "user",
		EntityID: userID.String(),
		Meta:     map[string]any{"ip": ip},
	})
	if err != nil && s.logger != nil {
		s.logger.Error("audit login", slog.Any("error", err))
	}
}
