package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"blog-manager/internal/domain"
	"blog-manager/internal/repository"
	"blog-manager/internal/token"
)

// AuthService describes account and token lifecycle operations.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	IssueTokenPair(user *domain.User) (domain.TokenPair, error)
	// Rotate trades a valid refresh token for a fresh pair, revoking the
	// old token. A token can be rotated at most once.
	Rotate(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	// Revoke blacklists a refresh token. It never fails from the caller's
	// point of view; the return value only reports whether anything was
	// actually revoked.
	Revoke(ctx context.Context, refreshToken string) bool
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// EnsureAdmin seeds an admin account unless one already exists.
	EnsureAdmin(ctx context.Context, email, password string) error
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type authService struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	jwt    *token.Manager
	logger *logrus.Logger

	// compared against on the unknown-email path so a miss costs the same
	// as a wrong password
	dummyHash string
}

func NewAuthService(users repository.UserRepository, tokens repository.TokenRepository, jwt *token.Manager, logger *logrus.Logger) (AuthService, error) {
	dummyHash, err := argon2id.CreateHash(uuid.NewString(), argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &authService{
		users:     users,
		tokens:    tokens,
		jwt:       jwt,
		logger:    logger,
		dummyHash: dummyHash,
	}, nil
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.NewValidationError("email", "a valid email is required")
	}

	if err := validatePassword(input.Password, email, input.FirstName, input.LastName); err != nil {
		return nil, err
	}

	hash, err := argon2id.CreateHash(input.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         domain.RoleReader,
		IsActive:     true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, err
	}

	s.logger.Infof("user registered: %s (id=%s)", user.Email, user.ID)
	return user, nil
}

func (s *authService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// burn a comparison anyway; see dummyHash
			_, _ = argon2id.ComparePasswordAndHash(password, s.dummyHash)
			s.logger.Warnf("login attempt for unknown email: %s", email)
			return nil, domain.ErrAuthenticationFailed
		}
		return nil, err
	}

	match, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !match {
		s.logger.Warnf("failed login attempt for: %s", email)
		return nil, domain.ErrAuthenticationFailed
	}
	if !user.IsActive {
		s.logger.Warnf("login attempt for inactive user: %s", email)
		return nil, domain.ErrAuthenticationFailed
	}

	s.logger.Infof("user logged in: %s (id=%s)", user.Email, user.ID)
	return user, nil
}

func (s *authService) IssueTokenPair(user *domain.User) (domain.TokenPair, error) {
	return s.jwt.IssuePair(user)
}

func (s *authService) Rotate(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.jwt.ParseRefresh(refreshToken)
	if err != nil {
		return domain.TokenPair{}, domain.ErrTokenInvalid
	}

	// The primary-key insert is the race arbiter: a concurrent rotation of
	// the same token sees revoked=false here and loses.
	revoked, err := s.tokens.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("revoke rotated token: %w", err)
	}
	if !revoked {
		s.logger.Warnf("refresh token replayed: jti=%s", claims.ID)
		return domain.TokenPair{}, domain.ErrTokenInvalid
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.TokenPair{}, domain.ErrTokenInvalid
	}
	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TokenPair{}, domain.ErrTokenInvalid
		}
		return domain.TokenPair{}, err
	}
	if !user.IsActive {
		return domain.TokenPair{}, domain.ErrTokenInvalid
	}

	if purged, err := s.tokens.PurgeExpired(ctx, time.Now()); err == nil && purged > 0 {
		s.logger.Debugf("purged %d expired revocation entries", purged)
	}

	return s.jwt.IssuePair(user)
}

func (s *authService) Revoke(ctx context.Context, refreshToken string) bool {
	claims, err := s.jwt.ParseRefresh(refreshToken)
	if err != nil {
		s.logger.Warn("logout with unparseable refresh token")
		return false
	}

	revoked, err := s.tokens.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		s.logger.Warnf("revoke refresh token: %v", err)
		return false
	}
	if revoked {
		s.logger.Infof("refresh token revoked: jti=%s", claims.ID)
	}
	return revoked
}

func (s *authService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *authService) EnsureAdmin(ctx context.Context, email, password string) error {
	exists, err := s.users.HasRole(ctx, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &domain.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		FirstName:    "Admin",
		LastName:     "User",
		Role:         domain.RoleAdmin,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil
		}
		return err
	}

	s.logger.Infof("admin user created: %s", admin.Email)
	return nil
}
