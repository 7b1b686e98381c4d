package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot-api/internal/domain"
	"github.com/taskpilot/taskpilot-api/internal/service/auth"
	"github.com/taskpilot/taskpilot-api/internal/store"
)

// UserService owns registration and login. Registration fans a
// user_registered notification out to every administrator.
type UserService struct {
	users         store.UserStore
	hasher        auth.PasswordHasher
	verifier      auth.PasswordVerifier
	jwt           auth.JWTService
	notifications *NotificationService
	logger        *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(
	users store.UserStore,
	hasher auth.PasswordHasher,
	verifier auth.PasswordVerifier,
	jwt auth.JWTService,
	notifications *NotificationService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:         users,
		hasher:        hasher,
		verifier:      verifier,
		jwt:           jwt,
		notifications: notifications,
		logger:        logger.With(slog.String("component", "user_service")),
	}
}

// Register creates a member account and returns the user with a fresh access
// token. The plaintext password never reaches the store; it is hashed and
// cleared here. Every administrator is told about the registration
// best-effort, through the notification pipeline.
func (s *UserService) Register(ctx context.Context, email, displayName, password string) (*domain.User, string, error) {
	user, err := domain.NewUser(email, displayName, password)
	if err != nil {
		return nil, "", err
	}

	hashed, err := s.hasher.Hash(user.Password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}
	user.HashedPassword = hashed
	user.Password = ""

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return nil, "", store.ErrEmailExists
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.jwt.GenerateToken(ctx, user.ID, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	s.notifyAdmins(ctx, user.ID)

	return user, token, nil
}

// Login verifies the credentials and returns the user with a fresh access
// token. An unknown email and a wrong password are indistinguishable to the
// caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(ctx, user.ID, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return user, token, nil
}

// GetUser retrieves a user by id.
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// notifyAdmins sends a user_registered notification to every administrator.
// Failures are logged; a missing notification never blocks a registration.
func (s *UserService) notifyAdmins(ctx context.Context, newUserID uuid.UUID) {
	admins, err := s.users.ListAdmins(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "admin lookup for registration fan-out failed",
			slog.String("new_user_id", newUserID.String()),
			slog.String("error", err.Error()))
		return
	}

	for _, admin := range admins {
		if admin.ID == newUserID {
			continue
		}
		s.notifications.NotifyUserRegistered(ctx, newUserID, admin.ID)
	}
}
