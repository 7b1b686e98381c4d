package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot-api/internal/api/shared"
	"github.com/taskpilot/taskpilot-api/internal/domain"
	"github.com/taskpilot/taskpilot-api/internal/redact"
	"github.com/taskpilot/taskpilot-api/internal/service/auth"
)

// ConsumerStarter lazily starts a background queue consumer for a user.
// Starting an already-running consumer is a no-op.
type ConsumerStarter interface {
	Start(ctx context.Context, userID uuid.UUID) bool
}

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
	consumers  ConsumerStarter
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
// consumers may be nil when no background consumption is wanted.
func NewAuthMiddleware(jwtService auth.JWTService, consumers ConsumerStarter) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		consumers:  consumers,
	}
}

// Authenticate validates JWT tokens and adds the user's identity to the
// request context. The token comes from the Authorization header, falling
// back to the access_token query parameter for websocket upgrades, where
// browsers cannot set headers. Each authenticated request also makes sure
// the user's queue consumer is running.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractToken(r)
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization required")
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil {
			switch err {
			case auth.ErrExpiredToken:
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case auth.ErrInvalidToken, auth.ErrTokenNotYetValid:
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			default:
				slog.Error("failed to validate token", "error", redact.Error(err))
				shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			}
			return
		}

		ctx := context.WithValue(r.Context(), shared.UserIDContextKey, claims.UserID)
		ctx = context.WithValue(ctx, shared.UserRoleContextKey, claims.Role)

		if m.consumers != nil {
			m.consumers.Start(ctx, claims.UserID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return parts[1], true
	}

	if token := r.URL.Query().Get("access_token"); token != "" {
		return token, true
	}

	return "", false
}

// GetUserID extracts the user ID from the request context.
// Returns the user ID and a boolean indicating if it was found.
func GetUserID(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	return userID, ok
}

// GetUserRole extracts the user role from the request context.
func GetUserRole(r *http.Request) (domain.Role, bool) {
	role, ok := r.Context().Value(shared.UserRoleContextKey).(domain.Role)
	return role, ok
}
