package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot-api/internal/domain"
)

// Claims holds the validated identity extracted from a token. Role is carried
// in the token so the API layer can authorize without a user lookup.
type Claims struct {
	UserID    uuid.UUID
	Role      domain.Role
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

// JWTService issues and validates the access tokens that authenticate every
// API request and websocket upgrade.
type JWTService interface {
	// GenerateToken creates a signed token carrying the user's id and role.
	GenerateToken(ctx context.Context, userID uuid.UUID, role domain.Role) (string, error)

	// ValidateToken parses and verifies a token, returning its claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid or ErrInvalidToken on failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}
