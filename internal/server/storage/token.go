package storage

import (
	"context"
	"time"

	"github.com/iudanet/gophgate/internal/models"
)

// TokenStorage defines interface for opaque token persistence.
// All state transitions are conditional updates executed by the backend,
// callers never read-modify-write a token record.
type TokenStorage interface {
	// CreateToken stores a new token record
	// Returns ErrTokenAlreadyExists if a token with the same value exists
	CreateToken(ctx context.Context, token *models.OpaqueToken) error

	// GetToken retrieves token by value
	// Returns ErrTokenNotFound if token doesn't exist
	GetToken(ctx context.Context, value string) (*models.OpaqueToken, error)

	// ConsumeTemporary atomically marks an active, unused, unexpired temporary
	// token as used. Returns true only for the caller that flipped the flag.
	ConsumeTemporary(ctx context.Context, value string, now time.Time) (bool, error)

	// RotateRefresh atomically deactivates the active, unexpired refresh token
	// identified by value and owned by next's owner, and stores next.
	// Returns false and stores nothing if the old token is no longer active.
	RotateRefresh(ctx context.Context, value string, now time.Time, next *models.OpaqueToken) (bool, error)

	// RevokeRefresh deactivates refresh token by value if it belongs to owner
	// Revoking an inactive, unknown or foreign token is not an error
	RevokeRefresh(ctx context.Context, value, owner string) error

	// IsActive reports whether a token with this value exists and is active
	IsActive(ctx context.Context, value string) (bool, error)

	// DeleteExpired removes all tokens with expires_at < now
	// Returns number of deleted tokens
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
