package storage

import (
	"context"

	"github.com/iudanet/gophgate/internal/models"
)

// UserStorage defines interface for user data persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if username is taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByUsername retrieves user by username
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// SetOnlineStatus updates is_online flag
	// Returns ErrUserNotFound if user doesn't exist
	SetOnlineStatus(ctx context.Context, userID string, online bool) error

	// SetActive blocks or unblocks the account
	// Returns ErrUserNotFound if user doesn't exist
	SetActive(ctx context.Context, userID string, active bool) error

	// Ping checks storage availability
	Ping(ctx context.Context) error
}
