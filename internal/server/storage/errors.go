package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this username already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrTokenNotFound indicates that token was not found
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenAlreadyExists indicates a token value collision
	ErrTokenAlreadyExists = errors.New("token already exists")

	// ErrInvalidToken indicates that stored token record is corrupt
	ErrInvalidToken = errors.New("invalid token")
)
