// Package storage описывает локальное хранилище сессии клиента.
package storage

import (
	"context"
	"time"
)

// AuthStorage хранит текущую сессию клиента
type AuthStorage interface {
	// SaveAuth перезаписывает сохраненную сессию
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth возвращает ErrAuthNotFound, если сессии нет
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth удаляет сессию (logout)
	DeleteAuth(ctx context.Context) error
}

// AuthData сессия, полученная при login/register
type AuthData struct {
	Username     string `json:"username"`
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // unix, окончание срока access токена
}

// AccessExpired истек ли access токен к моменту now
func (a *AuthData) AccessExpired(now time.Time) bool {
	return now.Unix() >= a.ExpiresAt
}
