// Package api описывает JSON контракт HTTP API, общий для сервера и клиента.
package api

import "github.com/iudanet/gophgate/internal/models"

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest представляет запрос на регистрацию по токену регистрации
type RegisterRequest struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	RegistrationToken string `json:"registration_token"` // одноразовый токен из /token/temporary
}

// TokenRequest запрос с одним токеном (login/token, validate)
type TokenRequest struct {
	Token string `json:"token"`
}

// RefreshRequest запрос на ротацию refresh токена
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Password     string `json:"password"`
}

// LogoutRequest запрос на выход, access токен передается в заголовке Authorization
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse ответ на login и register
type AuthResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"access_token"`  // JWT access token
	RefreshToken string            `json:"refresh_token"` // непрозрачный refresh token
	ExpiresIn    int64             `json:"expires_in"`    // время жизни access token в секундах
}

// TokenResponse представляет ответ с новой парой токенов
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TemporaryTokenResponse ответ с токеном регистрации
type TemporaryTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn string `json:"expires_in"` // например "10 minutes"
}

// ValidateResponse результат проверки токена
type ValidateResponse struct {
	User    *models.UserSummary `json:"user,omitempty"` // только для access токена
	Kind    string              `json:"kind"`           // access, opaque или invalid
	IsValid bool                `json:"is_valid"`
}

// MessageResponse ответ с текстовым сообщением
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
