// Package auth управляет сессией клиента: получение токенов на сервере
// и их хранение в локальной базе.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/gophgate/internal/client/storage"
	"github.com/iudanet/gophgate/internal/validation"
	pkgapi "github.com/iudanet/gophgate/pkg/api"
)

// ErrNotAuthenticated локальной сессии нет
var ErrNotAuthenticated = errors.New("not authenticated, run 'gophgate login' first")

// APIClient методы HTTP клиента, нужные сервису
type APIClient interface {
	TemporaryToken(ctx context.Context) (*pkgapi.TemporaryTokenResponse, error)
	CheckGate(ctx context.Context, token string) error
	Register(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.AuthResponse, error)
	Login(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.AuthResponse, error)
	Refresh(ctx context.Context, req pkgapi.RefreshRequest) (*pkgapi.TokenResponse, error)
	Validate(ctx context.Context, token string) (*pkgapi.ValidateResponse, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// Service предоставляет функции авторизации
type Service struct {
	apiClient APIClient
	store     storage.AuthStorage
	now       func() time.Time
}

// NewService создает новый сервис авторизации
func NewService(apiClient APIClient, store storage.AuthStorage) *Service {
	return &Service{
		apiClient: apiClient,
		store:     store,
		now:       time.Now,
	}
}

// Status состояние локальной сессии
type Status struct {
	Session       *storage.AuthData
	Authenticated bool
	AccessExpired bool
}

// RequestGate получает одноразовый токен регистрации
func (s *Service) RequestGate(ctx context.Context) (*pkgapi.TemporaryTokenResponse, error) {
	return s.apiClient.TemporaryToken(ctx)
}

// CheckGate проверяет токен регистрации, не расходуя его
func (s *Service) CheckGate(ctx context.Context, token string) error {
	if err := validation.ValidateToken("token", token); err != nil {
		return err
	}
	return s.apiClient.CheckGate(ctx, token)
}

// Register регистрирует пользователя по токену регистрации и сохраняет сессию
func (s *Service) Register(ctx context.Context, username, password, gate string) (*storage.AuthData, error) {
	if err := validation.ValidateCredentials(username, password); err != nil {
		return nil, err
	}
	if err := validation.ValidateToken("registration token", gate); err != nil {
		return nil, err
	}

	resp, err := s.apiClient.Register(ctx, pkgapi.RegisterRequest{
		Username:          username,
		Password:          password,
		RegistrationToken: gate,
	})
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	return s.saveSession(ctx, resp)
}

// Login выполняет аутентификацию и сохраняет сессию
func (s *Service) Login(ctx context.Context, username, password string) (*storage.AuthData, error) {
	if err := validation.ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	resp, err := s.apiClient.Login(ctx, pkgapi.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	return s.saveSession(ctx, resp)
}

// Refresh ротирует сохраненный refresh токен. Сервер требует пароль.
func (s *Service) Refresh(ctx context.Context, password string) (*storage.AuthData, error) {
	auth, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.apiClient.Refresh(ctx, pkgapi.RefreshRequest{
		RefreshToken: auth.RefreshToken,
		Password:     password,
	})
	if err != nil {
		return nil, fmt.Errorf("refresh failed: %w", err)
	}

	auth.AccessToken = resp.AccessToken
	auth.RefreshToken = resp.RefreshToken
	auth.ExpiresAt = s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix()

	if err := s.store.SaveAuth(ctx, auth); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return auth, nil
}

// Validate проверяет token на сервере. Пустой token означает сохраненный access токен.
func (s *Service) Validate(ctx context.Context, token string) (*pkgapi.ValidateResponse, error) {
	if token == "" {
		auth, err := s.session(ctx)
		if err != nil {
			return nil, err
		}
		token = auth.AccessToken
	}
	return s.apiClient.Validate(ctx, token)
}

// Logout отзывает refresh токен на сервере (best effort)
// и всегда удаляет локальную сессию.
func (s *Service) Logout(ctx context.Context) error {
	auth, err := s.session(ctx)
	if err != nil {
		return err
	}

	if logoutErr := s.apiClient.Logout(ctx, auth.AccessToken, auth.RefreshToken); logoutErr != nil {
		// Не прерываем процесс, если сервер недоступен или access токен истек
		slog.WarnContext(ctx, "failed to logout on server", slog.Any("error", logoutErr))
	}

	if err := s.store.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return fmt.Errorf("failed to delete local session: %w", err)
	}
	return nil
}

// Status возвращает состояние локальной сессии без обращения к серверу
func (s *Service) Status(ctx context.Context) (*Status, error) {
	auth, err := s.store.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return &Status{
		Session:       auth,
		Authenticated: true,
		AccessExpired: auth.AccessExpired(s.now()),
	}, nil
}

func (s *Service) session(ctx context.Context) (*storage.AuthData, error) {
	auth, err := s.store.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return auth, nil
}

func (s *Service) saveSession(ctx context.Context, resp *pkgapi.AuthResponse) (*storage.AuthData, error) {
	auth := &storage.AuthData{
		Username:     resp.User.Username,
		UserID:       resp.User.ID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix(),
	}
	if err := s.store.SaveAuth(ctx, auth); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return auth, nil
}
