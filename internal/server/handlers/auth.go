package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/gophgate/internal/server/session"
	"github.com/iudanet/gophgate/internal/validation"
	"github.com/iudanet/gophgate/pkg/api"
)

// SessionService сценарии сессии, которые обслуживает AuthHandler
type SessionService interface {
	IssueRegistrationGate(ctx context.Context) (*session.Gate, error)
	CheckRegistrationGate(ctx context.Context, token string) error
	Login(ctx context.Context, username, password string) (*session.Result, error)
	Register(ctx context.Context, username, password, gate string) (*session.Result, error)
	RefreshSession(ctx context.Context, refresh, password string) (*session.TokenPair, error)
	Logout(ctx context.Context, userID, refresh string) error
	ValidateSession(ctx context.Context, token string) (session.Validation, error)
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger   *slog.Logger
	sessions SessionService
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, sessions SessionService) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		sessions: sessions,
	}
}

// Login обрабатывает POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		SendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateCredentials(req.Username, req.Password); err != nil {
		h.logger.WarnContext(ctx, "invalid login request", slog.String("username", req.Username), slog.Any("error", err))
		SendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.sessions.Login(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidCredentials):
			h.logger.WarnContext(ctx, "login failed: invalid credentials", slog.String("username", req.Username))
			SendError(w, "invalid credentials", http.StatusUnauthorized)
		case errors.Is(err, session.ErrAccountInactive):
			h.logger.WarnContext(ctx, "login failed: account inactive", slog.String("username", req.Username))
			SendError(w, "account is inactive", http.StatusUnauthorized)
		default:
			h.internalError(ctx, w, "login failed", err)
		}
		return
	}

	h.logger.InfoContext(ctx, "user logged in successfully",
		slog.String("username", res.User.Username),
		slog.String("user_id", res.User.ID))

	sendJSON(h.logger, w, authResponse(res), http.StatusOK)
}

// LoginWithToken обрабатывает POST /api/v1/auth/login/token
// Проверяет токен регистрации без его использования
func (h *AuthHandler) LoginWithToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.TokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateToken("token", req.Token); err != nil {
		SendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.sessions.CheckRegistrationGate(ctx, req.Token); err != nil {
		if errors.Is(err, session.ErrInvalidOrExpiredGate) {
			SendError(w, "invalid or expired registration token", http.StatusUnauthorized)
			return
		}
		h.internalError(ctx, w, "gate check failed", err)
		return
	}

	sendJSON(h.logger, w, api.MessageResponse{Message: "registration token is valid"}, http.StatusOK)
}

// Register обрабатывает POST /api/v1/auth/register
// Регистрация нового пользователя по одноразовому токену
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		SendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateCredentials(req.Username, req.Password); err != nil {
		h.logger.WarnContext(ctx, "invalid register request", slog.String("username", req.Username), slog.Any("error", err))
		SendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateToken("registration_token", req.RegistrationToken); err != nil {
		SendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.sessions.Register(ctx, req.Username, req.Password, req.RegistrationToken)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidOrExpiredGate):
			h.logger.WarnContext(ctx, "register failed: bad registration token", slog.String("username", req.Username))
			SendError(w, "invalid or expired registration token", http.StatusBadRequest)
		case errors.Is(err, session.ErrUsernameConflict):
			h.logger.WarnContext(ctx, "user already exists", slog.String("username", req.Username))
			SendError(w, "username already taken", http.StatusConflict)
		case errors.Is(err, session.ErrInvalidPassword):
			SendError(w, "invalid password", http.StatusBadRequest)
		default:
			h.internalError(ctx, w, "register failed", err)
		}
		return
	}

	h.logger.InfoContext(ctx, "user registered successfully",
		slog.String("username", res.User.Username),
		slog.String("user_id", res.User.ID))

	sendJSON(h.logger, w, authResponse(res), http.StatusCreated)
}

// TemporaryToken обрабатывает POST /api/v1/auth/token/temporary
func (h *AuthHandler) TemporaryToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	gate, err := h.sessions.IssueRegistrationGate(ctx)
	if err != nil {
		h.internalError(ctx, w, "failed to issue registration token", err)
		return
	}

	sendJSON(h.logger, w, api.TemporaryTokenResponse{
		Token:     gate.Token,
		ExpiresIn: gate.ExpiresIn,
	}, http.StatusOK)
}

// Refresh обрабатывает POST /api/v1/auth/token/refresh
// Старый refresh токен деактивируется, выдается новая пара
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateToken("refresh_token", req.RefreshToken); err != nil {
		SendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		SendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	pair, err := h.sessions.RefreshSession(ctx, req.RefreshToken, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidRefreshToken):
			h.logger.WarnContext(ctx, "refresh failed: token not active")
			SendError(w, "invalid refresh token", http.StatusUnauthorized)
		case errors.Is(err, session.ErrInvalidCredentials):
			h.logger.WarnContext(ctx, "refresh failed: invalid password")
			SendError(w, "invalid credentials", http.StatusUnauthorized)
		default:
			h.internalError(ctx, w, "refresh failed", err)
		}
		return
	}

	sendJSON(h.logger, w, api.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, http.StatusOK)
}

// Validate обрабатывает POST /api/v1/auth/token/validate
// Невалидный токен это ответ 200 с is_valid=false, а не ошибка
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.TokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateToken("token", req.Token); err != nil {
		SendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	v, err := h.sessions.ValidateSession(ctx, req.Token)
	if err != nil {
		h.internalError(ctx, w, "token validation failed", err)
		return
	}

	sendJSON(h.logger, w, api.ValidateResponse{
		IsValid: v.IsValid(),
		Kind:    v.Kind.String(),
		User:    v.User,
	}, http.StatusOK)
}

// Logout обрабатывает POST /api/v1/auth/logout
// Требует AuthMiddleware: user_id берется из access токена
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "User ID not found in context")
		SendError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.LogoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateToken("refresh_token", req.RefreshToken); err != nil {
		SendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.sessions.Logout(ctx, userID, req.RefreshToken); err != nil {
		h.internalError(ctx, w, "logout failed", err)
		return
	}

	h.logger.InfoContext(ctx, "user logged out successfully", slog.String("user_id", userID))

	sendJSON(h.logger, w, api.MessageResponse{Message: "logged out"}, http.StatusOK)
}

func (h *AuthHandler) internalError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.ErrorContext(ctx, msg, slog.Any("error", err))
	SendError(w, "internal server error", http.StatusInternalServerError)
}

func authResponse(res *session.Result) api.AuthResponse {
	return api.AuthResponse{
		User:         res.User,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
	}
}
