package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophgate/internal/models"
	"github.com/iudanet/gophgate/internal/server/session"
	"github.com/iudanet/gophgate/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockSessionService is a mock implementation of SessionService for testing
type mockSessionService struct {
	gate        *session.Gate
	result      *session.Result
	pair        *session.TokenPair
	validation  session.Validation
	err         error
	logoutUser  string
	logoutToken string
	calls       []string
}

func (m *mockSessionService) IssueRegistrationGate(ctx context.Context) (*session.Gate, error) {
	m.calls = append(m.calls, "gate")
	return m.gate, m.err
}

func (m *mockSessionService) CheckRegistrationGate(ctx context.Context, token string) error {
	m.calls = append(m.calls, "check")
	return m.err
}

func (m *mockSessionService) Login(ctx context.Context, username, password string) (*session.Result, error) {
	m.calls = append(m.calls, "login")
	return m.result, m.err
}

func (m *mockSessionService) Register(ctx context.Context, username, password, gate string) (*session.Result, error) {
	m.calls = append(m.calls, "register")
	return m.result, m.err
}

func (m *mockSessionService) RefreshSession(ctx context.Context, refresh, password string) (*session.TokenPair, error) {
	m.calls = append(m.calls, "refresh")
	return m.pair, m.err
}

func (m *mockSessionService) Logout(ctx context.Context, userID, refresh string) error {
	m.calls = append(m.calls, "logout")
	m.logoutUser = userID
	m.logoutToken = refresh
	return m.err
}

func (m *mockSessionService) ValidateSession(ctx context.Context, token string) (session.Validation, error) {
	m.calls = append(m.calls, "validate")
	return m.validation, m.err
}

func testResult() *session.Result {
	u := models.NewUser("01HZX", "alice", "hash", time.Now())
	return &session.Result{
		User:         u.Public(),
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresIn:    900,
	}
}

func doJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Error
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
		wantCall   bool
	}{
		{
			name:       "success",
			body:       `{"username":"alice","password":"secret1"}`,
			wantStatus: http.StatusOK,
			wantCall:   true,
		},
		{
			name:       "invalid json",
			body:       `{invalid`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
		{
			name:       "short username",
			body:       `{"username":"al","password":"secret1"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "short password",
			body:       `{"username":"alice","password":"123"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid credentials",
			body:       `{"username":"alice","password":"wrong12"}`,
			err:        session.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid credentials",
			wantCall:   true,
		},
		{
			name:       "inactive account",
			body:       `{"username":"alice","password":"secret1"}`,
			err:        session.ErrAccountInactive,
			wantStatus: http.StatusUnauthorized,
			wantError:  "account is inactive",
			wantCall:   true,
		},
		{
			name:       "storage error",
			body:       `{"username":"alice","password":"secret1"}`,
			err:        errors.New("disk I/O error"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal server error",
			wantCall:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSessionService{result: testResult(), err: tt.err}
			h := NewAuthHandler(setupTestLogger(), svc)

			w := doJSON(t, h.Login, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCall, len(svc.calls) == 1)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, w))
			}
			if tt.wantStatus == http.StatusOK {
				var resp api.AuthResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, "alice", resp.User.Username)
				assert.Equal(t, "access", resp.AccessToken)
				assert.Equal(t, "refresh", resp.RefreshToken)
				assert.Equal(t, int64(900), resp.ExpiresIn)
			}
		})
	}
}

func TestAuthHandler_Login_NoPasswordInResponse(t *testing.T) {
	svc := &mockSessionService{result: testResult()}
	h := NewAuthHandler(setupTestLogger(), svc)

	w := doJSON(t, h.Login, `{"username":"alice","password":"secret1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "hash")
}

func TestAuthHandler_Register(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "success",
			body:       `{"username":"alice","password":"secret1","registration_token":"gate"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing registration token",
			body:       `{"username":"alice","password":"secret1"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid username",
			body:       `{"username":"ali ce","password":"secret1","registration_token":"gate"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "password longer than 72 bytes",
			body:       `{"username":"alice","password":"` + strings.Repeat("a", 80) + `","registration_token":"gate"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid input: password must not exceed 72 bytes",
		},
		{
			name:       "password rejected by service",
			body:       `{"username":"alice","password":"secret1","registration_token":"gate"}`,
			err:        session.ErrInvalidPassword,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid password",
		},
		{
			name:       "used gate",
			body:       `{"username":"alice","password":"secret1","registration_token":"gate"}`,
			err:        session.ErrInvalidOrExpiredGate,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid or expired registration token",
		},
		{
			name:       "username taken",
			body:       `{"username":"alice","password":"secret1","registration_token":"gate"}`,
			err:        session.ErrUsernameConflict,
			wantStatus: http.StatusConflict,
			wantError:  "username already taken",
		},
		{
			name:       "storage error",
			body:       `{"username":"alice","password":"secret1","registration_token":"gate"}`,
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSessionService{result: testResult(), err: tt.err}
			h := NewAuthHandler(setupTestLogger(), svc)

			w := doJSON(t, h.Register, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, w))
			}
		})
	}
}

func TestAuthHandler_LoginWithToken(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "valid gate", body: `{"token":"gate"}`, wantStatus: http.StatusOK},
		{name: "empty token", body: `{"token":""}`, wantStatus: http.StatusBadRequest},
		{name: "invalid gate", body: `{"token":"gate"}`, err: session.ErrInvalidOrExpiredGate, wantStatus: http.StatusUnauthorized},
		{name: "storage error", body: `{"token":"gate"}`, err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSessionService{err: tt.err}
			h := NewAuthHandler(setupTestLogger(), svc)

			w := doJSON(t, h.LoginWithToken, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAuthHandler_TemporaryToken(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &mockSessionService{gate: &session.Gate{Token: "gate", ExpiresIn: "10 minutes", TTL: 10 * time.Minute}}
		h := NewAuthHandler(setupTestLogger(), svc)

		w := doJSON(t, h.TemporaryToken, "")

		require.Equal(t, http.StatusOK, w.Code)
		var resp api.TemporaryTokenResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "gate", resp.Token)
		assert.Equal(t, "10 minutes", resp.ExpiresIn)
	})

	t.Run("storage error", func(t *testing.T) {
		svc := &mockSessionService{err: errors.New("boom")}
		h := NewAuthHandler(setupTestLogger(), svc)

		w := doJSON(t, h.TemporaryToken, "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "success", body: `{"refresh_token":"r1","password":"secret1"}`, wantStatus: http.StatusOK},
		{name: "missing token", body: `{"password":"secret1"}`, wantStatus: http.StatusBadRequest},
		{name: "missing password", body: `{"refresh_token":"r1"}`, wantStatus: http.StatusBadRequest},
		{name: "inactive token", body: `{"refresh_token":"r1","password":"secret1"}`, err: session.ErrInvalidRefreshToken, wantStatus: http.StatusUnauthorized},
		{name: "wrong password", body: `{"refresh_token":"r1","password":"secret1"}`, err: session.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized},
		{name: "storage error", body: `{"refresh_token":"r1","password":"secret1"}`, err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSessionService{
				pair: &session.TokenPair{AccessToken: "a2", RefreshToken: "r2", ExpiresIn: 900},
				err:  tt.err,
			}
			h := NewAuthHandler(setupTestLogger(), svc)

			w := doJSON(t, h.Refresh, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				var resp api.TokenResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, "a2", resp.AccessToken)
				assert.Equal(t, "r2", resp.RefreshToken)
			}
		})
	}
}

func TestAuthHandler_Validate(t *testing.T) {
	summary := &models.UserSummary{ID: "01HZX", Username: "alice", IQ: models.DefaultIQ}

	tests := []struct {
		name       string
		validation session.Validation
		err        error
		wantStatus int
		wantValid  bool
		wantKind   string
		wantUser   bool
	}{
		{
			name:       "access token",
			validation: session.Validation{Kind: session.ValidationAccess, User: summary},
			wantStatus: http.StatusOK,
			wantValid:  true,
			wantKind:   "access",
			wantUser:   true,
		},
		{
			name:       "opaque token",
			validation: session.Validation{Kind: session.ValidationOpaque},
			wantStatus: http.StatusOK,
			wantValid:  true,
			wantKind:   "opaque",
		},
		{
			name:       "invalid token",
			validation: session.Validation{Kind: session.ValidationInvalid},
			wantStatus: http.StatusOK,
			wantKind:   "invalid",
		},
		{
			name:       "storage error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSessionService{validation: tt.validation, err: tt.err}
			h := NewAuthHandler(setupTestLogger(), svc)

			w := doJSON(t, h.Validate, `{"token":"some-token"}`)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp api.ValidateResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantValid, resp.IsValid)
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.Equal(t, tt.wantUser, resp.User != nil)
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &mockSessionService{}
		h := NewAuthHandler(setupTestLogger(), svc)

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"refresh_token":"r1"}`))
		req = req.WithContext(context.WithValue(req.Context(), UserIDKey, "01HZX"))
		w := httptest.NewRecorder()
		h.Logout(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "01HZX", svc.logoutUser)
		assert.Equal(t, "r1", svc.logoutToken)
	})

	t.Run("no user in context", func(t *testing.T) {
		svc := &mockSessionService{}
		h := NewAuthHandler(setupTestLogger(), svc)

		w := doJSON(t, h.Logout, `{"refresh_token":"r1"}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, svc.calls)
	})

	t.Run("storage error", func(t *testing.T) {
		svc := &mockSessionService{err: errors.New("boom")}
		h := NewAuthHandler(setupTestLogger(), svc)

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"refresh_token":"r1"}`))
		req = req.WithContext(context.WithValue(req.Context(), UserIDKey, "01HZX"))
		w := httptest.NewRecorder()
		h.Logout(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestDecodeJSON_BodyTooLarge(t *testing.T) {
	svc := &mockSessionService{}
	h := NewAuthHandler(setupTestLogger(), svc)

	big := `{"token":"` + string(bytes.Repeat([]byte("a"), maxBodySize)) + `"}`
	w := doJSON(t, h.Validate, big)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.calls)
}
