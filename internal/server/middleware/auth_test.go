package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/iudanet/gophgate/internal/server/handlers"
	"github.com/iudanet/gophgate/internal/server/signer"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAuthenticator принимает только токен "good"
type fakeAuthenticator struct {
	calls int
}

func (f *fakeAuthenticator) Authenticate(token string) (*signer.AccessClaims, error) {
	f.calls++
	if token != "good" {
		return nil, errors.New("malformed access token")
	}
	return &signer.AccessClaims{
		Username:         "alice",
		Type:             signer.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "01HZXUSER"},
	}, nil
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantAuth   bool // дошел ли вызов до Authenticator
	}{
		{name: "valid bearer", header: "Bearer good", wantStatus: http.StatusOK, wantAuth: true},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK, wantAuth: true},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized},
		{name: "no token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "no space", header: "Bearergood", wantStatus: http.StatusUnauthorized},
		{name: "rejected token", header: "Bearer refresh-token-value", wantStatus: http.StatusUnauthorized, wantAuth: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuthenticator{}
			var gotUserID, gotUsername string

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUserID, _ = handlers.GetUserID(r.Context())
				gotUsername, _ = handlers.GetUsername(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			AuthMiddleware(setupTestLogger(), auth)(next).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAuth, auth.calls == 1)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "01HZXUSER", gotUserID)
				assert.Equal(t, "alice", gotUsername)
			} else {
				assert.Contains(t, w.Body.String(), "unauthorized")
				assert.Empty(t, gotUserID)
			}
		})
	}
}
