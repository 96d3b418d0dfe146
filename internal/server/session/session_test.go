package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/gophgate/internal/models"
	"github.com/iudanet/gophgate/internal/server/credentials"
	"github.com/iudanet/gophgate/internal/server/ledger"
	"github.com/iudanet/gophgate/internal/server/signer"
	"github.com/iudanet/gophgate/internal/server/storage"
	"github.com/iudanet/gophgate/internal/server/storage/sqlite"
)

const testSecret = "session-test-secret"

type recordedOutcome struct {
	operation string
	outcome   string
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []recordedOutcome
}

func (r *fakeRecorder) ObserveSession(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, recordedOutcome{operation: operation, outcome: outcome})
}

func (r *fakeRecorder) has(operation, outcome string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.outcomes {
		if o.operation == operation && o.outcome == outcome {
			return true
		}
	}
	return false
}

type testEnv struct {
	orch     *Orchestrator
	store    *sqlite.Storage
	creds    *credentials.Store
	ledger   *ledger.Ledger
	recorder *fakeRecorder
}

func setupOrchestrator(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	creds := credentials.New(store, bcrypt.MinCost)
	l := ledger.New(store, ledger.DefaultConfig(), logger)
	rec := &fakeRecorder{}

	orch := New(signer.New(testSecret, 15*time.Minute), l, creds, logger, WithRecorder(rec))

	return &testEnv{orch: orch, store: store, creds: creds, ledger: l, recorder: rec}
}

func TestIssueRegistrationGate(t *testing.T) {
	env := setupOrchestrator(t)

	gate, err := env.orch.IssueRegistrationGate(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, gate.Token)
	assert.Equal(t, "10 minutes", gate.ExpiresIn)
	assert.Equal(t, 10*time.Minute, gate.TTL)

	require.NoError(t, env.orch.CheckRegistrationGate(context.Background(), gate.Token))
	require.NoError(t, env.orch.CheckRegistrationGate(context.Background(), gate.Token), "check does not consume")

	err = env.orch.CheckRegistrationGate(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredGate)
}

func TestRegister_AliceScenario(t *testing.T) {
	ctx := context.Background()
	env := setupOrchestrator(t)

	g1, err := env.orch.IssueRegistrationGate(ctx)
	require.NoError(t, err)

	res, err := env.orch.Register(ctx, "alice", "pw123456", g1.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", res.User.Username)
	assert.True(t, res.User.IsOnline)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(900), res.ExpiresIn)

	body, err := json.Marshal(res.User)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "password")

	// повторное использование g1
	_, err = env.orch.Register(ctx, "bob", "pw123456", g1.Token)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredGate)

	g2, err := env.orch.IssueRegistrationGate(ctx)
	require.NoError(t, err)

	_, err = env.orch.Register(ctx, "alice", "pw223344", g2.Token)
	assert.ErrorIs(t, err, ErrUsernameConflict)

	// g2 остается израсходованным
	err = env.orch.CheckRegistrationGate(ctx, g2.Token)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredGate)

	assert.True(t, env.recorder.has("register", "ok"))
	assert.True(t, env.recorder.has("register", "invalid_gate"))
	assert.True(t, env.recorder.has("register", "username_conflict"))
}

func TestRegister_PasswordTooLongKeepsGate(t *testing.T) {
	ctx := context.Background()
	env := setupOrchestrator(t)

	gate, err := env.orch.IssueRegistrationGate(ctx)
	require.NoError(t, err)

	_, err = env.orch.Register(ctx, "alice", strings.Repeat("a", 80), gate.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPassword)
	assert.ErrorIs(t, err, credentials.ErrPasswordTooLong)
	assert.True(t, env.recorder.has("register", "invalid_password"))

	// токен не израсходован, пользователь не создан
	require.NoError(t, env.orch.CheckRegistrationGate(ctx, gate.Token))
	_, err = env.creds.FindByUsername(ctx, "alice")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	res, err := env.orch.Register(ctx, "alice", "pw123456", gate.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", res.User.Username)
}

func TestRegister_ConcurrentGateUse(t *testing.T) {
	ctx := context.Background()
	env := setupOrchestrator(t)

	gate, err := env.orch.IssueRegistrationGate(ctx)
	require.NoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
		start    = make(chan struct{})
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			username := "player_" + string(rune('a'+i))
			_, err := env.orch.Register(ctx, username, "pw123456", gate.Token)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidOrExpiredGate):
				rejected++
			}
		}(i)
	}

	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, rejected)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	env := setupOrchestrator(t)

	_, err := env.creds.CreateUser(ctx, "alice", "pw123456")
	require.NoError(t, err)
	blocked, err := env.creds.CreateUser(ctx, "blocked", "pw123456")
	require.NoError(t, err)
	require.NoError(t, env.store.SetActive(ctx, blocked.ID, false))

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "success", username: "alice", password: "pw123456"},
		{name: "wrong password", username: "alice", password: "wrong-pass", wantErr: ErrInvalidCredentials},
		{name: "unknown user", username: "nobody", password: "pw123456", wantErr: ErrInvalidCredentials},
		{name: "inactive with wrong password", username: "blocked", password: "wrong-pass", wantErr: ErrInvalidCredentials},
		{name: "inactive with correct password", username: "blocked", password: "pw123456", wantErr: ErrAccountInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.orch.Login(ctx, tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.username, res.User.Username)
			assert.NotEqual(t, res.AccessToken, res.RefreshToken)

			claims, err := signer.New(testSecret, 15*time.Minute).VerifyAccess(res.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, res.User.ID, claims.UserID())
			assert.Equal(t, tt.username, claims.Username)

			user, err := env.store.GetUserByUsername(ctx, tt.username)
			require.NoError(t, err)
			assert.True(t, user.IsOnline)
		})
	}
}

func TestRefreshSession_RotationScenario(t *testing.T) {
	ctx := context.Background()
	env := setupOrchestrator(t)

	_, err := env.creds.CreateUser(ctx, "alice", "pw123456")
	require.NoError(t, err)

	login, err := env.orch.Login(ctx, "alice", "pw123456")
	require.NoError(t, err)
	a1, r1 := login.AccessToken, login.RefreshToken

	pair, err := env.orch.RefreshSession(ctx, r1, "pw123456")
	require.NoError(t, err)
	assert.NotEqual(t, a1, pair.AccessToken)
	assert.NotEqual(t, r1, pair.RefreshToken)

	exists, err := env.ledger.Exists(ctx, r1)
	require.NoError(t, err)
	assert.False(t, exists, "old refresh must be inactive")

	_, err = env.orch.RefreshSession(ctx, r1, "pw123456")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = env.orch.RefreshSession(ctx, pair.RefreshToken, "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// неверный пароль не расходует токен
	_, err = env.orch.RefreshSession(ctx, pair.RefreshToken, "pw123456")
	assert.NoError(t, err)

	_, err = env.orch.RefreshSession(ctx, "unknown", "pw123456")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshSession_Concurrent(t *testing.T) {
	ctx := context.Background()
	env := setupOrchestrator(t)

	_, err := env.creds.CreateUser(ctx, "alice", "pw123456")
	require.NoError(t, err)
	login, err := env.orch.Login(ctx, "alice", "pw123456")
	require.NoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
		start    = make(chan struct{})
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.orch.RefreshSession(ctx, login.RefreshToken, "pw123456")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidRefreshToken):
				rejected++
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, rejected)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	env := setupOrchestrator(t)

	_, err := env.creds.CreateUser(ctx, "alice", "pw123456")
	require.NoError(t, err)
	login, err := env.orch.Login(ctx, "alice", "pw123456")
	require.NoError(t, err)

	claims, err := env.orch.Authenticate(login.AccessToken)
	require.NoError(t, err)

	require.NoError(t, env.orch.Logout(ctx, claims.UserID(), login.RefreshToken))
	require.NoError(t, env.orch.Logout(ctx, claims.UserID(), login.RefreshToken), "second logout is not an error")

	user, err := env.store.GetUserByID(ctx, claims.UserID())
	require.NoError(t, err)
	assert.False(t, user.IsOnline)

	_, err = env.orch.RefreshSession(ctx, login.RefreshToken, "pw123456")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogout_ForeignRefreshTokenStaysValid(t *testing.T) {
	ctx := context.Background()
	env := setupOrchestrator(t)

	_, err := env.creds.CreateUser(ctx, "alice", "pw123456")
	require.NoError(t, err)
	_, err = env.creds.CreateUser(ctx, "bob", "pw654321")
	require.NoError(t, err)

	alice, err := env.orch.Login(ctx, "alice", "pw123456")
	require.NoError(t, err)
	bob, err := env.orch.Login(ctx, "bob", "pw654321")
	require.NoError(t, err)

	bobClaims, err := env.orch.Authenticate(bob.AccessToken)
	require.NoError(t, err)

	// bob присылает чужой refresh токен
	require.NoError(t, env.orch.Logout(ctx, bobClaims.UserID(), alice.RefreshToken))

	refreshed, err := env.orch.RefreshSession(ctx, alice.RefreshToken, "pw123456")
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
}

func TestValidateSession(t *testing.T) {
	ctx := context.Background()
	env := setupOrchestrator(t)

	_, err := env.creds.CreateUser(ctx, "alice", "pw123456")
	require.NoError(t, err)
	login, err := env.orch.Login(ctx, "alice", "pw123456")
	require.NoError(t, err)

	foreign, err := signer.New("another-secret", 15*time.Minute).MintAccess(login.User.ID, "alice")
	require.NoError(t, err)

	past := func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := signer.New(testSecret, 15*time.Minute, signer.WithClock(past)).MintAccess(login.User.ID, "alice")
	require.NoError(t, err)

	ghost, err := signer.New(testSecret, 15*time.Minute).MintAccess("no-such-user", "ghost")
	require.NoError(t, err)

	gate, err := env.orch.IssueRegistrationGate(ctx)
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		wantKind ValidationKind
	}{
		{name: "fresh access token", token: login.AccessToken, wantKind: ValidationAccess},
		{name: "refresh token falls back to opaque", token: login.RefreshToken, wantKind: ValidationOpaque},
		{name: "gate token falls back to opaque", token: gate.Token, wantKind: ValidationOpaque},
		{name: "access token signed with other secret", token: foreign, wantKind: ValidationInvalid},
		{name: "expired access token", token: expired, wantKind: ValidationInvalid},
		{name: "access token of missing user", token: ghost, wantKind: ValidationInvalid},
		{name: "garbage", token: "garbage", wantKind: ValidationInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := env.orch.ValidateSession(ctx, tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, v.Kind)
			assert.Equal(t, tt.wantKind != ValidationInvalid, v.IsValid())

			if tt.wantKind == ValidationAccess {
				require.NotNil(t, v.User)
				assert.Equal(t, "alice", v.User.Username)
				assert.Equal(t, models.DefaultIQ, v.User.IQ)
				assert.Equal(t, login.User.ID, v.Claims.UserID())
			} else {
				assert.Nil(t, v.User)
			}
		})
	}

	t.Run("inactive user is not an access session", func(t *testing.T) {
		require.NoError(t, env.store.SetActive(ctx, login.User.ID, false))
		v, err := env.orch.ValidateSession(ctx, login.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, ValidationInvalid, v.Kind)
	})
}

func TestAuthenticate(t *testing.T) {
	env := setupOrchestrator(t)

	_, err := env.orch.Authenticate("garbage")
	assert.ErrorIs(t, err, ErrMalformedAccessToken)
	assert.ErrorIs(t, err, signer.ErrMalformed)

	foreign, err := signer.New("another-secret", time.Minute).MintAccess("u1", "alice")
	require.NoError(t, err)
	_, err = env.orch.Authenticate(foreign)
	assert.ErrorIs(t, err, ErrMalformedAccessToken)
	assert.ErrorIs(t, err, signer.ErrInvalidSignature)
}
