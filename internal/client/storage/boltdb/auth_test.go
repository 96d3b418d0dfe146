package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophgate/internal/client/storage"
)

// создаём тестовое BoltDB хранилище
func createTestAuthStorage(t *testing.T) *Storage {
	t.Helper()

	store, err := New(context.Background(), filepath.Join(t.TempDir(), "auth_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestStorage_SaveGetDeleteAuth(t *testing.T) {
	ctx := context.Background()
	store := createTestAuthStorage(t)

	auth := &storage.AuthData{
		Username:     "alice",
		UserID:       "01HZXUSER",
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(15 * time.Minute).Unix(),
	}

	_, err := store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)

	require.NoError(t, store.SaveAuth(ctx, auth))

	got, err := store.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, auth, got)

	// перезапись при ротации
	auth.RefreshToken = "refresh-token-2"
	require.NoError(t, store.SaveAuth(ctx, auth))
	got, err = store.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-token-2", got.RefreshToken)

	require.NoError(t, store.DeleteAuth(ctx))
	_, err = store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)

	assert.ErrorIs(t, store.DeleteAuth(ctx), storage.ErrAuthNotFound)
}

func TestStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	store, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SaveAuth(ctx, &storage.AuthData{Username: "bob", RefreshToken: "r"}))
	require.NoError(t, store.Close())

	store, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	got, err := store.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)
}

func TestAuthData_AccessExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	a := &storage.AuthData{ExpiresAt: now.Unix()}

	assert.True(t, a.AccessExpired(now))
	assert.False(t, a.AccessExpired(now.Add(-time.Second)))
}
