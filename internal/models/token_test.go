package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOpaqueToken_IsValid(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token *OpaqueToken
		at    time.Time
		want  bool
	}{
		{
			name:  "fresh temporary token",
			token: NewTemporaryToken("id1", "v1", now, 10*time.Minute),
			at:    now.Add(time.Minute),
			want:  true,
		},
		{
			name: "used temporary token",
			token: func() *OpaqueToken {
				tok := NewTemporaryToken("id2", "v2", now, 10*time.Minute)
				tok.Used = true
				return tok
			}(),
			at:   now,
			want: false,
		},
		{
			name: "revoked refresh token",
			token: func() *OpaqueToken {
				tok := NewRefreshToken("id3", "v3", "user1", now, time.Hour)
				tok.Active = false
				return tok
			}(),
			at:   now,
			want: false,
		},
		{
			name:  "expiry instant is already invalid",
			token: NewTemporaryToken("id4", "v4", now, 10*time.Minute),
			at:    now.Add(10 * time.Minute),
			want:  false,
		},
		{
			name:  "past expiry",
			token: NewRefreshToken("id5", "v5", "user1", now, time.Hour),
			at:    now.Add(2 * time.Hour),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.token.IsValid(tt.at))
		})
	}
}

func TestOpaqueToken_KindAndOwner(t *testing.T) {
	now := time.Now()

	temp := NewTemporaryToken("id1", "v1", now, time.Minute)
	assert.Equal(t, TokenKindTemporary, temp.Kind())
	_, ok := temp.Owner()
	assert.False(t, ok, "temporary token has no owner")

	refresh := NewRefreshToken("id2", "v2", "user42", now, time.Hour)
	assert.Equal(t, TokenKindRefresh, refresh.Kind())
	owner, ok := refresh.Owner()
	assert.True(t, ok)
	assert.Equal(t, "user42", owner)
}

func TestPayloadFor(t *testing.T) {
	p, ok := PayloadFor(TokenKindRefresh, "owner")
	assert.True(t, ok)
	assert.Equal(t, RefreshPayload{OwnerID: "owner"}, p)

	p, ok = PayloadFor(TokenKindTemporary, "")
	assert.True(t, ok)
	assert.Equal(t, TemporaryPayload{}, p)

	_, ok = PayloadFor("access", "")
	assert.False(t, ok)
}
