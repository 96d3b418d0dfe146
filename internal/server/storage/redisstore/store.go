// Package redisstore implements TokenStorage on Redis.
//
// Each token is a hash under <prefix>:tok:<value>. Flag transitions run as
// Lua scripts, so concurrent redemptions of the same value are serialized by
// Redis itself.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/gophgate/internal/models"
	"github.com/iudanet/gophgate/internal/server/storage"
)

// ErrRedisUnavailable wraps any transport or script failure.
var ErrRedisUnavailable = errors.New("token redis unavailable")

var _ storage.TokenStorage = (*Store)(nil)

const (
	defaultPrefix    = "gg"
	defaultRetention = 24 * time.Hour
	scanBatch        = 100
)

// Store is a Redis backed TokenStorage
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// Option configures Store
type Option func(*Store)

// WithPrefix sets key prefix
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRetention keeps records this long after expiry so that the sweeper,
// not Redis, decides when they disappear.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.retention = d
		}
	}
}

// New creates store over an existing client
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		redis:     client,
		prefix:    defaultPrefix,
		retention: defaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks Redis availability
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.redis.Close()
}

func (s *Store) key(value string) string {
	return s.prefix + ":tok:" + value
}

func (s *Store) keyPattern() string {
	return s.prefix + ":tok:*"
}

// CreateToken stores a new token record
func (s *Store) CreateToken(ctx context.Context, token *models.OpaqueToken) error {
	owner, _ := token.Owner()

	res, err := createTokenLua.Run(ctx, s.redis,
		[]string{s.key(token.Value)},
		token.ID,
		string(token.Kind()),
		owner,
		token.ExpiresAt.UnixMilli(),
		token.CreatedAt.UnixMilli(),
		flag(token.Used),
		flag(token.Active),
		s.evictAt(token.ExpiresAt),
	).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if res == 0 {
		return storage.ErrTokenAlreadyExists
	}

	return nil
}

// GetToken retrieves token by value
func (s *Store) GetToken(ctx context.Context, value string) (*models.OpaqueToken, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(value)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrTokenNotFound
	}

	return decodeToken(value, fields)
}

// ConsumeTemporary atomically marks temporary token as used
func (s *Store) ConsumeTemporary(ctx context.Context, value string, now time.Time) (bool, error) {
	res, err := consumeTemporaryLua.Run(ctx, s.redis,
		[]string{s.key(value)},
		now.UnixMilli(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return res == 1, nil
}

// RotateRefresh deactivates old refresh token and stores its successor in one script
func (s *Store) RotateRefresh(ctx context.Context, value string, now time.Time, next *models.OpaqueToken) (bool, error) {
	owner, ok := next.Owner()
	if !ok {
		return false, fmt.Errorf("%w: successor is not a refresh token", storage.ErrInvalidToken)
	}

	res, err := rotateRefreshLua.Run(ctx, s.redis,
		[]string{s.key(value), s.key(next.Value)},
		owner,
		now.UnixMilli(),
		next.ID,
		next.ExpiresAt.UnixMilli(),
		next.CreatedAt.UnixMilli(),
		s.evictAt(next.ExpiresAt),
		flag(next.Used),
		flag(next.Active),
		string(next.Kind()),
	).Int()
	if err != nil {
		if err.Error() == "exists" {
			return false, storage.ErrTokenAlreadyExists
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return res == 1, nil
}

// RevokeRefresh deactivates owner's refresh token, idempotent
func (s *Store) RevokeRefresh(ctx context.Context, value, owner string) error {
	if err := revokeRefreshLua.Run(ctx, s.redis, []string{s.key(value)}, owner).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsActive reports whether token exists and is active
func (s *Store) IsActive(ctx context.Context, value string) (bool, error) {
	active, err := s.redis.HGet(ctx, s.key(value), "active").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return active == "1", nil
}

// DeleteExpired removes all tokens expired before now
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var (
		cursor  uint64
		deleted int
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.keyPattern(), scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		for _, key := range keys {
			n, err := sweepLua.Run(ctx, s.redis, []string{key}, now.UnixMilli()).Int()
			if err != nil {
				return deleted, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			deleted += n
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (s *Store) evictAt(expiresAt time.Time) int64 {
	return expiresAt.Add(s.retention).UnixMilli()
}

func decodeToken(value string, fields map[string]string) (*models.OpaqueToken, error) {
	expMs, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad exp: %v", storage.ErrInvalidToken, err)
	}
	createdMs, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad created: %v", storage.ErrInvalidToken, err)
	}

	kind := fields["kind"]
	payload, ok := models.PayloadFor(models.TokenKind(kind), fields["owner"])
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", storage.ErrInvalidToken, kind)
	}

	return &models.OpaqueToken{
		ID:        fields["id"],
		Value:     value,
		Payload:   payload,
		ExpiresAt: time.UnixMilli(expMs).UTC(),
		CreatedAt: time.UnixMilli(createdMs).UTC(),
		Used:      fields["used"] == "1",
		Active:    fields["active"] == "1",
	}, nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
