// Package ledger управляет жизненным циклом непрозрачных токенов:
// токенов регистрации (temporary) и refresh токенов.
//
// Все переходы флагов делегируются в storage.TokenStorage одной атомарной
// операцией, Ledger не держит блокировок.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/gophgate/internal/ids"
	"github.com/iudanet/gophgate/internal/models"
	"github.com/iudanet/gophgate/internal/server/storage"
)

const (
	// DefaultTemporaryTTL время жизни токена регистрации
	DefaultTemporaryTTL = 10 * time.Minute
	// DefaultRefreshTTL время жизни refresh токена
	DefaultRefreshTTL = 7 * 24 * time.Hour

	// попытки создать токен при коллизии значения
	maxCreateAttempts = 3
)

// ErrRefreshNotActive refresh токен уже ротирован, отозван или истек
var ErrRefreshNotActive = errors.New("refresh token is not active")

// Config время жизни токенов
type Config struct {
	TemporaryTTL time.Duration
	RefreshTTL   time.Duration
}

// DefaultConfig returns default TTLs
func DefaultConfig() Config {
	return Config{
		TemporaryTTL: DefaultTemporaryTTL,
		RefreshTTL:   DefaultRefreshTTL,
	}
}

// Ledger реестр непрозрачных токенов
type Ledger struct {
	store    storage.TokenStorage
	logger   *slog.Logger
	now      func() time.Time
	newValue func() (string, error)
	cfg      Config
}

// Option настраивает Ledger
type Option func(*Ledger)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithValueGenerator подменяет генератор значений токенов
func WithValueGenerator(gen func() (string, error)) Option {
	return func(l *Ledger) {
		l.newValue = gen
	}
}

// New creates a new Ledger
func New(store storage.TokenStorage, cfg Config, logger *slog.Logger, opts ...Option) *Ledger {
	if cfg.TemporaryTTL <= 0 {
		cfg.TemporaryTTL = DefaultTemporaryTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}

	l := &Ledger{
		store:    store,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		newValue: ids.NewTokenValue,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TemporaryTTL возвращает время жизни токена регистрации
func (l *Ledger) TemporaryTTL() time.Duration {
	return l.cfg.TemporaryTTL
}

// IssueTemporary создает новый токен регистрации
func (l *Ledger) IssueTemporary(ctx context.Context) (string, error) {
	return l.issue(ctx, func(id, value string, now time.Time) *models.OpaqueToken {
		return models.NewTemporaryToken(id, value, now, l.cfg.TemporaryTTL)
	})
}

// IssueRefresh создает новый refresh токен, принадлежащий userID
func (l *Ledger) IssueRefresh(ctx context.Context, userID string) (string, error) {
	return l.issue(ctx, func(id, value string, now time.Time) *models.OpaqueToken {
		return models.NewRefreshToken(id, value, userID, now, l.cfg.RefreshTTL)
	})
}

func (l *Ledger) issue(ctx context.Context, build func(id, value string, now time.Time) *models.OpaqueToken) (string, error) {
	for attempt := 1; ; attempt++ {
		token, err := l.newToken(build)
		if err != nil {
			return "", err
		}

		err = l.store.CreateToken(ctx, token)
		if err == nil {
			return token.Value, nil
		}
		if !errors.Is(err, storage.ErrTokenAlreadyExists) || attempt >= maxCreateAttempts {
			return "", fmt.Errorf("failed to store %s token: %w", token.Kind(), err)
		}

		l.logger.WarnContext(ctx, "Token value collision, regenerating",
			slog.String("kind", string(token.Kind())),
			slog.Int("attempt", attempt),
		)
	}
}

func (l *Ledger) newToken(build func(id, value string, now time.Time) *models.OpaqueToken) (*models.OpaqueToken, error) {
	now := l.now().UTC()

	id, err := ids.NewULID(now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token id: %w", err)
	}

	value, err := l.newValue()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token value: %w", err)
	}

	return build(id, value, now), nil
}

// ConsumeTemporary атомарно помечает токен регистрации использованным.
// Возвращает true ровно один раз для каждого значения.
func (l *Ledger) ConsumeTemporary(ctx context.Context, value string) (bool, error) {
	ok, err := l.store.ConsumeTemporary(ctx, value, l.now())
	if err != nil {
		return false, fmt.Errorf("failed to consume temporary token: %w", err)
	}
	return ok, nil
}

// CheckTemporary проверяет токен регистрации, не расходуя его
func (l *Ledger) CheckTemporary(ctx context.Context, value string) (bool, error) {
	token, err := l.lookup(ctx, value)
	if err != nil || token == nil {
		return false, err
	}

	return token.Kind() == models.TokenKindTemporary && token.IsValid(l.now()), nil
}

// RedeemRefresh возвращает владельца активного неистекшего refresh токена.
// Токен не расходуется.
func (l *Ledger) RedeemRefresh(ctx context.Context, value string) (string, bool, error) {
	token, err := l.lookup(ctx, value)
	if err != nil || token == nil {
		return "", false, err
	}

	owner, isRefresh := token.Owner()
	if !isRefresh || !token.IsValid(l.now()) {
		return "", false, nil
	}

	return owner, true, nil
}

// RotateRefresh за один шаг хранилища деактивирует старый refresh токен
// и создает ему замену. Если токен уже ротирован или отозван другим
// вызовом, возвращает ErrRefreshNotActive и ничего не создает.
func (l *Ledger) RotateRefresh(ctx context.Context, value, owner string) (string, error) {
	next, err := l.newToken(func(id, v string, now time.Time) *models.OpaqueToken {
		return models.NewRefreshToken(id, v, owner, now, l.cfg.RefreshTTL)
	})
	if err != nil {
		return "", err
	}

	ok, err := l.store.RotateRefresh(ctx, value, l.now(), next)
	if err != nil {
		return "", fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if !ok {
		return "", ErrRefreshNotActive
	}

	return next.Value, nil
}

// RevokeRefresh отзывает refresh токен, принадлежащий owner.
// Повторный отзыв и чужой токен не ошибка, чужой токен не меняется.
func (l *Ledger) RevokeRefresh(ctx context.Context, value, owner string) error {
	if err := l.store.RevokeRefresh(ctx, value, owner); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// Exists true, если запись с таким значением активна.
// Срок действия и used не проверяются.
func (l *Ledger) Exists(ctx context.Context, value string) (bool, error) {
	active, err := l.store.IsActive(ctx, value)
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return active, nil
}

// SweepExpired удаляет записи с ExpiresAt < now
func (l *Ledger) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := l.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired tokens: %w", err)
	}
	return n, nil
}

// lookup возвращает nil без ошибки для неизвестного значения
func (l *Ledger) lookup(ctx context.Context, value string) (*models.OpaqueToken, error) {
	token, err := l.store.GetToken(ctx, value)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return token, nil
}
