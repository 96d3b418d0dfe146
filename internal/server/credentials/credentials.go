// Package credentials хранит учетные записи игроков и проверяет пароли (bcrypt).
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/gophgate/internal/ids"
	"github.com/iudanet/gophgate/internal/models"
	"github.com/iudanet/gophgate/internal/server/storage"
	"github.com/iudanet/gophgate/internal/validation"
)

// ErrPasswordTooLong пароль длиннее, чем принимает bcrypt
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// DefaultCost стоимость bcrypt по умолчанию
const DefaultCost = 12

// Store credential store поверх storage.UserStorage
type Store struct {
	users storage.UserStorage
	now   func() time.Time
	cost  int
}

// New creates credential store.
// cost вне диапазона bcrypt заменяется на DefaultCost.
func New(users storage.UserStorage, cost int) *Store {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Store{
		users: users,
		cost:  cost,
		now:   time.Now,
	}
}

// FindByUsername возвращает пользователя или storage.ErrUserNotFound
func (s *Store) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.users.GetUserByUsername(ctx, username)
}

// FindByID возвращает пользователя или storage.ErrUserNotFound
func (s *Store) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// ValidatePassword сравнивает пароль с bcrypt хешем пользователя
func (s *Store) ValidatePassword(user *models.User, password string) bool {
	if user == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// CheckPassword проверяет, что пароль можно захешировать
func (s *Store) CheckPassword(password string) error {
	if len(password) > validation.MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// CreateUser хеширует пароль и создает пользователя с начальными параметрами.
// Возвращает storage.ErrUserAlreadyExists, если username занят,
// и ErrPasswordTooLong для пароля длиннее 72 байт.
func (s *Store) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	if err := s.CheckPassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	id, err := ids.NewULID(now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}

	user := models.NewUser(id, username, string(hash), now)
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// SetOnlineStatus обновляет флаг is_online
func (s *Store) SetOnlineStatus(ctx context.Context, userID string, online bool) error {
	return s.users.SetOnlineStatus(ctx, userID, online)
}

// Ping проверяет доступность хранилища
func (s *Store) Ping(ctx context.Context) error {
	return s.users.Ping(ctx)
}
