package models

import "time"

// Значения по умолчанию для нового игрока
const (
	DefaultIQ = 100
)

// User представляет пользователя в системе
type User struct {
	CreatedAt    time.Time `json:"created_at"`  // время создания
	UpdatedAt    time.Time `json:"updated_at"`  // время последнего обновления
	ID           string    `json:"id"`          // ULID пользователя
	Username     string    `json:"username"`    // уникальный username
	PasswordHash string    `json:"-"`           // bcrypt хеш пароля, никогда не сериализуется
	Balance      float64   `json:"balance"`     // игровой баланс
	IQ           int       `json:"iq"`          // рейтинг IQ
	Level        int       `json:"level"`       // уровень
	Experience   int       `json:"experience"`  // опыт
	GamesPlayed  int       `json:"games_played"`
	GamesWon     int       `json:"games_won"`
	IsActive     bool      `json:"is_active"` // false - аккаунт заблокирован
	IsOnline     bool      `json:"is_online"`
}

// PublicUser пользователь без пароля, отдается клиенту после login/register
type PublicUser struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Balance     float64   `json:"balance"`
	IQ          int       `json:"iq"`
	Level       int       `json:"level"`
	Experience  int       `json:"experience"`
	GamesPlayed int       `json:"games_played"`
	GamesWon    int       `json:"games_won"`
	IsActive    bool      `json:"is_active"`
	IsOnline    bool      `json:"is_online"`
}

// UserSummary краткая проекция пользователя для валидации токена
type UserSummary struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Balance  float64 `json:"balance"`
	IQ       int     `json:"iq"`
	Level    int     `json:"level"`
}

// NewUser создает активного пользователя со стартовыми характеристиками
func NewUser(id, username, passwordHash string, now time.Time) *User {
	return &User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		IQ:           DefaultIQ,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Public возвращает копию пользователя без хеша пароля
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		Balance:     u.Balance,
		IQ:          u.IQ,
		Level:       u.Level,
		Experience:  u.Experience,
		GamesPlayed: u.GamesPlayed,
		GamesWon:    u.GamesWon,
		IsActive:    u.IsActive,
		IsOnline:    u.IsOnline,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// Summary возвращает проекцию id/username/balance/iq/level
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Balance:  u.Balance,
		IQ:       u.IQ,
		Level:    u.Level,
	}
}
