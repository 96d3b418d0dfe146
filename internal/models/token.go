package models

import "time"

// TokenKind дискриминант вида непрозрачного токена
type TokenKind string

const (
	// TokenKindTemporary одноразовый токен регистрации (gate)
	TokenKindTemporary TokenKind = "temporary"
	// TokenKindRefresh токен продления сессии
	TokenKindRefresh TokenKind = "refresh"
)

// TokenPayload данные, специфичные для вида токена.
// Реализуется только TemporaryPayload и RefreshPayload.
type TokenPayload interface {
	Kind() TokenKind
	tokenPayload()
}

// TemporaryPayload payload токена регистрации, владельца нет
type TemporaryPayload struct{}

// Kind возвращает TokenKindTemporary
func (TemporaryPayload) Kind() TokenKind { return TokenKindTemporary }

func (TemporaryPayload) tokenPayload() {}

// RefreshPayload payload refresh токена
type RefreshPayload struct {
	OwnerID string // ID пользователя-владельца, не меняется после создания
}

// Kind возвращает TokenKindRefresh
func (RefreshPayload) Kind() TokenKind { return TokenKindRefresh }

func (RefreshPayload) tokenPayload() {}

// OpaqueToken представляет непрозрачный токен (temporary или refresh).
// Флаги Used и Active меняются только в одну сторону:
// Used false→true, Active true→false.
type OpaqueToken struct {
	ExpiresAt time.Time    `json:"expires_at"` // абсолютное время истечения
	CreatedAt time.Time    `json:"created_at"` // время создания
	Payload   TokenPayload `json:"-"`          // вид токена и его данные
	ID        string       `json:"id"`         // ULID записи
	Value     string       `json:"value"`      // случайное уникальное значение
	Used      bool         `json:"used"`       // токен регистрации уже использован
	Active    bool         `json:"active"`     // токен не отозван
}

// NewTemporaryToken создает активный неиспользованный токен регистрации
func NewTemporaryToken(id, value string, now time.Time, ttl time.Duration) *OpaqueToken {
	return &OpaqueToken{
		ID:        id,
		Value:     value,
		Payload:   TemporaryPayload{},
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		Active:    true,
	}
}

// NewRefreshToken создает активный refresh токен, принадлежащий ownerID
func NewRefreshToken(id, value, ownerID string, now time.Time, ttl time.Duration) *OpaqueToken {
	return &OpaqueToken{
		ID:        id,
		Value:     value,
		Payload:   RefreshPayload{OwnerID: ownerID},
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		Active:    true,
	}
}

// Kind возвращает вид токена. Токен без payload считается temporary.
func (t *OpaqueToken) Kind() TokenKind {
	if t.Payload == nil {
		return TokenKindTemporary
	}
	return t.Payload.Kind()
}

// Owner возвращает владельца refresh токена
func (t *OpaqueToken) Owner() (string, bool) {
	p, ok := t.Payload.(RefreshPayload)
	if !ok {
		return "", false
	}
	return p.OwnerID, true
}

// IsExpired проверяет истечение срока действия на момент now
func (t *OpaqueToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsValid active && !used && now < expiresAt
func (t *OpaqueToken) IsValid(now time.Time) bool {
	return t.Active && !t.Used && !t.IsExpired(now)
}

// PayloadFor восстанавливает payload из хранимых колонок kind и owner.
// Используется реализациями storage при чтении записи.
func PayloadFor(kind TokenKind, ownerID string) (TokenPayload, bool) {
	switch kind {
	case TokenKindTemporary:
		return TemporaryPayload{}, true
	case TokenKindRefresh:
		return RefreshPayload{OwnerID: ownerID}, true
	default:
		return nil, false
	}
}
