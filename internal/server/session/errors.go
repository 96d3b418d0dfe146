package session

import "errors"

// Ошибки сессионных операций. Транспорт сопоставляет их через errors.Is.
var (
	// ErrInvalidCredentials неизвестный username или неверный пароль
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive учетные данные верны, но аккаунт заблокирован
	ErrAccountInactive = errors.New("account is inactive")
	// ErrInvalidOrExpiredGate токен регистрации не найден, использован, отозван или истек
	ErrInvalidOrExpiredGate = errors.New("invalid or expired registration token")
	// ErrInvalidRefreshToken refresh токен не найден, отозван или истек
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrUsernameConflict username уже занят
	ErrUsernameConflict = errors.New("username already exists")
	// ErrInvalidPassword пароль нельзя сохранить (например, длиннее 72 байт)
	ErrInvalidPassword = errors.New("invalid password")
	// ErrMalformedAccessToken access токен не прошел проверку подписи или не разбирается
	ErrMalformedAccessToken = errors.New("malformed access token")
)
