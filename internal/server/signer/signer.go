// Package signer выпускает и проверяет короткоживущие access токены (HS256 JWT).
//
// Signer не хранит состояния: результат проверки зависит только от токена,
// секрета и часов.
package signer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeAccess значение claim "type" для access токенов
const TokenTypeAccess = "access"

// DefaultIssuer значение claim "iss" по умолчанию
const DefaultIssuer = "gophgate"

var (
	// ErrInvalidSignature подпись не сходится или алгоритм не HS256
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired срок действия токена истек
	ErrExpired = errors.New("token expired")
	// ErrMalformed токен не разбирается или это не access токен
	ErrMalformed = errors.New("malformed token")
)

// AccessClaims представляет claims access токена
type AccessClaims struct {
	Username string `json:"username"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// UserID возвращает subject токена
func (c *AccessClaims) UserID() string {
	return c.Subject
}

// Signer подписывает и проверяет access токены общим секретом
type Signer struct {
	now    func() time.Time
	issuer string
	secret []byte
	ttl    time.Duration
}

// Option настраивает Signer
type Option func(*Signer)

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// WithIssuer задает claim "iss"
func WithIssuer(issuer string) Option {
	return func(s *Signer) {
		s.issuer = issuer
	}
}

// New creates a new Signer.
// secret should be a cryptographically secure random string
func New(secret string, ttl time.Duration, opts ...Option) *Signer {
	s := &Signer{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: DefaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL возвращает время жизни access токена
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// MintAccess создает новый access токен для пользователя
func (s *Signer) MintAccess(subject, username string) (string, error) {
	now := s.now()

	claims := AccessClaims{
		Username: username,
		Type:     TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// VerifyAccess проверяет подпись, срок действия и тип токена.
// Подпись проверяется раньше claims, поэтому токен с чужой подписью
// всегда дает ErrInvalidSignature, даже если он просрочен.
func (s *Signer) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	if claims.Type != TokenTypeAccess {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrMalformed, claims.Type)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}

	return claims, nil
}
