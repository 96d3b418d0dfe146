// Package session реализует сценарии входа, регистрации по токену,
// ротации refresh токена, выхода и двухрежимной проверки токена.
//
// Orchestrator не держит блокировок: взаимное исключение обеспечивают
// атомарные операции хранилища токенов.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iudanet/gophgate/internal/models"
	"github.com/iudanet/gophgate/internal/server/ledger"
	"github.com/iudanet/gophgate/internal/server/signer"
	"github.com/iudanet/gophgate/internal/server/storage"
)

// AccessSigner выпускает и проверяет access токены
type AccessSigner interface {
	MintAccess(subject, username string) (string, error)
	VerifyAccess(token string) (*signer.AccessClaims, error)
	TTL() time.Duration
}

// TokenLedger управляет непрозрачными токенами
type TokenLedger interface {
	IssueTemporary(ctx context.Context) (string, error)
	IssueRefresh(ctx context.Context, userID string) (string, error)
	ConsumeTemporary(ctx context.Context, value string) (bool, error)
	CheckTemporary(ctx context.Context, value string) (bool, error)
	RedeemRefresh(ctx context.Context, value string) (string, bool, error)
	RotateRefresh(ctx context.Context, value, owner string) (string, error)
	RevokeRefresh(ctx context.Context, value, owner string) error
	Exists(ctx context.Context, value string) (bool, error)
	TemporaryTTL() time.Duration
}

// CredentialStore хранилище учетных записей
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ValidatePassword(user *models.User, password string) bool
	CheckPassword(password string) error
	CreateUser(ctx context.Context, username, password string) (*models.User, error)
	SetOnlineStatus(ctx context.Context, userID string, online bool) error
}

// Recorder принимает исходы операций (метрики)
type Recorder interface {
	ObserveSession(operation, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSession(string, string) {}

// Gate выданный токен регистрации
type Gate struct {
	Token     string
	ExpiresIn string // например "10 minutes"
	TTL       time.Duration
}

// Result результат входа или регистрации
type Result struct {
	User         models.PublicUser
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // секунды жизни access токена
}

// TokenPair новая пара токенов после ротации
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// ValidationKind тип результата проверки токена
type ValidationKind int

const (
	// ValidationInvalid токен не распознан ни как access, ни как непрозрачный
	ValidationInvalid ValidationKind = iota
	// ValidationAccess валидный access токен активного пользователя
	ValidationAccess
	// ValidationOpaque активная запись непрозрачного токена, без личности
	ValidationOpaque
)

// String returns label used in logs and metrics
func (k ValidationKind) String() string {
	switch k {
	case ValidationAccess:
		return "access"
	case ValidationOpaque:
		return "opaque"
	default:
		return "invalid"
	}
}

// Validation результат двухрежимной проверки
type Validation struct {
	Claims *signer.AccessClaims // только для ValidationAccess
	User   *models.UserSummary  // только для ValidationAccess
	Kind   ValidationKind
}

// IsValid true для ValidationAccess и ValidationOpaque
func (v Validation) IsValid() bool {
	return v.Kind != ValidationInvalid
}

// Orchestrator сценарии сессии поверх signer, ledger и credential store
type Orchestrator struct {
	signer   AccessSigner
	ledger   TokenLedger
	creds    CredentialStore
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option настраивает Orchestrator
type Option func(*Orchestrator)

// WithRecorder подключает сбор метрик
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithClock подменяет источник времени (для текста TTL)
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates a new Orchestrator
func New(s AccessSigner, l TokenLedger, c CredentialStore, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		signer:   s,
		ledger:   l,
		creds:    c,
		logger:   logger,
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// IssueRegistrationGate выдает новый одноразовый токен регистрации
func (o *Orchestrator) IssueRegistrationGate(ctx context.Context) (*Gate, error) {
	token, err := o.ledger.IssueTemporary(ctx)
	if err != nil {
		o.observe("issue_gate", err)
		return nil, err
	}

	ttl := o.ledger.TemporaryTTL()
	now := o.now()
	o.observe("issue_gate", nil)

	return &Gate{
		Token:     token,
		TTL:       ttl,
		ExpiresIn: strings.TrimSpace(humanize.RelTime(now, now.Add(ttl), "", "")),
	}, nil
}

// CheckRegistrationGate проверяет токен регистрации, не расходуя его
func (o *Orchestrator) CheckRegistrationGate(ctx context.Context, token string) error {
	ok, err := o.ledger.CheckTemporary(ctx, token)
	if err != nil {
		o.observe("check_gate", err)
		return err
	}
	if !ok {
		o.observe("check_gate", ErrInvalidOrExpiredGate)
		return ErrInvalidOrExpiredGate
	}

	o.observe("check_gate", nil)
	return nil
}

// Login вход по username и паролю
func (o *Orchestrator) Login(ctx context.Context, username, password string) (*Result, error) {
	res, err := o.login(ctx, username, password)
	o.observe("login", err)
	return res, err
}

func (o *Orchestrator) login(ctx context.Context, username, password string) (*Result, error) {
	user, err := o.creds.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !o.creds.ValidatePassword(user, password) {
		return nil, ErrInvalidCredentials
	}

	// активность проверяется только после пароля
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	return o.startSession(ctx, user)
}

// Register регистрация по одноразовому токену.
// Токен расходуется до создания пользователя и остается израсходованным,
// даже если username занят.
func (o *Orchestrator) Register(ctx context.Context, username, password, gate string) (*Result, error) {
	res, err := o.register(ctx, username, password, gate)
	o.observe("register", err)
	return res, err
}

func (o *Orchestrator) register(ctx context.Context, username, password, gate string) (*Result, error) {
	// до расхода токена: неприемлемый пароль не должен сжечь gate
	if err := o.creds.CheckPassword(password); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPassword, err)
	}

	ok, err := o.ledger.ConsumeTemporary(ctx, gate)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidOrExpiredGate
	}

	user, err := o.creds.CreateUser(ctx, username, password)
	if err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return nil, ErrUsernameConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	o.logger.InfoContext(ctx, "User registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return o.startSession(ctx, user)
}

func (o *Orchestrator) startSession(ctx context.Context, user *models.User) (*Result, error) {
	access, err := o.signer.MintAccess(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to mint access token: %w", err)
	}

	refresh, err := o.ledger.IssueRefresh(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if err := o.creds.SetOnlineStatus(ctx, user.ID, true); err != nil {
		return nil, fmt.Errorf("failed to set online status: %w", err)
	}
	user.IsOnline = true

	return &Result{
		User:         user.Public(),
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(o.signer.TTL().Seconds()),
	}, nil
}

// RefreshSession ротация refresh токена с повторной проверкой пароля.
// Из нескольких одновременных вызовов с одним токеном успешен не более чем один.
func (o *Orchestrator) RefreshSession(ctx context.Context, refresh, password string) (*TokenPair, error) {
	pair, err := o.refreshSession(ctx, refresh, password)
	o.observe("refresh", err)
	return pair, err
}

func (o *Orchestrator) refreshSession(ctx context.Context, refresh, password string) (*TokenPair, error) {
	ownerID, ok, err := o.ledger.RedeemRefresh(ctx, refresh)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidRefreshToken
	}

	user, err := o.creds.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !o.creds.ValidatePassword(user, password) {
		return nil, ErrInvalidCredentials
	}

	next, err := o.ledger.RotateRefresh(ctx, refresh, user.ID)
	if err != nil {
		if errors.Is(err, ledger.ErrRefreshNotActive) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	access, err := o.signer.MintAccess(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to mint access token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: next,
		ExpiresIn:    int64(o.signer.TTL().Seconds()),
	}, nil
}

// Logout помечает пользователя офлайн и отзывает его refresh токен.
// Refresh токен другого пользователя не отзывается.
func (o *Orchestrator) Logout(ctx context.Context, userID, refresh string) error {
	err := o.logout(ctx, userID, refresh)
	o.observe("logout", err)
	return err
}

func (o *Orchestrator) logout(ctx context.Context, userID, refresh string) error {
	if err := o.creds.SetOnlineStatus(ctx, userID, false); err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		return fmt.Errorf("failed to set online status: %w", err)
	}

	return o.ledger.RevokeRefresh(ctx, refresh, userID)
}

// ValidateSession двухрежимная проверка: сначала как access токен, затем как
// непрозрачный. Ошибки подписи, срока и отсутствующий пользователь являются
// исходом проверки, а не ошибкой. Ошибкой возвращаются только сбои хранилищ.
func (o *Orchestrator) ValidateSession(ctx context.Context, token string) (Validation, error) {
	v, err := o.validateSession(ctx, token)
	if err != nil {
		o.observe("validate", err)
		return Validation{}, err
	}
	o.recorder.ObserveSession("validate", v.Kind.String())
	return v, nil
}

func (o *Orchestrator) validateSession(ctx context.Context, token string) (Validation, error) {
	v, err := o.probeAccess(ctx, token)
	if err != nil || v.IsValid() {
		return v, err
	}
	return o.probeOpaque(ctx, token)
}

func (o *Orchestrator) probeAccess(ctx context.Context, token string) (Validation, error) {
	claims, err := o.signer.VerifyAccess(token)
	if err != nil {
		if errors.Is(err, signer.ErrInvalidSignature) {
			o.logger.WarnContext(ctx, "Access token with invalid signature", slog.Any("error", err))
		}
		return Validation{Kind: ValidationInvalid}, nil
	}

	user, err := o.creds.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return Validation{Kind: ValidationInvalid}, nil
		}
		return Validation{}, fmt.Errorf("failed to find user: %w", err)
	}
	if !user.IsActive {
		return Validation{Kind: ValidationInvalid}, nil
	}

	summary := user.Summary()
	return Validation{
		Kind:   ValidationAccess,
		Claims: claims,
		User:   &summary,
	}, nil
}

func (o *Orchestrator) probeOpaque(ctx context.Context, token string) (Validation, error) {
	exists, err := o.ledger.Exists(ctx, token)
	if err != nil {
		return Validation{}, err
	}
	if !exists {
		return Validation{Kind: ValidationInvalid}, nil
	}
	return Validation{Kind: ValidationOpaque}, nil
}

// Authenticate строгая проверка access токена для защищенных маршрутов
func (o *Orchestrator) Authenticate(token string) (*signer.AccessClaims, error) {
	claims, err := o.signer.VerifyAccess(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedAccessToken, err)
	}
	return claims, nil
}

func (o *Orchestrator) observe(operation string, err error) {
	o.recorder.ObserveSession(operation, outcome(err))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountInactive):
		return "account_inactive"
	case errors.Is(err, ErrInvalidOrExpiredGate):
		return "invalid_gate"
	case errors.Is(err, ErrInvalidRefreshToken):
		return "invalid_refresh"
	case errors.Is(err, ErrUsernameConflict):
		return "username_conflict"
	case errors.Is(err, ErrInvalidPassword):
		return "invalid_password"
	default:
		return "error"
	}
}
