package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/gophgate/internal/models"
	"github.com/iudanet/gophgate/internal/server/storage"
)

// CreateToken stores a new token record
func (s *Storage) CreateToken(ctx context.Context, token *models.OpaqueToken) error {
	return insertToken(ctx, s.db, token)
}

func insertToken(ctx context.Context, q dbtx, token *models.OpaqueToken) error {
	query := `
		INSERT INTO tokens (id, value, kind, user_id, expires_at, used, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	owner, hasOwner := token.Owner()

	_, err := q.ExecContext(ctx, query,
		token.ID,
		token.Value,
		string(token.Kind()),
		sql.NullString{String: owner, Valid: hasOwner},
		token.ExpiresAt.UnixMilli(),
		token.Used,
		token.Active,
		token.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrTokenAlreadyExists
		}
		return fmt.Errorf("failed to insert token: %w", err)
	}

	return nil
}

// GetToken retrieves token by value
func (s *Storage) GetToken(ctx context.Context, value string) (*models.OpaqueToken, error) {
	query := `
		SELECT id, value, kind, user_id, expires_at, used, active, created_at
		FROM tokens
		WHERE value = ?
	`

	var (
		token     models.OpaqueToken
		kind      string
		owner     sql.NullString
		expiresAt int64
		createdAt int64
	)

	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&token.ID,
		&token.Value,
		&kind,
		&owner,
		&expiresAt,
		&token.Used,
		&token.Active,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	payload, ok := models.PayloadFor(models.TokenKind(kind), owner.String)
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", storage.ErrInvalidToken, kind)
	}
	token.Payload = payload
	token.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	token.CreatedAt = time.UnixMilli(createdAt).UTC()

	return &token, nil
}

// ConsumeTemporary atomically marks temporary token as used.
// Одно условное UPDATE: победитель определяется по числу затронутых строк.
func (s *Storage) ConsumeTemporary(ctx context.Context, value string, now time.Time) (bool, error) {
	query := `
		UPDATE tokens SET used = 1
		WHERE value = ?
		  AND kind = 'temporary'
		  AND used = 0
		  AND active = 1
		  AND expires_at > ?
	`

	result, err := s.db.ExecContext(ctx, query, value, now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to consume temporary token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// RotateRefresh deactivates old refresh token and stores its successor in one transaction
func (s *Storage) RotateRefresh(ctx context.Context, value string, now time.Time, next *models.OpaqueToken) (bool, error) {
	owner, ok := next.Owner()
	if !ok {
		return false, fmt.Errorf("%w: successor is not a refresh token", storage.ErrInvalidToken)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		UPDATE tokens SET active = 0
		WHERE value = ?
		  AND kind = 'refresh'
		  AND user_id = ?
		  AND active = 1
		  AND expires_at > ?
	`

	result, err := tx.ExecContext(ctx, query, value, owner, now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to deactivate refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows != 1 {
		return false, nil
	}

	if err := insertToken(ctx, tx, next); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit rotation: %w", err)
	}

	return true, nil
}

// RevokeRefresh deactivates owner's refresh token, idempotent
func (s *Storage) RevokeRefresh(ctx context.Context, value, owner string) error {
	query := `UPDATE tokens SET active = 0 WHERE value = ? AND kind = 'refresh' AND user_id = ? AND active = 1`

	if _, err := s.db.ExecContext(ctx, query, value, owner); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return nil
}

// IsActive reports whether token exists and is active
func (s *Storage) IsActive(ctx context.Context, value string) (bool, error) {
	query := `SELECT active FROM tokens WHERE value = ?`

	var active bool
	err := s.db.QueryRowContext(ctx, query, value).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check token: %w", err)
	}

	return active, nil
}

// DeleteExpired removes all tokens expired before now
func (s *Storage) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	query := `DELETE FROM tokens WHERE expires_at < ?`

	result, err := s.db.ExecContext(ctx, query, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}
