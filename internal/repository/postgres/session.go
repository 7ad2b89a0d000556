package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/models"
)

// SessionRepo keeps only sha256 of refresh tokens, so a leaked table can't be replayed
type SessionRepo struct {
	DB DBTX
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

const createSession = `-- name: CreateSession
INSERT INTO sessions (id, account_id, token_hash, device, ip, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, account_id, device, ip, created_at, expires_at
`

func (r *SessionRepo) Create(ctx context.Context, s models.Session) (models.Session, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createSession, s.ID, s.AccountID, hashToken(s.Token), s.Device, s.IP, s.CreatedAt, s.ExpiresAt)
	session, err := pgx.CollectOneRow(rows, rowToSession(s.Token))

	switch {
	case err == nil:
		return session, nil
	case isPgError(err, pgerrcode.UniqueViolation):
		return session, fmt.Errorf("repo error: %w", apperrors.ErrSessionConflict)
	case isPgError(err, pgerrcode.ForeignKeyViolation):
		return session, fmt.Errorf("repo error: %w", apperrors.ErrAccountNotFound)
	default:
		return session, dbError(err)
	}
}

const findSession = `-- name: FindSessionByToken
SELECT id, account_id, device, ip, created_at, expires_at
FROM sessions
WHERE token_hash = $1 AND expires_at > $2
`

// FindByToken treats expired sessions as absent
func (r *SessionRepo) FindByToken(ctx context.Context, token string) (models.Session, error) {
	rows, _ := r.DB.Query(ctx, findSession, hashToken(token), time.Now())
	session, err := pgx.CollectOneRow(rows, rowToSession(token))

	switch {
	case err == nil:
		return session, nil
	case errors.Is(err, pgx.ErrNoRows):
		return session, fmt.Errorf("repo error: %w", apperrors.ErrSessionNotFound)
	default:
		return session, dbError(err)
	}
}

const deleteSession = `-- name: DeleteSessionByToken
DELETE FROM sessions
WHERE token_hash = $1
`

func (r *SessionRepo) DeleteByToken(ctx context.Context, token string) (bool, error) {
	tag, err := r.DB.Exec(ctx, deleteSession, hashToken(token))
	if err != nil {
		return false, dbError(err)
	}

	return tag.RowsAffected() == 1, nil
}

const deleteAccountSessions = `-- name: DeleteAccountSessions
DELETE FROM sessions
WHERE account_id = $1
`

func (r *SessionRepo) DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteAccountSessions, accountID)
	if err != nil {
		return 0, dbError(err)
	}

	return tag.RowsAffected(), nil
}

const deleteExpiredSessions = `-- name: DeleteExpiredSessions
DELETE FROM sessions
WHERE expires_at <= $1
`

func (r *SessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredSessions, before)
	if err != nil {
		return 0, dbError(err)
	}

	return tag.RowsAffected(), nil
}

func rowToSession(token string) pgx.RowToFunc[models.Session] {
	return func(row pgx.CollectableRow) (models.Session, error) {
		s := models.Session{Token: token}
		err := row.Scan(&s.ID, &s.AccountID, &s.Device, &s.IP, &s.CreatedAt, &s.ExpiresAt)
		return s, err
	}
}
