package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/accounts/internal/models"
)

// Any failure of the underlying store (connection, timeout, unexpected db error)
// has to be wrapped with apperrors.ErrStoreUnavailable

type ListAccountsOpts struct {
	// Max number of accounts to return. Zero or negative means no limit
	Limit int

	// Case-insensitive substring of the email
	Search string
}

// Account repository interface
type AccountRepo interface {
	// Create account
	// If account with the same email (case-insensitive) exists has to return apperrors.ErrDuplicateAccount
	Create(ctx context.Context, account models.Account) (models.Account, error)

	// Get account by it's id or email (case-insensitive)
	// If account not found must return apperrors.ErrAccountNotFound
	GetByID(ctx context.Context, id uuid.UUID) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)

	// Delete account and return its last state
	// If account not found must return apperrors.ErrAccountNotFound
	Delete(ctx context.Context, id uuid.UUID) (models.Account, error)

	// List accounts, newest first
	List(ctx context.Context, opts ListAccountsOpts) ([]models.Account, error)
}

// Session repository interface
// Sessions are looked up by the raw refresh token; how it is stored is up to the implementation
type SessionRepo interface {
	// Create session
	// If session with the same token exists has to return apperrors.ErrSessionConflict
	Create(ctx context.Context, session models.Session) (models.Session, error)

	// Find not expired session by token
	// If session not found or expired must return apperrors.ErrSessionNotFound
	FindByToken(ctx context.Context, token string) (models.Session, error)

	// Delete session by token. Must be idempotent
	// Only one of concurrent callers may get deleted=true for the same token
	DeleteByToken(ctx context.Context, token string) (deleted bool, err error)

	// Delete all sessions of the account (logout everywhere, account deletion)
	DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) (int64, error)

	// Delete sessions expired before the given time
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type Storage interface {
	Account() AccountRepo
	Session() SessionRepo

	// Run fn in transaction. Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
