package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/repository"
)

type AccountRepo struct {
	DB DBTX
}

const accountColumns = `id, email, password_hash, name, phone, role, created_at, updated_at`

const createAccount = `-- name: CreateAccount
INSERT INTO accounts (id, email, password_hash, name, phone, role)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + accountColumns

func (r *AccountRepo) Create(ctx context.Context, a models.Account) (models.Account, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Role == "" {
		a.Role = models.DefaultRole
	}

	rows, _ := r.DB.Query(ctx, createAccount, a.ID, a.Email, a.PasswordHash, a.Name, a.Phone, a.Role)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case isPgError(err, pgerrcode.UniqueViolation):
		return account, fmt.Errorf("repo error: %w", apperrors.ErrDuplicateAccount)
	default:
		return account, dbError(err)
	}
}

const getAccountByID = `-- name: GetAccountByID
SELECT ` + accountColumns + ` FROM accounts
WHERE id = $1
`

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByID, id)
	return collectAccount(rows)
}

const getAccountByEmail = `-- name: GetAccountByEmail
SELECT ` + accountColumns + ` FROM accounts
WHERE lower(email) = lower($1)
`

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByEmail, email)
	return collectAccount(rows)
}

const deleteAccount = `-- name: DeleteAccount
DELETE FROM accounts
WHERE id = $1
RETURNING ` + accountColumns

func (r *AccountRepo) Delete(ctx context.Context, id uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, deleteAccount, id)
	return collectAccount(rows)
}

const listAccounts = `-- name: ListAccounts
SELECT ` + accountColumns + ` FROM accounts
WHERE $1::text = '' OR email ILIKE '%' || $1::text || '%' ESCAPE '\'
ORDER BY created_at DESC, id
LIMIT $2
`

func (r *AccountRepo) List(ctx context.Context, opts repository.ListAccountsOpts) ([]models.Account, error) {
	var limit *int
	if opts.Limit > 0 {
		limit = &opts.Limit
	}

	rows, _ := r.DB.Query(ctx, listAccounts, escapeLike(opts.Search), limit)
	accounts, err := pgx.CollectRows(rows, rowToAccount)
	if err != nil {
		return nil, dbError(err)
	}

	return accounts, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside LIKE pattern
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func collectAccount(rows pgx.Rows) (models.Account, error) {
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, fmt.Errorf("repo error: %w", apperrors.ErrAccountNotFound)
	default:
		return account, dbError(err)
	}
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.Phone, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
