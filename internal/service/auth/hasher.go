package auth

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/nkiryanov/accounts/internal/apperrors"
)

const MinHashCost = 10

// Bcrypt password hasher
// Passwords are pre-hashed with sha256, so bcrypt 72 bytes limit doesn't truncate long passwords
// Hashing is CPU bound; at most `workers` hashes run at once, others wait or give up with ctx
type BcryptHasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewBcryptHasher clamps cost to [MinHashCost, bcrypt.MaxCost]
// If workers not positive, GOMAXPROCS is used
func NewBcryptHasher(cost int, workers int) *BcryptHasher {
	cost = max(cost, MinHashCost)
	cost = min(cost, bcrypt.MaxCost)

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &BcryptHasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(workers)),
	}
}

func (h *BcryptHasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("hasher is busy: %w", err)
	}
	defer h.sem.Release(1)

	sum := sha256.Sum256([]byte(password))
	hash, err := bcrypt.GenerateFromPassword(sum[:], h.cost)
	return string(hash), err
}

// Compare returns apperrors.ErrInvalidCredentials if password doesn't match
// and apperrors.ErrCorruptCredential if stored hash can't be read at all
func (h *BcryptHasher) Compare(ctx context.Context, hashedPassword string, password string) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("hasher is busy: %w", err)
	}
	defer h.sem.Release(1)

	sum := sha256.Sum256([]byte(password))
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), sum[:])

	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidCredentials, err)
	default:
		return fmt.Errorf("%w: %w", apperrors.ErrCorruptCredential, err)
	}
}
