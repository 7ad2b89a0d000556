package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/accounts/internal/apperrors"
)

func Test_BcryptHasher(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(MinHashCost, 2)

	t.Run("hash password", func(t *testing.T) {
		got, err := h.Hash(t.Context(), "password")
		require.NoError(t, err)

		require.Len(t, got, 60, "bcrypt length is 60 letters as far as i know")
		require.Equal(t, "$2a$", got[:4], "bcrypt has should have prefix '$2a$'")

		cost, err := bcrypt.Cost([]byte(got))
		require.NoError(t, err)
		require.Equal(t, MinHashCost, cost)
	})

	t.Run("same password different hashes", func(t *testing.T) {
		first, err := h.Hash(t.Context(), "password")
		require.NoError(t, err)
		second, err := h.Hash(t.Context(), "password")
		require.NoError(t, err)

		require.NotEqual(t, first, second, "salt has to differ")
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := h.Hash(t.Context(), "")

		require.Error(t, err)
	})

	t.Run("compare password ok", func(t *testing.T) {
		hash, err := h.Hash(t.Context(), "password")
		require.NoError(t, err)

		err = h.Compare(t.Context(), hash, "password")

		require.NoError(t, err)
	})

	t.Run("long passwords not truncated", func(t *testing.T) {
		long := strings.Repeat("a", 100)
		hash, err := h.Hash(t.Context(), long)
		require.NoError(t, err)

		err = h.Compare(t.Context(), hash, long[:80])

		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("fail compare if wrong password", func(t *testing.T) {
		hash, err := h.Hash(t.Context(), "password")
		require.NoError(t, err)

		err = h.Compare(t.Context(), hash, "wrong")

		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("corrupt hash", func(t *testing.T) {
		err := h.Compare(t.Context(), "not-a-bcrypt-hash", "password")

		require.ErrorIs(t, err, apperrors.ErrCorruptCredential)
		require.NotErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("cost clamped", func(t *testing.T) {
		require.Equal(t, MinHashCost, NewBcryptHasher(4, 1).cost)
		require.Equal(t, bcrypt.MaxCost, NewBcryptHasher(100, 1).cost)
	})

	t.Run("gives up when busy and ctx done", func(t *testing.T) {
		busy := NewBcryptHasher(MinHashCost, 1)
		require.NoError(t, busy.sem.Acquire(t.Context(), 1), "occupy the only worker")
		defer busy.sem.Release(1)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := busy.Hash(ctx, "password")
		require.ErrorIs(t, err, context.Canceled)

		err = busy.Compare(ctx, "hash", "password")
		require.ErrorIs(t, err, context.Canceled)
	})
}
