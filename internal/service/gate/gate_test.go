package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/userctx"
)

func TestGate(t *testing.T) {
	type request struct{ Value string }
	type response struct{ Echo string }

	var calls int
	var gotCtx context.Context
	echo := func(ctx context.Context, req request) (*response, error) {
		calls++
		gotCtx = ctx
		return &response{Echo: req.Value}, nil
	}

	owner := userctx.New(context.Background(), models.Identity{AccountID: uuid.New(), Role: models.RoleOwner})
	barber := userctx.New(context.Background(), models.Identity{AccountID: uuid.New(), Role: models.RoleBarber})

	tests := []struct {
		name        string
		role        string
		ctx         context.Context
		expectedErr error
	}{
		{"no identity", "", context.Background(), apperrors.ErrRequireLogin},
		{"no identity with role", models.RoleOwner, context.Background(), apperrors.ErrRequireLogin},
		{"role mismatch", models.RoleOwner, barber, apperrors.ErrAuthorizationFailed},
		{"any role", "", barber, nil},
		{"role match", models.RoleOwner, owner, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = 0
			op := Require(tt.role, echo)

			resp, err := op(tt.ctx, request{Value: "hi"})

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				require.Nil(t, resp)
				require.Equal(t, 0, calls, "operation must not be called")
				return
			}
			require.NoError(t, err)
			require.Equal(t, &response{Echo: "hi"}, resp, "gate must not alter response")
			require.Equal(t, 1, calls)
			require.Equal(t, tt.ctx, gotCtx, "context has to be passed unchanged")
		})
	}

	t.Run("operation error passed through", func(t *testing.T) {
		boom := errors.New("boom")
		op := RequireLogin(func(ctx context.Context, _ struct{}) (int, error) {
			return 42, boom
		})

		got, err := op(owner, struct{}{})

		require.Equal(t, boom, err)
		require.Equal(t, 42, got)
	})

	t.Run("gates compose", func(t *testing.T) {
		op := RequireLogin(Require(models.RoleOwner, echo))

		_, err := op(barber, request{})
		require.ErrorIs(t, err, apperrors.ErrAuthorizationFailed)

		_, err = op(owner, request{})
		require.NoError(t, err)
	})
}
