// Package gate guards operations with identity and role checks.
//
// Gate wraps an operation and doesn't look into its arguments or results:
//
//	list := gate.Require(models.RoleOwner, accounts.List)
//	res, err := list(ctx, params)
package gate

import (
	"context"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/userctx"
)

// Operation is any call that takes request context
type Operation[Req any, Resp any] func(ctx context.Context, req Req) (Resp, error)

// RequireLogin passes only requests with resolved identity
func RequireLogin[Req any, Resp any](op Operation[Req, Resp]) Operation[Req, Resp] {
	return Require("", op)
}

// Require passes requests with resolved identity of the role
// Empty role means any authenticated identity
func Require[Req any, Resp any](role string, op Operation[Req, Resp]) Operation[Req, Resp] {
	return func(ctx context.Context, req Req) (Resp, error) {
		var zero Resp

		id, ok := userctx.FromContext(ctx)
		if !ok {
			return zero, apperrors.ErrRequireLogin
		}

		if role != "" && id.Role != role {
			return zero, apperrors.ErrAuthorizationFailed
		}

		return op(ctx, req)
	}
}
