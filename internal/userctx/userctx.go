package userctx

import (
	"context"

	"github.com/nkiryanov/accounts/internal/models"
)

type ctxKey struct{ name string }

var (
	identityKey = ctxKey{"identity"}
	clientKey   = ctxKey{"client"}
)

// Create a new context with the authenticated identity
func New(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Extract the identity from the context
func FromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}

func WithClient(ctx context.Context, c models.Client) context.Context {
	return context.WithValue(ctx, clientKey, c)
}

// ClientFromContext returns client of the request or unknown one
func ClientFromContext(ctx context.Context) models.Client {
	c, ok := ctx.Value(clientKey).(models.Client)
	if !ok {
		return models.Client{Device: models.UnknownDevice}
	}
	return c
}
