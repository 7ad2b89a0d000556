package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/userctx"
)

type authenticator interface {
	Authenticate(ctx context.Context, access string) (models.Identity, error)
}

type debugLogger interface {
	Debug(msg string, args ...any)
}

// IdentityMiddleware resolves identity from bearer token if any
// Request without valid token goes on anonymous: it's up to operation gate to reject it
func IdentityMiddleware(auth authenticator, l debugLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				l.Debug("Access token rejected", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), id)))
		})
	}
}

// BearerToken returns token from 'Authorization: Bearer <token>' header
func BearerToken(r *http.Request) string {
	const prefix = "bearer "

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
