package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/handlers/render"
	"github.com/nkiryanov/accounts/internal/logger"
)

type errorResponse struct {
	err     error
	message string
	code    int
}

// Order matters: the first match wins
var errorResponses = []errorResponse{
	{apperrors.ErrInvalidCredentials, "Invalid email or password", http.StatusUnauthorized},
	{apperrors.ErrMissingToken, "Token is missing", http.StatusUnauthorized},
	{apperrors.ErrExpiredToken, "Token expired", http.StatusUnauthorized},
	// Client must not learn that token was stolen from other device
	{apperrors.ErrTokenBindingMismatch, "Token is invalid", http.StatusUnauthorized},
	{apperrors.ErrInvalidToken, "Token is invalid", http.StatusUnauthorized},
	{apperrors.ErrRequireLogin, "Login required", http.StatusUnauthorized},
	{apperrors.ErrAuthorizationFailed, "Not allowed", http.StatusForbidden},
	{apperrors.ErrDuplicateAccount, "Account already exists", http.StatusConflict},
	{apperrors.ErrAccountNotFound, "Account not found", http.StatusNotFound},
	{apperrors.ErrStoreUnavailable, "Service temporarily unavailable", http.StatusServiceUnavailable},
}

// renderError writes service error to client
// Unexpected errors are logged and rendered without any details
func renderError(w http.ResponseWriter, err error, l logger.Logger) {
	for _, resp := range errorResponses {
		if errors.Is(err, resp.err) {
			if resp.code == http.StatusServiceUnavailable {
				l.Error("Store unavailable", "error", err)
			}
			render.ServiceError(w, resp.message, resp.code)
			return
		}
	}

	l.Error("Unexpected service error", "error", err)
	render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
}
