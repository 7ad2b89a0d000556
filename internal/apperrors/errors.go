package apperrors

import (
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrCorruptCredential  = errors.New("stored credential is corrupt")

	ErrMissingToken         = errors.New("token is missing")
	ErrInvalidToken         = errors.New("token is invalid")
	ErrExpiredToken         = errors.New("token is expired")
	ErrTokenBindingMismatch = errors.New("token is bound to another device or ip")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionConflict = errors.New("session already exists")

	ErrRequireLogin        = errors.New("login required")
	ErrAuthorizationFailed = errors.New("account is not authorized for this operation")

	ErrStoreUnavailable = errors.New("store unavailable")
)
