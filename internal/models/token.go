package models

import (
	"time"

	"github.com/google/uuid"
)

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued on login or rotation
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Authenticated caller resolved from an access token
type Identity struct {
	AccountID uuid.UUID
	Email     string
	Role      string
}
