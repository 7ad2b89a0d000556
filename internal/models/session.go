package models

import (
	"time"

	"github.com/google/uuid"
)

// Device recorded when the client does not send any User-Agent
const UnknownDevice = "unknown"

// Refresh token session bound to the client it was issued to
type Session struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Token     string // raw refresh token, never persisted
	Device    string
	IP        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Client fingerprint of the current request
type Client struct {
	Device string
	IP     string
}

// Matches reports whether the session was issued to the same device and ip
func (s Session) Matches(c Client) bool {
	return s.Device == c.Device && s.IP == c.IP
}
