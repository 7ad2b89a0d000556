package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleOwner  = "OWNER"
	RoleBarber = "BARBER"

	DefaultRole = RoleBarber
)

type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Phone        *string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary returns the account without the credential
func (a Account) Summary() AccountSummary {
	return AccountSummary{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Phone:     a.Phone,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// Account data which is safe to render to clients
type AccountSummary struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
