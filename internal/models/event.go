package models

import (
	"time"

	"github.com/google/uuid"
)

const TopicAccountDeleted = "account-deleted"

type AccountDeletedEvent struct {
	UserID    uuid.UUID `json:"userId"`
	Email     string    `json:"email"`
	DeletedAt time.Time `json:"deletedAt"`
}
