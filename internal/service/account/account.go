package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/logger"
	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/repository"
	"github.com/nkiryanov/accounts/internal/service/gate"
	"github.com/nkiryanov/accounts/internal/userctx"
)

const (
	StatusAccountDeleted  = "ACCOUNT_DELETED"
	MessageAccountDeleted = "Account deleted. Cleanup is in progress"
)

type emitter interface {
	AccountDeleted(ctx context.Context, event models.AccountDeletedEvent)
}

type DeleteResult struct {
	Status  string
	Message string
}

type ListParams struct {
	Limit  int
	Search string
}

type AccountService struct {
	storage repository.Storage
	emitter emitter
	logger  logger.Logger
}

func NewService(storage repository.Storage, emitter emitter, l logger.Logger) *AccountService {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &AccountService{
		storage: storage,
		emitter: emitter,
		logger:  l.With("component", "account"),
	}
}

// Delete removes account with all its sessions in one transaction, then announces deletion
// Deletion succeeds even if the event can't be published
func (s *AccountService) Delete(ctx context.Context, id uuid.UUID) (DeleteResult, error) {
	var deleted models.Account

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		count, err := tx.Session().DeleteAllForAccount(ctx, id)
		if err != nil {
			return err
		}

		deleted, err = tx.Account().Delete(ctx, id)
		if err != nil {
			return err
		}

		s.logger.Debug("Account sessions removed", "account_id", id, "count", count)
		return nil
	})
	if err != nil {
		return DeleteResult{}, fmt.Errorf("can't delete account. Err: %w", err)
	}

	s.emitter.AccountDeleted(ctx, models.AccountDeletedEvent{
		UserID:    deleted.ID,
		Email:     deleted.Email,
		DeletedAt: time.Now().UTC(),
	})

	return DeleteResult{Status: StatusAccountDeleted, Message: MessageAccountDeleted}, nil
}

// GetByID returns nil if account doesn't exist
func (s *AccountService) GetByID(ctx context.Context, id uuid.UUID) (*models.AccountSummary, error) {
	account, err := s.storage.Account().GetByID(ctx, id)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}

	summary := account.Summary()
	return &summary, nil
}

// List returns newest accounts first
func (s *AccountService) List(ctx context.Context, p ListParams) ([]models.AccountSummary, error) {
	accounts, err := s.storage.Account().List(ctx, repository.ListAccountsOpts{Limit: p.Limit, Search: p.Search})
	if err != nil {
		return nil, err
	}

	res := make([]models.AccountSummary, 0, len(accounts))
	for _, a := range accounts {
		res = append(res, a.Summary())
	}
	return res, nil
}

// Operations available to clients, each behind its gate
type Operations struct {
	// Delete account of the caller
	DeleteMe gate.Operation[struct{}, DeleteResult]
	GetByID  gate.Operation[uuid.UUID, *models.AccountSummary]
	List     gate.Operation[ListParams, []models.AccountSummary]
}

func (s *AccountService) Operations() Operations {
	return Operations{
		DeleteMe: gate.RequireLogin(func(ctx context.Context, _ struct{}) (DeleteResult, error) {
			id, _ := userctx.FromContext(ctx)
			return s.Delete(ctx, id.AccountID)
		}),
		GetByID: gate.RequireLogin(s.GetByID),
		List:    gate.Require(models.RoleOwner, s.List),
	}
}
