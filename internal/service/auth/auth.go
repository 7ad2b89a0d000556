package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/logger"
	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/repository"
	"github.com/nkiryanov/accounts/internal/service/auth/tokenmanager"
)

const (
	OperationLogin        = "login"
	OperationRegister     = "register"
	OperationRotate       = "rotate"
	OperationAuthenticate = "authenticate"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(ctx context.Context, password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Has to return apperrors.ErrInvalidCredentials on mismatch and apperrors.ErrCorruptCredential on malformed hash
	Compare(ctx context.Context, hashedPassword string, password string) error
}

// Signs and verifies access and refresh tokens
type TokenCodec interface {
	SignAccess(id models.Identity) (models.IssuedToken, error)
	SignRefresh(id models.Identity) (models.IssuedToken, error)
	VerifyAccess(token string) (tokenmanager.Claims, error)
	VerifyRefresh(token string) (tokenmanager.Claims, error)
}

// Observer is notified about the outcome of every auth operation
type Observer interface {
	Observe(operation string, err error)
}

type Config struct {
	// How long session lives in store
	// If not set, session expires together with its refresh token
	SessionTTL time.Duration
}

// Dependencies of auth service. Storage and Tokens are required
type Deps struct {
	Storage  repository.Storage
	Tokens   TokenCodec
	Hasher   PasswordHasher
	Logger   logger.Logger
	Observer Observer
}

type RegisterParams struct {
	Email    string
	Password string
	Name     string
	Phone    *string

	// Role of the new account, models.DefaultRole if empty
	Role string
}

type LoginResult struct {
	Account models.AccountSummary
	Tokens  models.TokenPair
}

type AuthService struct {
	cfg      Config
	storage  repository.Storage
	tokens   TokenCodec
	hasher   PasswordHasher
	logger   logger.Logger
	observer Observer

	// compared against when account not found, so both login failures take the same time
	dummyHash string
}

type nopObserver struct{}

func (nopObserver) Observe(string, error) {}

func NewService(cfg Config, deps Deps) (*AuthService, error) {
	if deps.Storage == nil || deps.Tokens == nil {
		return nil, errors.New("storage and token codec must not be nil")
	}

	if deps.Hasher == nil {
		deps.Hasher = NewBcryptHasher(MinHashCost, 0)
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}

	dummyHash, err := deps.Hasher.Hash(context.Background(), "dummy-password-never-matches")
	if err != nil {
		return nil, fmt.Errorf("error while preparing hasher. Err: %w", err)
	}

	return &AuthService{
		cfg:       cfg,
		storage:   deps.Storage,
		tokens:    deps.Tokens,
		hasher:    deps.Hasher,
		logger:    deps.Logger.With("component", "auth"),
		observer:  deps.Observer,
		dummyHash: dummyHash,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates account; tokens are not issued, client has to login
func (s *AuthService) Register(ctx context.Context, p RegisterParams) (summary models.AccountSummary, err error) {
	defer func() { s.observer.Observe(OperationRegister, err) }()

	hash, err := s.hasher.Hash(ctx, p.Password)
	if err != nil {
		return summary, fmt.Errorf("can't use this as password, error=%w", err)
	}

	if p.Role == "" {
		p.Role = models.DefaultRole
	}

	account, err := s.storage.Account().Create(ctx, models.Account{
		Email:        normalizeEmail(p.Email),
		PasswordHash: hash,
		Name:         strings.TrimSpace(p.Name),
		Phone:        p.Phone,
		Role:         p.Role,
	})
	if err != nil {
		return summary, err
	}

	s.logger.Info("Account registered", "account_id", account.ID)
	return account.Summary(), nil
}

// Login checks credentials and opens session bound to the client
// Unknown email and wrong password are indistinguishable for the caller
func (s *AuthService) Login(ctx context.Context, email string, password string, client models.Client) (res LoginResult, err error) {
	defer func() { s.observer.Observe(OperationLogin, err) }()

	account, err := s.storage.Account().GetByEmail(ctx, normalizeEmail(email))
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		_ = s.hasher.Compare(ctx, s.dummyHash, password)
		return res, apperrors.ErrInvalidCredentials
	case err != nil:
		return res, err
	}

	err = s.hasher.Compare(ctx, account.PasswordHash, password)
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return res, apperrors.ErrInvalidCredentials
	case errors.Is(err, apperrors.ErrCorruptCredential):
		s.logger.Error("Stored password hash is corrupt", "account_id", account.ID, "error", err)
		return res, err
	case err != nil:
		return res, err
	}

	pair, err := s.openSession(ctx, account, client)
	if err != nil {
		return res, err
	}

	return LoginResult{Account: account.Summary(), Tokens: pair}, nil
}

// Rotate redeems refresh token once and issues a new pair bound to the same client
func (s *AuthService) Rotate(ctx context.Context, refresh string, client models.Client) (pair models.TokenPair, err error) {
	defer func() { s.observer.Observe(OperationRotate, err) }()

	if refresh == "" {
		return pair, apperrors.ErrMissingToken
	}

	session, err := s.storage.Session().FindByToken(ctx, refresh)
	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound):
		return pair, apperrors.ErrInvalidToken
	case err != nil:
		return pair, err
	}

	if !session.Matches(client) {
		s.logger.Warn("Refresh token used from another client",
			"session_id", session.ID,
			"account_id", session.AccountID,
			"device", client.Device,
			"ip", client.IP,
		)
		return pair, apperrors.ErrTokenBindingMismatch
	}

	claims, err := s.tokens.VerifyRefresh(refresh)
	switch {
	case errors.Is(err, apperrors.ErrExpiredToken):
		return pair, apperrors.ErrExpiredToken
	case err != nil:
		s.logger.Warn("Stored refresh token failed verification", "session_id", session.ID, "error", err)
		return pair, apperrors.ErrInvalidToken
	}

	identity, err := claims.Identity()
	if err != nil || identity.AccountID != session.AccountID {
		s.logger.Warn("Refresh token subject doesn't match session", "session_id", session.ID)
		return pair, apperrors.ErrInvalidToken
	}

	account, err := s.storage.Account().GetByID(ctx, session.AccountID)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return pair, apperrors.ErrInvalidToken
	case err != nil:
		return pair, err
	}

	// Only one of concurrent redemptions gets the row
	deleted, err := s.storage.Session().DeleteByToken(ctx, refresh)
	switch {
	case err != nil:
		return pair, err
	case !deleted:
		return pair, apperrors.ErrInvalidToken
	}

	pair, err = s.openSession(ctx, account, models.Client{Device: session.Device, IP: session.IP})
	if err != nil {
		s.logger.Error("Session rotated out but new one not created, client has to login", "account_id", account.ID, "error", err)
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Authenticate resolves identity from access token
func (s *AuthService) Authenticate(_ context.Context, access string) (id models.Identity, err error) {
	defer func() { s.observer.Observe(OperationAuthenticate, err) }()

	if access == "" {
		return id, apperrors.ErrMissingToken
	}

	claims, err := s.tokens.VerifyAccess(access)
	if err != nil {
		return id, err
	}

	return claims.Identity()
}

func (s *AuthService) openSession(ctx context.Context, account models.Account, client models.Client) (models.TokenPair, error) {
	var pair models.TokenPair
	identity := models.Identity{AccountID: account.ID, Email: account.Email, Role: account.Role}

	access, err := s.tokens.SignAccess(identity)
	if err != nil {
		return pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}
	refresh, err := s.tokens.SignRefresh(identity)
	if err != nil {
		return pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	expiresAt := refresh.ExpiresAt
	if s.cfg.SessionTTL > 0 {
		expiresAt = time.Now().Add(s.cfg.SessionTTL)
	}

	_, err = s.storage.Session().Create(ctx, models.Session{
		AccountID: account.ID,
		Token:     refresh.Value,
		Device:    client.Device,
		IP:        client.IP,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return pair, fmt.Errorf("error while saving session. Err: %w", err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}
