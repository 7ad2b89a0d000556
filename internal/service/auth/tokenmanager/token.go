package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/models"
)

const (
	defaultAccessTokenTTL  = 5 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	Kind  Kind   `json:"kind"`
}

// Identity of the token owner
func (c Claims) Identity() (models.Identity, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return models.Identity{}, fmt.Errorf("bad subject: %w", apperrors.ErrInvalidToken)
	}
	return models.Identity{AccountID: id, Email: c.Email, Role: c.Role}, nil
}

// Token manager with sensible default
type Config struct {
	// Secret keys to sign access and refresh tokens
	// Both required and must differ
	AccessSecret  string
	RefreshSecret string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Clock to issue and verify tokens. time.Now if not set
	Now func() time.Time
}

type TokenManager struct {
	keys map[Kind][]byte
	ttls map[Kind]time.Duration

	alg jwt.SigningMethod
	now func() time.Time
}

func New(cfg Config) (*TokenManager, error) {
	switch {
	case cfg.AccessSecret == "" || cfg.RefreshSecret == "":
		return nil, errors.New("access and refresh secret keys must not be empty")
	case cfg.AccessSecret == cfg.RefreshSecret:
		return nil, errors.New("access and refresh secret keys must differ")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("signing method %q is not supported, use one of HS256, HS384, HS512", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field <= 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenManager{
		keys: map[Kind][]byte{
			KindAccess:  []byte(cfg.AccessSecret),
			KindRefresh: []byte(cfg.RefreshSecret),
		},
		ttls: map[Kind]time.Duration{
			KindAccess:  cfg.AccessTTL,
			KindRefresh: cfg.RefreshTTL,
		},
		alg: alg,
		now: cfg.Now,
	}, nil
}

func (m *TokenManager) SignAccess(id models.Identity) (models.IssuedToken, error) {
	return m.sign(KindAccess, id)
}

// Refresh token doesn't carry role: it is read from store on rotation
func (m *TokenManager) SignRefresh(id models.Identity) (models.IssuedToken, error) {
	id.Role = ""
	return m.sign(KindRefresh, id)
}

func (m *TokenManager) sign(kind Kind, id models.Identity) (models.IssuedToken, error) {
	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(m.ttls[kind])

	token := jwt.NewWithClaims(m.alg, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.AccountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: id.Email,
		Role:  id.Role,
		Kind:  kind,
	})

	signed, err := token.SignedString(m.keys[kind])
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing %s token. Err: %w", kind, err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

func (m *TokenManager) VerifyAccess(token string) (Claims, error) {
	return m.Verify(token, KindAccess)
}

func (m *TokenManager) VerifyRefresh(token string) (Claims, error) {
	return m.Verify(token, KindRefresh)
}

// Verify checks signature, expiration and kind of the token
// Returns apperrors.ErrExpiredToken only if the signature is valid
// Any other problem is apperrors.ErrInvalidToken
func (m *TokenManager) Verify(token string, kind Kind) (Claims, error) {
	var claims Claims
	key, ok := m.keys[kind]
	if !ok {
		return claims, fmt.Errorf("unknown token kind %q: %w", kind, apperrors.ErrInvalidToken)
	}

	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(t *jwt.Token) (any, error) {
			return key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	switch {
	case err == nil && claims.Kind != kind:
		return claims, fmt.Errorf("expected %s token, got %q: %w", kind, claims.Kind, apperrors.ErrInvalidToken)
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		// jwt checks signature before claims, so the token is authentic
		return claims, fmt.Errorf("%w: %w", apperrors.ErrExpiredToken, err)
	default:
		return claims, fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, err)
	}
}
