package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nkiryanov/accounts/internal/handlers/render"
	"github.com/nkiryanov/accounts/internal/logger"
	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/service/auth"
	"github.com/nkiryanov/accounts/internal/userctx"
)

const (
	StatusRegistered = "REGISTERED_SUCCESSFULLY"
	StatusLoggedIn   = "LOGGED_IN_SUCCESSFULLY"
	StatusToken      = "TOKEN_GENERATED"
)

type authService interface {
	// Register account. Has to return apperrors.ErrDuplicateAccount if email is taken
	Register(ctx context.Context, p auth.RegisterParams) (models.AccountSummary, error)

	// Login with email and password. Has to return apperrors.ErrInvalidCredentials on any mismatch
	Login(ctx context.Context, email string, password string, client models.Client) (auth.LoginResult, error)

	// Redeem refresh token and issue new pair
	Rotate(ctx context.Context, refresh string, client models.Client) (models.TokenPair, error)

	// Resolve identity from access token
	Authenticate(ctx context.Context, access string) (models.Identity, error)
}

type tokensResponse struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

func newTokensResponse(pair models.TokenPair) tokensResponse {
	return tokensResponse{
		AccessToken:           pair.Access.Value,
		AccessTokenExpiresAt:  pair.Access.ExpiresAt,
		RefreshToken:          pair.Refresh.Value,
		RefreshTokenExpiresAt: pair.Refresh.ExpiresAt,
	}
}

func handleRegister(svc authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string  `json:"email" validate:"required,email,max=254"`
		Password string  `json:"password" validate:"required,max=128"`
		Name     string  `json:"name" validate:"required,max=100"`
		Phone    *string `json:"phone" validate:"omitempty,max=32"`
	}
	type response struct {
		Status  string                `json:"status"`
		Message string                `json:"message"`
		Account models.AccountSummary `json:"account"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		account, err := svc.Register(r.Context(), auth.RegisterParams{
			Email:    data.Email,
			Password: data.Password,
			Name:     data.Name,
			Phone:    data.Phone,
		})
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSONWithStatus(w, response{
			Status:  StatusRegistered,
			Message: "Account registered. Login to get tokens",
			Account: account,
		}, http.StatusCreated)
	})
}

func handleLogin(svc authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type response struct {
		Status string `json:"status"`
		tokensResponse
		Account models.AccountSummary `json:"account"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		client := userctx.ClientFromContext(r.Context())
		res, err := svc.Login(r.Context(), data.Email, data.Password, client)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, response{
			Status:         StatusLoggedIn,
			tokensResponse: newTokensResponse(res.Tokens),
			Account:        res.Account,
		})
	})
}

// Missing refresh token is not validation error: service decides how to answer
func handleToken(svc authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refreshToken"`
	}
	type response struct {
		Status string `json:"status"`
		tokensResponse
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		client := userctx.ClientFromContext(r.Context())
		pair, err := svc.Rotate(r.Context(), data.RefreshToken, client)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, response{Status: StatusToken, tokensResponse: newTokensResponse(pair)})
	})
}
