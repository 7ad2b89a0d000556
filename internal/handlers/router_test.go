package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/accounts/internal/events"
	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/repository/postgres"
	"github.com/nkiryanov/accounts/internal/service/account"
	"github.com/nkiryanov/accounts/internal/service/auth"
	"github.com/nkiryanov/accounts/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/accounts/internal/testutil"
)

type recordedEvent struct {
	topic   string
	key     string
	payload []byte
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{topic: topic, key: key, payload: payload})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type server struct {
	URL       string
	Auth      *auth.AuthService
	Publisher *recordingPublisher
}

type reply struct {
	Code int
	Body string
}

// Decode reply body into map, fails test on malformed json
func (r reply) JSON(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.Body), &m), "body is not json object: %s", r.Body)
	return m
}

// Send request and read whole reply. Headers passed as key, value pairs
func do(t *testing.T, method string, url string, body string, headers ...string) reply {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return reply{Code: resp.StatusCode, Body: string(data)}
}

func bearer(token string) []string {
	return []string{"Authorization", "Bearer " + token}
}

func Test_Router(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Production services over one transaction, so every test starts on empty db
	serve := func(t *testing.T, fn func(srv server)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			tokens, err := tokenmanager.New(tokenmanager.Config{AccessSecret: "access-secret", RefreshSecret: "refresh-secret"})
			require.NoError(t, err)

			as, err := auth.NewService(auth.Config{}, auth.Deps{Storage: storage, Tokens: tokens})
			require.NoError(t, err)

			publisher := &recordingPublisher{}
			emitter := events.NewEmitter(publisher, events.EmitterConfig{}, nil, nil)
			accounts := account.NewService(storage, emitter, nil)

			srv := httptest.NewServer(NewRouter(Deps{
				Auth:     as,
				Accounts: accounts.Operations(),
				Metrics:  http.NotFoundHandler(),
			}))
			defer srv.Close()

			fn(server{URL: srv.URL, Auth: as, Publisher: publisher})
		})
	}

	register := func(t *testing.T, srv server, email string) {
		r := do(t, http.MethodPost, srv.URL+"/api/accounts/register",
			`{"email": "`+email+`", "password": "StrongEnoughPassword", "name": "Nik"}`)
		require.Equalf(t, http.StatusCreated, r.Code, "body: %s", r.Body)
	}

	login := func(t *testing.T, srv server, email string) (access string, refresh string) {
		r := do(t, http.MethodPost, srv.URL+"/api/accounts/login",
			`{"email": "`+email+`", "password": "StrongEnoughPassword"}`)
		require.Equalf(t, http.StatusOK, r.Code, "body: %s", r.Body)
		body := r.JSON(t)
		return body["accessToken"].(string), body["refreshToken"].(string)
	}

	t.Run("register ok", func(t *testing.T) {
		serve(t, func(srv server) {
			r := do(t, http.MethodPost, srv.URL+"/api/accounts/register",
				`{"email": "Nik@Example.com", "password": "StrongEnoughPassword", "name": "Nik", "phone": "+100"}`)

			require.Equalf(t, http.StatusCreated, r.Code, "body: %s", r.Body)
			body := r.JSON(t)
			require.Equal(t, "REGISTERED_SUCCESSFULLY", body["status"])
			require.NotContains(t, body, "accessToken", "registration must not issue tokens")

			acc := body["account"].(map[string]any)
			require.Equal(t, "nik@example.com", acc["email"])
			require.Equal(t, "Nik", acc["name"])
			require.Equal(t, "+100", acc["phone"])
			require.Equal(t, models.RoleBarber, acc["role"])
			require.NotContains(t, acc, "passwordHash")
		})
	})

	t.Run("register duplicate", func(t *testing.T) {
		serve(t, func(srv server) {
			register(t, srv, "nik@example.com")

			r := do(t, http.MethodPost, srv.URL+"/api/accounts/register",
				`{"email": "NIK@example.com", "password": "StrongEnoughPassword", "name": "Other"}`)

			require.Equal(t, http.StatusConflict, r.Code)
			require.JSONEq(t, `{"error": "service_error", "message": "Account already exists"}`, r.Body)
		})
	})

	t.Run("register validation", func(t *testing.T) {
		serve(t, func(srv server) {
			r := do(t, http.MethodPost, srv.URL+"/api/accounts/register", `{"email": "not-email"}`)

			require.Equal(t, http.StatusBadRequest, r.Code)
			require.JSONEq(t, `{
				"error": "validation_failed",
				"message": "Request validation failed",
				"fields": {
					"email": "Invalid email address",
					"password": "This field is required",
					"name": "This field is required"
				}
			}`, r.Body)
		})
	})

	t.Run("login", func(t *testing.T) {
		serve(t, func(srv server) {
			register(t, srv, "nik@example.com")

			tests := []struct {
				name     string
				body     string
				code     int
				expected string
			}{
				{
					name: "wrong password",
					body: `{"email": "nik@example.com", "password": "WrongPassword"}`,
					code: http.StatusUnauthorized,
					expected: `{"error": "service_error", "message": "Invalid email or password"}`,
				},
				{
					name: "unknown email looks the same",
					body: `{"email": "who@example.com", "password": "StrongEnoughPassword"}`,
					code: http.StatusUnauthorized,
					expected: `{"error": "service_error", "message": "Invalid email or password"}`,
				},
				{
					name: "malformed json",
					body: `{"email": `,
					code: http.StatusBadRequest,
					expected: `{"error": "decoding_failed", "message": "Failed to parse JSON: unexpected EOF"}`,
				},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					r := do(t, http.MethodPost, srv.URL+"/api/accounts/login", tt.body)

					require.Equal(t, tt.code, r.Code)
					require.JSONEq(t, tt.expected, r.Body)
				})
			}

			t.Run("ok", func(t *testing.T) {
				r := do(t, http.MethodPost, srv.URL+"/api/accounts/login",
					`{"email": "NIK@example.com", "password": "StrongEnoughPassword"}`)

				require.Equalf(t, http.StatusOK, r.Code, "body: %s", r.Body)
				body := r.JSON(t)
				require.Equal(t, "LOGGED_IN_SUCCESSFULLY", body["status"])
				require.NotEmpty(t, body["accessToken"])
				require.NotEmpty(t, body["refreshToken"])
				require.NotEqual(t, body["accessToken"], body["refreshToken"])
				require.Equal(t, "nik@example.com", body["account"].(map[string]any)["email"])
			})
		})
	})

	t.Run("token", func(t *testing.T) {
		serve(t, func(srv server) {
			register(t, srv, "nik@example.com")
			_, refresh := login(t, srv, "nik@example.com")

			r := do(t, http.MethodPost, srv.URL+"/api/accounts/token", "")
			require.Equal(t, http.StatusUnauthorized, r.Code)
			require.JSONEq(t, `{"error": "service_error", "message": "Token is missing"}`, r.Body)

			r = do(t, http.MethodPost, srv.URL+"/api/accounts/token", `{"refreshToken": "`+refresh+`"}`, "User-Agent", "other-device")
			require.Equal(t, http.StatusUnauthorized, r.Code)
			require.JSONEq(t, `{"error": "service_error", "message": "Token is invalid"}`, r.Body, "binding mismatch looks like invalid token")

			r = do(t, http.MethodPost, srv.URL+"/api/accounts/token", `{"refreshToken": "`+refresh+`"}`)
			require.Equalf(t, http.StatusOK, r.Code, "body: %s", r.Body)
			body := r.JSON(t)
			require.Equal(t, "TOKEN_GENERATED", body["status"])
			require.NotEqual(t, refresh, body["refreshToken"])

			r = do(t, http.MethodPost, srv.URL+"/api/accounts/token", `{"refreshToken": "`+refresh+`"}`)
			require.Equal(t, http.StatusUnauthorized, r.Code, "refresh token is redeemable once")
			require.JSONEq(t, `{"error": "service_error", "message": "Token is invalid"}`, r.Body)

			r = do(t, http.MethodPost, srv.URL+"/api/accounts/token", `{"refreshToken": "`+body["refreshToken"].(string)+`"}`)
			require.Equal(t, http.StatusOK, r.Code, "new refresh token works")
		})
	})

	t.Run("get account", func(t *testing.T) {
		serve(t, func(srv server) {
			register(t, srv, "nik@example.com")
			access, _ := login(t, srv, "nik@example.com")
			me, err := srv.Auth.Authenticate(t.Context(), access)
			require.NoError(t, err)

			r := do(t, http.MethodGet, srv.URL+"/api/accounts/"+me.AccountID.String(), "")
			require.Equal(t, http.StatusUnauthorized, r.Code)
			require.JSONEq(t, `{"error": "service_error", "message": "Login required"}`, r.Body)

			r = do(t, http.MethodGet, srv.URL+"/api/accounts/"+me.AccountID.String(), "", bearer(access)...)
			require.Equalf(t, http.StatusOK, r.Code, "body: %s", r.Body)
			require.Equal(t, "nik@example.com", r.JSON(t)["email"])

			r = do(t, http.MethodGet, srv.URL+"/api/accounts/00000000-0000-0000-0000-000000000000", "", bearer(access)...)
			require.Equal(t, http.StatusOK, r.Code)
			require.Equal(t, "null", strings.TrimSpace(r.Body))

			r = do(t, http.MethodGet, srv.URL+"/api/accounts/not-uuid", "", bearer(access)...)
			require.Equal(t, http.StatusBadRequest, r.Code)

			r = do(t, http.MethodGet, srv.URL+"/api/accounts/"+me.AccountID.String(), "", bearer("garbage")...)
			require.Equal(t, http.StatusUnauthorized, r.Code, "invalid token resolves to anonymous")
		})
	})

	t.Run("list accounts", func(t *testing.T) {
		serve(t, func(srv server) {
			_, err := srv.Auth.Register(t.Context(), auth.RegisterParams{
				Email: "owner@example.com", Password: "StrongEnoughPassword", Name: "Owner", Role: models.RoleOwner,
			})
			require.NoError(t, err)
			register(t, srv, "barber@example.com")
			register(t, srv, "other@example.com")

			owner, _ := login(t, srv, "owner@example.com")
			barber, _ := login(t, srv, "barber@example.com")

			r := do(t, http.MethodGet, srv.URL+"/api/accounts", "", bearer(barber)...)
			require.Equal(t, http.StatusForbidden, r.Code)

			r = do(t, http.MethodGet, srv.URL+"/api/accounts", "", bearer(owner)...)
			require.Equalf(t, http.StatusOK, r.Code, "body: %s", r.Body)
			var all []models.AccountSummary
			require.NoError(t, json.Unmarshal([]byte(r.Body), &all))
			emails := make([]string, 0, len(all))
			for _, a := range all {
				emails = append(emails, a.Email)
			}
			require.ElementsMatch(t, []string{"owner@example.com", "barber@example.com", "other@example.com"}, emails)

			r = do(t, http.MethodGet, srv.URL+"/api/accounts?search=BARB&limit=5", "", bearer(owner)...)
			require.Equal(t, http.StatusOK, r.Code)
			var found []models.AccountSummary
			require.NoError(t, json.Unmarshal([]byte(r.Body), &found))
			require.Len(t, found, 1)
			require.Equal(t, "barber@example.com", found[0].Email)

			r = do(t, http.MethodGet, srv.URL+"/api/accounts?search=nobody", "", bearer(owner)...)
			require.Equal(t, http.StatusOK, r.Code)
			require.Equal(t, "[]", strings.TrimSpace(r.Body))

			r = do(t, http.MethodGet, srv.URL+"/api/accounts?limit=-1", "", bearer(owner)...)
			require.Equal(t, http.StatusBadRequest, r.Code)
		})
	})

	t.Run("account lifecycle", func(t *testing.T) {
		serve(t, func(srv server) {
			register(t, srv, "nik@example.com")
			access, refresh := login(t, srv, "nik@example.com")
			me, err := srv.Auth.Authenticate(t.Context(), access)
			require.NoError(t, err)

			r := do(t, http.MethodDelete, srv.URL+"/api/accounts/me", "")
			require.Equal(t, http.StatusUnauthorized, r.Code)

			r = do(t, http.MethodDelete, srv.URL+"/api/accounts/me", "", bearer(access)...)
			require.Equalf(t, http.StatusOK, r.Code, "body: %s", r.Body)
			require.JSONEq(t, `{"status": "ACCOUNT_DELETED", "message": "Account deleted. Cleanup is in progress"}`, r.Body)

			require.Len(t, srv.Publisher.events, 1, "deletion announced exactly once")
			event := srv.Publisher.events[0]
			require.Equal(t, models.TopicAccountDeleted, event.topic)
			require.Equal(t, me.AccountID.String(), event.key)
			require.Contains(t, string(event.payload), `"userId":"`+me.AccountID.String()+`"`)

			r = do(t, http.MethodPost, srv.URL+"/api/accounts/token", `{"refreshToken": "`+refresh+`"}`)
			require.Equal(t, http.StatusUnauthorized, r.Code, "sessions removed with account")

			r = do(t, http.MethodPost, srv.URL+"/api/accounts/login", `{"email": "nik@example.com", "password": "StrongEnoughPassword"}`)
			require.Equal(t, http.StatusUnauthorized, r.Code)

			r = do(t, http.MethodDelete, srv.URL+"/api/accounts/me", "", bearer(access)...)
			require.Equal(t, http.StatusNotFound, r.Code, "access token outlives account")
		})
	})

	t.Run("register, login, rotate, delete with short password", func(t *testing.T) {
		serve(t, func(srv server) {
			credentials := `{"email": "a@x.com", "password": "pw1234"}`

			r := do(t, http.MethodPost, srv.URL+"/api/accounts/register", `{"email": "a@x.com", "password": "pw1234", "name": "Name"}`)
			require.Equalf(t, http.StatusCreated, r.Code, "no password length policy. Body: %s", r.Body)
			require.Equal(t, "REGISTERED_SUCCESSFULLY", r.JSON(t)["status"])

			r = do(t, http.MethodPost, srv.URL+"/api/accounts/login", credentials)
			require.Equalf(t, http.StatusOK, r.Code, "body: %s", r.Body)
			refresh := r.JSON(t)["refreshToken"].(string)

			r = do(t, http.MethodPost, srv.URL+"/api/accounts/token", `{"refreshToken": "`+refresh+`"}`)
			require.Equalf(t, http.StatusOK, r.Code, "body: %s", r.Body)
			rotated := r.JSON(t)
			require.Equal(t, "TOKEN_GENERATED", rotated["status"])

			r = do(t, http.MethodPost, srv.URL+"/api/accounts/token", `{"refreshToken": "`+refresh+`"}`)
			require.Equal(t, http.StatusUnauthorized, r.Code, "old refresh token is spent")

			r = do(t, http.MethodDelete, srv.URL+"/api/accounts/me", "", bearer(rotated["accessToken"].(string))...)
			require.Equalf(t, http.StatusOK, r.Code, "body: %s", r.Body)
			require.Equal(t, "ACCOUNT_DELETED", r.JSON(t)["status"])
			require.Len(t, srv.Publisher.events, 1)

			r = do(t, http.MethodPost, srv.URL+"/api/accounts/login", credentials)
			require.Equal(t, http.StatusUnauthorized, r.Code)
			require.JSONEq(t, `{"error": "service_error", "message": "Invalid email or password"}`, r.Body)
		})
	})

	t.Run("health", func(t *testing.T) {
		serve(t, func(srv server) {
			r := do(t, http.MethodGet, srv.URL+"/health", "")

			require.Equal(t, http.StatusOK, r.Code)
			body := r.JSON(t)
			require.Equal(t, "healthy", body["status"])
			require.NotEmpty(t, body["timestamp"])
		})
	})
}
