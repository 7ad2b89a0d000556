package handlers

import (
	"net/http"
	"time"

	"github.com/nkiryanov/accounts/internal/handlers/middleware"
	"github.com/nkiryanov/accounts/internal/logger"
	"github.com/nkiryanov/accounts/internal/service/account"
)

var timeNow = time.Now

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Deps struct {
	Auth     authService
	Accounts account.Operations

	// Prometheus handler, /metrics is not served if nil
	Metrics http.Handler
	Logger  logger.Logger

	// Count of reverse proxies in front of the service, see middleware.ClientMiddleware
	TrustedProxyDepth int
}

func NewRouter(deps Deps) http.Handler {
	l := deps.Logger
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	apiaccounts := http.NewServeMux()

	apiaccounts.Handle("POST /register", handleRegister(deps.Auth, l))
	apiaccounts.Handle("POST /login", handleLogin(deps.Auth, l))
	apiaccounts.Handle("POST /token", handleToken(deps.Auth, l))
	apiaccounts.Handle("DELETE /me", handleDeleteMe(deps.Accounts, l))
	apiaccounts.Handle("GET /{id}", handleGetAccount(deps.Accounts, l))

	root := http.NewServeMux()
	root.Handle("/api/accounts/", http.StripPrefix("/api/accounts", apiaccounts))
	root.Handle("GET /api/accounts", handleListAccounts(deps.Accounts, l))
	root.Handle("GET /health", handleHealth())
	if deps.Metrics != nil {
		root.Handle("GET /metrics", deps.Metrics)
	}

	handler := chain(root,
		middleware.ClientMiddleware(deps.TrustedProxyDepth),
		middleware.IdentityMiddleware(deps.Auth, l),
		middleware.LoggerMiddleware(l),
	)

	return handler
}
