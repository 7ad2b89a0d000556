package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/accounts/internal/handlers/render"
	"github.com/nkiryanov/accounts/internal/logger"
	"github.com/nkiryanov/accounts/internal/service/account"
)

const maxListLimit = 1000

func handleDeleteMe(ops account.Operations, l logger.Logger) http.Handler {
	type response struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := ops.DeleteMe(r.Context(), struct{}{})
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, response{Status: res.Status, Message: res.Message})
	})
}

// Unknown id is not an error: renders null
func handleGetAccount(ops account.Operations, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid account id", http.StatusBadRequest)
			return
		}

		acc, err := ops.GetByID(r.Context(), id)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, acc)
	})
}

func handleListAccounts(ops account.Operations, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := account.ListParams{Search: strings.TrimSpace(r.URL.Query().Get("search"))}

		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 || limit > maxListLimit {
				render.ServiceError(w, "Invalid limit", http.StatusBadRequest)
				return
			}
			params.Limit = limit
		}

		accounts, err := ops.List(r.Context(), params)
		if err != nil {
			renderError(w, err, l)
			return
		}

		render.JSON(w, accounts)
	})
}

func handleHealth() http.Handler {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, response{Status: "healthy", Timestamp: timeNow().UTC().Format(time.RFC3339)})
	})
}
