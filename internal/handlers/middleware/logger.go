package middleware

import (
	"net/http"
	"time"

	"github.com/nkiryanov/accounts/internal/userctx"
)

type requestLogger interface {
	Info(msg string, args ...any)
}

// responseRecorder remembers what was sent to the client
type responseRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseRecorder) Write(p []byte) (int, error) {
	size, err := w.ResponseWriter.Write(p)
	w.size += size
	return size, err
}

func (w *responseRecorder) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.status = statusCode
}

// LoggerMiddleware logs every request with the client it came from
// Has to run after ClientMiddleware and IdentityMiddleware to see what they resolved
func LoggerMiddleware(l requestLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			client := userctx.ClientFromContext(r.Context())
			args := []any{
				"method", r.Method,
				"uri", r.RequestURI,
				"duration", time.Since(start),
				"status", rec.status,
				"size", rec.size,
				"device", client.Device,
				"ip", client.IP,
			}
			if id, ok := userctx.FromContext(r.Context()); ok {
				args = append(args, "account_id", id.AccountID)
			}

			l.Info("HTTP request served", args...)
		})
	}
}
