package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/userctx"
)

// ClientMiddleware puts device and ip of the caller to request context
//
// trustedProxies is the number of reverse proxies in front of the service.
// With zero the first X-Forwarded-For entry is used as is.
// Otherwise the entry appended by the outermost trusted proxy is used, entries before it may be forged.
// If the header holds fewer entries than proxies, peer address is used.
func ClientMiddleware(trustedProxies int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := models.Client{
				Device: Device(r),
				IP:     ClientIP(r, trustedProxies),
			}
			next.ServeHTTP(w, r.WithContext(userctx.WithClient(r.Context(), client)))
		})
	}
}

func Device(r *http.Request) string {
	if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
		return ua
	}
	return models.UnknownDevice
}

func ClientIP(r *http.Request, trustedProxies int) string {
	var forwarded []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		for _, entry := range strings.Split(header, ",") {
			if entry = strings.TrimSpace(entry); entry != "" {
				forwarded = append(forwarded, entry)
			}
		}
	}

	switch {
	case len(forwarded) == 0:
	case trustedProxies <= 0:
		return forwarded[0]
	case len(forwarded) >= trustedProxies:
		return forwarded[len(forwarded)-trustedProxies]
	}

	// No header, or fewer entries than proxies: peer address is the only one not forged
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
