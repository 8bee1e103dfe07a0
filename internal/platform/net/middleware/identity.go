package middleware

import (
	"net/http"

	wmnet "whispermap/internal/platform/net"
)

// UserHeader copies the X-User-ID header onto the request context
// mobile clients identify themselves per request, there is no session state
func UserHeader() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if uid := r.Header.Get("X-User-ID"); uid != "" {
				r = r.WithContext(wmnet.WithUser(r.Context(), uid))
			}
			next.ServeHTTP(w, r)
		})
	}
}
