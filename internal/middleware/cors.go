package middleware

import (
	"net/http"
	"strings"
)

// CORS allows the configured origins. Entries may end with "*" to match a
// prefix, which is how the chrome-extension:// scheme is whitelisted.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	exact := make(map[string]struct{})
	var prefixes []string
	for _, origin := range allowedOrigins {
		if strings.HasSuffix(origin, "*") {
			prefixes = append(prefixes, strings.TrimSuffix(origin, "*"))
			continue
		}
		exact[origin] = struct{}{}
	}

	allowed := func(origin string) bool {
		if _, ok := exact[origin]; ok {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(origin, p) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Locale, X-Billing-Signature")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
