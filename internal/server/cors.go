// cors.go - Configuration-driven cross-origin policy.
//
// One allow-list drives the whole policy: requests without an Origin header
// (curl, mobile clients, server-to-server) always pass; browsers from
// unlisted origins get no CORS headers and preflights are refused.
package server

import (
	"log"
	"net/http"
	"strings"
)

const (
	corsAllowMethods  = "GET, POST, PUT, DELETE, PATCH, OPTIONS"
	corsAllowHeaders  = "Content-Type, Authorization, Cache-Control, Origin, Accept"
	corsExposeHeaders = "Content-Range, X-Content-Range"
	corsMaxAge        = "86400" // cache preflights for 24h
)

type corsPolicy struct {
	allowedOrigins map[string]bool
}

func newCORSPolicy(origins []string) *corsPolicy {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			allowed[o] = true
		}
	}
	return &corsPolicy{allowedOrigins: allowed}
}

func (c *corsPolicy) allows(origin string) bool {
	return c.allowedOrigins[strings.TrimRight(origin, "/")]
}

func (c *corsPolicy) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser client, nothing to negotiate.
			next.ServeHTTP(w, r)
			return
		}

		if !c.allows(origin) {
			log.Printf("msg=origin_not_allowed origin=%q", origin)
			if r.Method == http.MethodOptions {
				writeError(w, http.StatusForbidden, "CORS not allowed for this origin")
				return
			}
			// No CORS headers: the browser blocks the response.
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Expose-Headers", corsExposeHeaders)
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
			w.Header().Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
