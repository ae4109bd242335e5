// Package auth provides HTTP middleware for bearer token authentication of
// the streamable HTTP transport.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

const bearerPrefix = "Bearer "

// NewAuthMiddleware returns an HTTP middleware that enforces bearer token
// authentication. If token is empty, authentication is disabled and all
// requests pass through.
//
// When enabled, the request must carry exactly
//
//	Authorization: Bearer <token>
//
// with a case-sensitive prefix and a single space. Anything else gets a 401
// with a WWW-Authenticate challenge and the next handler is not called.
// Rejections are logged at warn level without the presented credential.
func NewAuthMiddleware(token string, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !validBearer(r.Header.Get("Authorization"), token) {
				if logger != nil {
					logger.WithFields(logrus.Fields{
						"remote": r.RemoteAddr,
						"path":   r.URL.Path,
					}).Warn("rejected unauthenticated request")
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="github-graphql-mcp"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validBearer(header, token string) bool {
	if !strings.HasPrefix(header, bearerPrefix) {
		return false
	}
	provided := header[len(bearerPrefix):]
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(token)) == 1
}
