package httpapi

import (
	"crypto/subtle"
	"log"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		next.ServeHTTP(w, r)
		logger.Printf("%s %s from=%s dur=%s", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

// adminAuth guards issuance, revocation and audit reads.  The token
// arrives in X-Admin-Token and is checked against a bcrypt hash when one
// is configured, falling back to a constant-time comparison with the
// plain configured token otherwise.  The scan path is deliberately not
// behind this — visitors are unauthenticated.
func adminAuth(tokenHash []byte, plainToken string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "admin token required")
			return
		}

		ok := false
		if len(tokenHash) > 0 {
			ok = bcrypt.CompareHashAndPassword(tokenHash, []byte(token)) == nil
		} else if plainToken != "" {
			ok = subtle.ConstantTimeCompare([]byte(token), []byte(plainToken)) == 1
		}

		if !ok {
			writeError(w, http.StatusForbidden, "forbidden", "invalid admin token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
