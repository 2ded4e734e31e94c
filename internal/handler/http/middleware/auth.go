package middleware

import (
	"errors"
	"net/http"

	"github.com/fleetdesk/payroll-backend-go/internal/handler/http/response"
	"github.com/go-chi/jwtauth/v5"
)

// OptionalAuth lets anonymous requests through and rejects requests whose
// bearer token failed verification or is not an access token. It must run
// after jwtauth.Verifier.
func OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())

		if errors.Is(err, jwtauth.ErrNoTokenFound) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			response.Unauthorized(w, err.Error())
			return
		}
		if token == nil {
			next.ServeHTTP(w, r)
			return
		}

		tokenType, ok := claims["type"].(string)
		if !ok || tokenType != "access" {
			response.Unauthorized(w, "Token invalid")
			return
		}

		next.ServeHTTP(w, r)
	})
}
