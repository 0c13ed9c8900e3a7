package middleware

import (
	"net/http"

	"github.com/Togather-Foundation/eventhost/internal/api/problem"
	"github.com/gorilla/csrf"
)

// CSRFHeader carries the token on unsafe requests made with the session cookie.
const CSRFHeader = "X-CSRF-Token"

// CSRFProtection guards cookie sessions against cross-site forgery using the
// double-submit pattern. Clients fetch a token from GET /api/v1/auth/csrf
// and echo it in CSRFHeader. Requests authenticated with a bearer token are
// marked exempt by Authenticate, which must run first.
//
// When secure is false (plain HTTP development) requests are flagged as
// plaintext so the library skips its HTTPS referer checks.
func CSRFProtection(authKey []byte, secure bool, env string) func(http.Handler) http.Handler {
	protect := csrf.Protect(authKey,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.RequestHeader(CSRFHeader),
		csrf.ErrorHandler(csrfErrorHandler(env)),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secure && r.TLS == nil {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func csrfErrorHandler(env string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, r, http.StatusForbidden, problem.TypeCSRF, "CSRF token validation failed", csrf.FailureReason(r), env)
	})
}

// CSRFToken returns the token for the current request, or "" when
// protection is disabled.
func CSRFToken(r *http.Request) string {
	return csrf.Token(r)
}
