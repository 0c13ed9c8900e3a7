package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Togather-Foundation/eventhost/internal/api/problem"
	"github.com/Togather-Foundation/eventhost/internal/auth"
	"github.com/gorilla/csrf"
)

type contextKey string

const sessionKey contextKey = "session"

// Session is the signed-in user attached to a request.
type Session struct {
	UserID string
	Name   string
	Email  string
	// Bearer is set when the token came from the Authorization header
	// rather than the session cookie.
	Bearer bool
}

// SessionCookie writes and clears the cookie carrying the session token.
type SessionCookie struct {
	Name   string
	Secure bool
}

func (c SessionCookie) Set(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Authenticate resolves the session from a bearer token or the session
// cookie. Requests without a valid token continue anonymously; a present but
// invalid bearer token is rejected. Bearer requests skip CSRF checks since
// browsers never attach that header on their own.
func Authenticate(manager *auth.JWTManager, cookieName, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				next.ServeHTTP(w, r)
				return
			}

			if header := r.Header.Get("Authorization"); header != "" {
				token, err := auth.TokenFromHeader(header)
				if err == nil {
					var claims *auth.Claims
					claims, err = manager.Validate(token)
					if err == nil {
						r = csrf.UnsafeSkipCheck(r)
						next.ServeHTTP(w, withClaims(r, claims, true))
						return
					}
				}
				w.Header().Set("WWW-Authenticate", "Bearer")
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, env)
				return
			}

			if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
				claims, err := manager.Validate(cookie.Value)
				if err == nil {
					next.ServeHTTP(w, withClaims(r, claims, false))
					return
				}
				LoggerFromContext(r.Context()).Debug().Err(err).Msg("ignoring invalid session cookie")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := SessionFromContext(r.Context()); !ok {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", errors.New("sign in required"), env)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionKey).(Session)
	return session, ok && session.UserID != ""
}

// ContextWithSession attaches session to ctx.
func ContextWithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

func withClaims(r *http.Request, claims *auth.Claims, bearer bool) *http.Request {
	session := Session{
		UserID: claims.Subject,
		Name:   claims.Name,
		Email:  claims.Email,
		Bearer: bearer,
	}
	ctx := ContextWithSession(r.Context(), session)
	logger := LoggerFromContext(ctx).With().Str("user_id", session.UserID).Logger()
	return r.WithContext(logger.WithContext(ctx))
}
