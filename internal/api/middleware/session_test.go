package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventhost/internal/auth"
	"github.com/stretchr/testify/require"
)

const testCookie = "eventhost_session"

func sessionEcho(t *testing.T) (http.Handler, *Session) {
	t.Helper()
	var seen Session
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}), &seen
}

func TestAuthenticate_Cookie(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Hour, "eventhost")
	token, err := manager.Generate("user-1", "Ada", "ada@example.com")
	require.NoError(t, err)

	next, seen := sessionEcho(t)
	handler := Authenticate(manager, testCookie, "test")(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/events", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, Session{UserID: "user-1", Name: "Ada", Email: "ada@example.com"}, *seen)
}

func TestAuthenticate_Bearer(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Hour, "eventhost")
	token, err := manager.Generate("user-2", "Grace", "grace@example.com")
	require.NoError(t, err)

	next, seen := sessionEcho(t)
	handler := Authenticate(manager, testCookie, "test")(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "user-2", seen.UserID)
	require.True(t, seen.Bearer)
}

func TestAuthenticate_InvalidBearerRejected(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Hour, "eventhost")
	next, _ := sessionEcho(t)
	handler := Authenticate(manager, testCookie, "test")(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Equal(t, "Bearer", res.Header().Get("WWW-Authenticate"))
}

func TestAuthenticate_StaleCookieIsAnonymous(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Hour, "eventhost")
	expired := auth.NewJWTManager("secret", -time.Minute, "eventhost")
	token, err := expired.Generate("user-1", "Ada", "ada@example.com")
	require.NoError(t, err)

	next, seen := sessionEcho(t)
	handler := Authenticate(manager, testCookie, "test")(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Empty(t, seen.UserID)
}

func TestRequireUser(t *testing.T) {
	handler := RequireUser("test")(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/v1/events", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
	req = req.WithContext(ContextWithSession(req.Context(), Session{UserID: "user-1"}))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestSessionCookie(t *testing.T) {
	cookie := SessionCookie{Name: testCookie, Secure: true}

	res := httptest.NewRecorder()
	cookie.Set(res, "token-value", time.Hour)
	set := res.Result().Cookies()
	require.Len(t, set, 1)
	require.Equal(t, "token-value", set[0].Value)
	require.True(t, set[0].HttpOnly)
	require.True(t, set[0].Secure)
	require.Equal(t, 3600, set[0].MaxAge)

	res = httptest.NewRecorder()
	cookie.Clear(res)
	cleared := res.Result().Cookies()
	require.Len(t, cleared, 1)
	require.Empty(t, cleared[0].Value)
	require.Equal(t, -1, cleared[0].MaxAge)
}
