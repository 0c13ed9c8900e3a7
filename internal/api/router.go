package api

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/Togather-Foundation/eventhost/internal/api/handlers"
	"github.com/Togather-Foundation/eventhost/internal/api/middleware"
	"github.com/Togather-Foundation/eventhost/internal/api/problem"
	"github.com/Togather-Foundation/eventhost/internal/audit"
	"github.com/Togather-Foundation/eventhost/internal/auth"
	"github.com/Togather-Foundation/eventhost/internal/config"
	"github.com/Togather-Foundation/eventhost/internal/domain/events"
	"github.com/Togather-Foundation/eventhost/internal/domain/registrations"
	"github.com/Togather-Foundation/eventhost/internal/domain/users"
	"github.com/Togather-Foundation/eventhost/internal/metrics"
	"github.com/Togather-Foundation/eventhost/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Store      storage.Repository
	Migrations handlers.MigrationVersionFunc
	Version    string
	GitCommit  string
	BuildDate  string
	// Notifier receives registration changes; nil disables notices.
	Notifier handlers.RegistrationNotifier
	// BcryptCost overrides the password hashing cost when non-zero.
	BcryptCost int
}

// Router is the fully wired HTTP handler. Close releases background work
// owned by the middleware.
type Router struct {
	http.Handler
	limiter *middleware.RateLimiter
}

func (r *Router) Close() {
	r.limiter.Stop()
}

func NewRouter(cfg config.Config, logger zerolog.Logger, deps Dependencies) *Router {
	env := cfg.Environment
	auditLogger := audit.NewLoggerWithZerolog(logger)

	var userOpts []users.Option
	if deps.BcryptCost > 0 {
		userOpts = append(userOpts, users.WithBcryptCost(deps.BcryptCost))
	}
	usersService := users.NewService(deps.Store.Users(), logger, userOpts...)
	eventsService := events.NewService(deps.Store.Events(), logger)
	registrationsService := registrations.NewService(deps.Store.Registrations(), logger, registrations.WithAuditLogger(auditLogger))

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, "eventhost")
	cookie := middleware.SessionCookie{Name: cfg.Auth.CookieName, Secure: cfg.Auth.SecureCookie}

	authHandler := handlers.NewAuthHandler(usersService, tokens, cookie, auditLogger, cfg.RateLimit.TrustedProxyCIDRs, env)
	eventsHandler := handlers.NewEventsHandler(eventsService, registrationsService, env, cfg.Server.BaseURL)
	registrationsHandler := handlers.NewRegistrationsHandler(registrationsService, eventsService, deps.Notifier, env, cfg.Server.BaseURL)
	meHandler := handlers.NewMeHandler(eventsService, registrationsService, env)
	health := handlers.NewHealthChecker(deps.Store, deps.Migrations, deps.Version, deps.GitCommit, deps.BuildDate)

	limiter := middleware.NewRateLimiter(cfg.RateLimit, env)
	requireUser := middleware.RequireUser(env)
	authed := func(h http.HandlerFunc) http.Handler {
		return requireUser(h)
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", health.Healthz())
	mux.Handle("/readyz", health.Readyz())
	mux.Handle("/health", health.Health())
	mux.Handle("/version", health.Version())
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.Handle("/api/v1/auth/signup", methodMux(env, map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(authHandler.Signup),
	}))
	mux.Handle("/api/v1/auth/login", methodMux(env, map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(authHandler.Login),
	}))
	mux.Handle("/api/v1/auth/logout", methodMux(env, map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(authHandler.Logout),
	}))
	mux.Handle("/api/v1/auth/session", methodMux(env, map[string]http.Handler{
		http.MethodGet: authed(authHandler.Session),
	}))
	mux.Handle("/api/v1/auth/csrf", methodMux(env, map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(authHandler.CSRFToken),
	}))

	mux.Handle("/api/v1/events", methodMux(env, map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(eventsHandler.List),
		http.MethodPost: authed(eventsHandler.Create),
	}))
	mux.Handle("/api/v1/events/{id}", methodMux(env, map[string]http.Handler{
		http.MethodGet:    http.HandlerFunc(eventsHandler.Get),
		http.MethodPut:    authed(eventsHandler.Update),
		http.MethodDelete: authed(eventsHandler.Delete),
	}))
	mux.Handle("/api/v1/events/{id}/registration", methodMux(env, map[string]http.Handler{
		http.MethodPost:   authed(registrationsHandler.Register),
		http.MethodDelete: authed(registrationsHandler.Unregister),
	}))

	mux.Handle("/api/v1/me/events", methodMux(env, map[string]http.Handler{
		http.MethodGet: authed(meHandler.CreatedEvents),
	}))
	mux.Handle("/api/v1/me/registrations", methodMux(env, map[string]http.Handler{
		http.MethodGet: authed(meHandler.RegisteredEvents),
	}))
	mux.Handle("/api/v1/me/dashboard", methodMux(env, map[string]http.Handler{
		http.MethodGet: authed(meHandler.Dashboard),
	}))

	var handler http.Handler = mux
	if cfg.CSRF.AuthKey != "" {
		handler = middleware.CSRFProtection([]byte(cfg.CSRF.AuthKey), cfg.Auth.SecureCookie, env)(handler)
	}
	handler = middleware.Authenticate(tokens, cfg.Auth.CookieName, env)(handler)
	handler = middleware.RequestSize(middleware.DefaultMaxBodySize)(handler)
	handler = limiter.Middleware(handler)
	handler = middleware.WithRateLimitTierForPaths(middleware.TierLogin, "/api/v1/auth/signup", "/api/v1/auth/login")(handler)
	handler = middleware.SecurityHeaders(env == "production")(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(logger)(handler)

	return &Router{Handler: handler, limiter: limiter}
}

func methodMux(env string, handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		problem.Write(w, r, http.StatusMethodNotAllowed, "about:blank", "Method not allowed", errors.New("method not allowed"), env)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
