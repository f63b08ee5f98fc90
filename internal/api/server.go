// Package api implements the HTTP layer for the outreach backend.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/outreachhq/outreach-backend/internal/auth"
	"github.com/outreachhq/outreach-backend/internal/config"
	"github.com/outreachhq/outreach-backend/internal/email"
	"github.com/outreachhq/outreach-backend/internal/store"
)

// Role requirements per resource group. ADMIN passes every check, so it is
// listed only where it is the sole role allowed.
var (
	rolesOutreach    = []string{"ORGANIZER"}
	rolesAdmin       = []string{auth.RoleAdmin}
	rolesSponsorship = []string{"SPONSORSHIP"}
)

// Config holds values read from the environment at startup.
type Config struct {
	// Env reports the current environment. It is read once per request and
	// pinned on the request context.
	Env func() config.Environment

	AllowedOrigins []string
	RequestTimeout time.Duration

	// Public form rate limit, per client IP. Forwarding headers are only
	// honoured for peers inside TrustedProxies.
	RateLimitRPS   float64
	RateLimitBurst int
	TrustedProxies []netip.Prefix
}

// TokenVerifier checks a bearer token against the secret of env.
// *auth.Verifier implements it.
type TokenVerifier interface {
	VerifyFor(env config.Environment, token string) (*auth.Claims, error)
}

// IdentityResolver attaches roles to verified claims. *auth.Resolver
// implements it.
type IdentityResolver interface {
	Resolve(ctx context.Context, c *auth.Claims) *auth.Identity
}

// Mailer sends outreach mail. *email.Dispatcher implements it.
type Mailer interface {
	Send(ctx context.Context, m email.Message) (email.SentMessage, error)
	SendBatch(ctx context.Context, msgs []email.Message) (email.BatchResult, error)
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// q handles every read and write. Injected directly, no repo wrapper.
	q store.Querier

	verifier TokenVerifier
	resolver IdentityResolver

	// mailer sends single messages and batches.
	mailer Mailer

	// limiter throttles the unauthenticated submission forms.
	limiter *ipRateLimiter

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.Server.
func NewServer(
	q store.Querier,
	verifier TokenVerifier,
	resolver IdentityResolver,
	mailer Mailer,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	if cfg.Env == nil {
		cfg.Env = func() config.Environment { return config.Production }
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	s := &Server{
		q:        q,
		verifier: verifier,
		resolver: resolver,
		mailer:   mailer,
		limiter:  newIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustedProxies),
		cfg:      cfg,
		logger:   logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(s.pinEnvironment)
	r.Use(capturePeer)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/readyz", s.handleReady)

	// ── API v1 ────────────────────────────────────────────────────────────────
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/me", s.handleMe)
			r.Post("/decode", s.handleDecodeToken)
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Use(s.authenticate, s.requireRoles(rolesOutreach...))
			r.Get("/", s.handleListContacts)
			r.Post("/", s.handleCreateContact)
			r.Get("/{id}", s.handleGetContact)
			r.Patch("/{id}", s.handleUpdateContact)
			r.Delete("/{id}", s.handleDeleteContact)
		})

		// Team roster: public read, admin writes.
		r.Route("/team", func(r chi.Router) {
			r.Get("/", s.handleListTeam)
			r.Group(func(r chi.Router) {
				r.Use(s.authenticate, s.requireRoles(rolesAdmin...))
				r.Post("/", s.handleCreateTeamMember)
				r.Patch("/{id}", s.handleUpdateTeamMember)
				r.Delete("/{id}", s.handleDeleteTeamMember)
			})
		})

		// Signup form: public submit, rate-limited.
		r.Route("/interested-users", func(r chi.Router) {
			r.With(s.limiter.middleware).Post("/", s.handleCreateInterestedUser)
			r.Group(func(r chi.Router) {
				r.Use(s.authenticate, s.requireRoles(rolesOutreach...))
				r.Get("/", s.handleListInterestedUsers)
				r.Delete("/{id}", s.handleDeleteInterestedUser)
			})
		})

		// Sponsor inquiries: public submit, rate-limited.
		r.Route("/sponsors/inquiries", func(r chi.Router) {
			r.With(s.limiter.middleware).Post("/", s.handleCreateSponsorInquiry)
			r.Group(func(r chi.Router) {
				r.Use(s.authenticate, s.requireRoles(rolesSponsorship...))
				r.Get("/", s.handleListSponsorInquiries)
				r.Patch("/{id}", s.handleUpdateSponsorInquiry)
			})
		})

		r.Route("/emails", func(r chi.Router) {
			r.Use(s.authenticate, s.requireRoles(rolesOutreach...))
			r.Post("/send", s.handleSendEmail)
			r.Post("/send-batch", s.handleSendBatch)
			r.Get("/sent", s.handleListSentEmails)
		})
	})

	return r
}

// handleReady reports whether the database is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.q.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err, logField(r))
		respondErr(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
