package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/outreachhq/outreach-backend/internal/auth"
	"github.com/outreachhq/outreach-backend/internal/config"
	"github.com/outreachhq/outreach-backend/internal/store"
)

// ─── BEARER AUTH ──────────────────────────────────────────────────────────────

// authenticate is chi middleware that verifies the Authorization bearer
// token, resolves the caller's roles, and stores the Identity in the request
// context. A missing or invalid token gets a 401 before the handler runs.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.verifier.VerifyFor(s.env(r), bearerToken(r))
		if err != nil {
			s.logger.Debug("token rejected", "error", err, logField(r))
			respondAuthErr(w, err)
			return
		}

		id := s.resolver.Resolve(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// pinEnvironment reads the environment selector once, so the token secret
// and the database used for one request always belong together.
func (s *Server) pinEnvironment(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := config.WithEnvironment(r.Context(), s.cfg.Env())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) env(r *http.Request) config.Environment {
	if env, ok := config.EnvironmentFrom(r.Context()); ok {
		return env
	}
	return s.cfg.Env()
}

// requireRoles returns middleware that admits the request only when the
// identity in context holds one of roles.
func (s *Server) requireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := auth.IdentityFrom(r.Context())
			if err := auth.Decide(roles, id); err != nil {
				respondAuthErr(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively. Returns "" when absent.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

// corsMiddleware handles preflight OPTIONS requests and sets CORS headers.
// An allow-list containing "*" admits every origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	wildcard := slices.Contains(s.cfg.AllowedOrigins, "*")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !wildcard && !slices.Contains(s.cfg.AllowedOrigins, origin) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ─── LOGGER MIDDLEWARE ────────────────────────────────────────────────────────

// loggerMiddleware logs each request with method, path, status, and duration.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// ─── RESPONSE HELPERS ─────────────────────────────────────────────────────────

// respond writes a JSON body with the given status code.
func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondErr writes a standard JSON error envelope.
func respondErr(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}

// respondAuthErr maps auth failures to 401/403. Verification failures carry
// their kind so clients can tell an expired token from a bad one.
func respondAuthErr(w http.ResponseWriter, err error) {
	var ae *auth.AuthError
	switch {
	case errors.As(err, &ae):
		respond(w, http.StatusUnauthorized, map[string]string{
			"error": ae.Message(),
			"kind":  string(ae.Kind),
		})
	case errors.Is(err, auth.ErrForbidden):
		respondErr(w, http.StatusForbidden, "forbidden")
	default:
		respond(w, http.StatusUnauthorized, map[string]string{
			"error": auth.ErrUnauthorized.Error(),
			"kind":  string(auth.KindMissing),
		})
	}
}

// respondStoreErr maps store sentinels to status codes and falls back to 500.
func (s *Server) respondStoreErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondErr(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrAlreadyExists):
		respondErr(w, http.StatusConflict, "already exists")
	case errors.Is(err, store.ErrInvalid):
		respondErr(w, http.StatusBadRequest, "invalid value")
	case errors.Is(err, store.ErrUnavailable):
		s.logger.Error("no database for environment", "error", err, logField(r))
		respondErr(w, http.StatusServiceUnavailable, "database unavailable")
	default:
		s.respondInternalErr(w, r, err)
	}
}

// respondInternalErr logs an unexpected error and returns a 500 to the client
// without leaking internal details.
func (s *Server) respondInternalErr(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("internal error",
		"error", err,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)
	respondErr(w, http.StatusInternalServerError, "internal server error")
}

// ─── REQUEST PARSING HELPERS ─────────────────────────────────────────────────

// decode JSON-decodes r.Body into dst. Returns false and writes 400 if the
// body is missing, malformed, or too large. Callers should return immediately
// on false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB max
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// idParam parses the {id} URL parameter. Returns false and writes 400 when it
// is not a UUID.
func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// listParams reads ?limit, ?offset and ?q. Returns false and writes 400 on a
// non-numeric limit or offset. Range clamping is left to the store.
func listParams(w http.ResponseWriter, r *http.Request) (store.ListParams, bool) {
	q := r.URL.Query()
	p := store.ListParams{Search: q.Get("q")}
	for name, dst := range map[string]*int{"limit": &p.Limit, "offset": &p.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondErr(w, http.StatusBadRequest, "invalid "+name)
			return store.ListParams{}, false
		}
		*dst = n
	}
	return p, true
}

// logField returns a slog.Attr using the request ID for correlation.
func logField(r *http.Request) slog.Attr {
	return slog.String("request_id", middleware.GetReqID(r.Context()))
}
