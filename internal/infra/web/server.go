package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"clipforge/internal/infra/logging"
	"clipforge/internal/infra/redis"
	"clipforge/internal/usecase"
)

type ctxKey string

const ctxOwnerID ctxKey = "owner_id"

// Per-owner submission rate: fixed window.
const (
	submitRateLimit  = 10
	submitRateWindow = time.Minute
)

type Server struct {
	userUC  usecase.UserUseCase
	jobUC   usecase.JobUseCase
	auth    *AuthManager
	limiter *redis.RateLimiter
	log     *zerolog.Logger
}

func NewServer(userUC usecase.UserUseCase, jobUC usecase.JobUseCase, auth *AuthManager, limiter *redis.RateLimiter, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		userUC:  userUC,
		jobUC:   jobUC,
		auth:    auth,
		limiter: limiter,
		log:     &l,
	}
}

// Router wires all HTTP entry points. Everything under /api/v1 except the
// auth endpoints requires a bearer token.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.traceMiddleware, s.requestLogMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/me", s.handleMe)
			r.Post("/jobs/preview", s.handlePreview)
			r.With(s.submitRateMiddleware).Post("/jobs", s.handleSubmit)
			r.Get("/jobs", s.handleListJobs)
			r.Get("/jobs/{id}", s.handleGetJob)
		})
	})
	return r
}

func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		logging.With(r.Context(), s.log).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := s.auth.FromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxOwnerID, ownerID)
		ctx = logging.WithOwnerID(ctx, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) submitRateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := ownerFromContext(r.Context())
		ok, err := s.limiter.Allow(r.Context(), redis.SubmitRateKey(ownerID), submitRateLimit, submitRateWindow)
		if err != nil {
			// Rate limiting is advisory; a broken limiter must not take
			// submissions down with it.
			s.log.Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			http.Error(w, "Too many submissions", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ownerFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxOwnerID); v != nil {
		return v.(string)
	}
	return ""
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
