package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/onlymatt43/ONLY-ACCESS/internal/infra/logging"
	"github.com/onlymatt43/ONLY-ACCESS/internal/usecase"
)

type Server struct {
	issueUC   usecase.IssueUseCase
	redeemUC  usecase.RedeemUseCase
	sessionUC usecase.SessionUseCase
	siteUC    usecase.SiteUseCase
	statsUC   usecase.StatsUseCase

	auth         *AuthManager
	adminUser    string
	adminHash    string
	secureCookie bool
	log          *zerolog.Logger
}

func NewServer(
	issueUC usecase.IssueUseCase,
	redeemUC usecase.RedeemUseCase,
	sessionUC usecase.SessionUseCase,
	siteUC usecase.SiteUseCase,
	statsUC usecase.StatsUseCase,
	auth *AuthManager,
	adminUser, adminHash string,
	secureCookie bool,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		issueUC:      issueUC,
		redeemUC:     redeemUC,
		sessionUC:    sessionUC,
		siteUC:       siteUC,
		statsUC:      statsUC,
		auth:         auth,
		adminUser:    adminUser,
		adminHash:    adminHash,
		secureCookie: secureCookie,
		log:          logger,
	}
}

// Routes builds the full router: the public unlock surface, the
// admin API behind the session middleware, and the operational endpoints.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestContext)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/redeem", s.handleRedeem)
		r.Get("/session", s.handleSession)
		r.Post("/session/reset", s.handleSessionReset)

		r.Post("/admin/login", s.handleAdminLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/admin/logout", s.handleAdminLogout)
			r.Post("/admin/codes", s.handleIssueCodes)
			r.Get("/admin/stats", s.handleStats)
			r.Get("/admin/logs", s.handleLogs)
			r.Get("/admin/export", s.handleExport)
			r.Post("/admin/sites", s.handleSiteCreate)
			r.Get("/admin/sites", s.handleSiteList)
			r.Delete("/admin/sites/{title}", s.handleSiteDelete)
			r.Get("/admin/families/{id}/qr", s.handleFamilyQR)
		})
	})
	return r
}

// requestContext seeds the context with the fields request-scoped log
// lines carry.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ctx = logging.WithClientIP(ctx, clientAddr(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminOnly rejects requests without a valid admin session cookie or
// bearer token.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
