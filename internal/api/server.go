package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snarg/rtc-engine/internal/config"
	"github.com/snarg/rtc-engine/internal/metrics"
	"github.com/snarg/rtc-engine/internal/reconcile"
	"github.com/snarg/rtc-engine/internal/store"
)

// Server wraps the chi router and the standard-library HTTP server
// (spec.md §6, modeled on the teacher's api.Server).
type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// ServerOptions bundles Server's dependencies.
type ServerOptions struct {
	Config *config.Config
	Engine *reconcile.Engine
	Store  store.Store
	Log    zerolog.Logger
}

// NewServer builds the chi router: ingest webhook, read-API, and health
// endpoints, wrapped in the shared middleware stack (spec.md §5, §6, §7).
func NewServer(opts ServerOptions) *Server {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(CORSFromOrigins(opts.Config.CORSOrigins))
	r.Use(RateLimiter(opts.Config.RateLimitRPS, opts.Config.RateLimitBurst))
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	if opts.Config.MetricsEnabled {
		r.Use(metrics.InstrumentHandler)
	}

	r.Get("/healthz", healthHandler)

	if opts.Config.MetricsEnabled {
		collector := metrics.NewCollector(opts.Engine)
		prometheus.MustRegister(collector)
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	}

	read := &readDeps{store: opts.Store, maxSessionsPerResponse: opts.Config.MaxSessionsPerResponse}
	issuer := newJWTIssuer(opts.Config.JWTSigningKey, opts.Config.ReadTokenTTL)

	r.Group(func(r chi.Router) {
		r.Use(MaxBodyBytes(64 << 10)) // notifications are small JSON bodies
		if opts.Config.AuthEnabled {
			r.Use(ingestAuth(opts.Config.IngestToken))
		}
		r.Post("/apps/{appID}/notifications", handleIngest(opts.Engine))
	})

	r.Group(func(r chi.Router) {
		if opts.Config.AuthEnabled {
			r.Use(ingestAuth(opts.Config.IngestToken))
		}
		r.Post("/apps/{appID}/auth/tokens", issueReadTokenHandler(issuer))
	})

	r.Group(func(r chi.Router) {
		if opts.Config.AuthEnabled {
			r.Use(readAuth(issuer))
		}
		r.Get("/apps/{appID}/epochs", read.listEpochs)
		r.Get("/apps/{appID}/channels/{channel}/epochs/{epochTs}", read.epochDetail)
		r.Get("/apps/{appID}/channels/{channel}/quality", read.channelQuality)
		r.Get("/apps/{appID}/channels/{channel}/minutes", read.channelMinutes)
		r.Get("/apps/{appID}/users/{uid}/sessions", read.userDetail)
	})

	srv := &http.Server{
		Addr:         opts.Config.HTTPAddr,
		Handler:      r,
		ReadTimeout:  opts.Config.ReadTimeout,
		WriteTimeout: opts.Config.WriteTimeout,
		IdleTimeout:  opts.Config.IdleTimeout,
	}

	return &Server{http: srv, log: opts.Log}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
