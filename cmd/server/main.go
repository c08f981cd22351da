package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"podcastr/internal/app"
	"podcastr/internal/auth"
	"podcastr/internal/config"
	"podcastr/internal/handlers"
	"podcastr/internal/logger"
	"podcastr/internal/middleware"
	"podcastr/internal/ratelimit"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func newRouter(h *handlers.Handlers, verifier *auth.Verifier, limiter ratelimit.Limiter, opts ...middleware.RateLimiterOption) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.AuthMiddleware(verifier))
	r.Use(middleware.NewRateLimiterMiddleware(limiter, ratelimit.API, opts...).Middleware)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	h.Register(r)
	return r
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if _, err := logger.New(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("invalid log settings")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := asynq.NewClient(app.RedisOpt(cfg))
	defer client.Close()

	a, err := app.New(ctx, cfg, client)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer a.Close()

	h := handlers.New(a.Service, handlers.Options{
		BaseURL:        cfg.BaseURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
		WebhookSecret:  cfg.WebhookSecret,
		Files:          a.Files,
	})
	var rlOpts []middleware.RateLimiterOption
	if cfg.TrustProxyHeaders {
		rlOpts = append(rlOpts, middleware.TrustForwardedFor())
	}
	router := newRouter(h, auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer), a.Limiter, rlOpts...)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("commit", CommitSHA).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
