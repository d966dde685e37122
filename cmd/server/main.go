// Command server runs the portfolio chat backend: an HTTP API for the site's
// chat widget (messages, attachments, live feed), the owner's conversation
// dashboard, and the contact form.
//
// Configuration comes from the environment (a local .env file is honored in
// development); see internal/config for the full list of variables.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/skumar-dev/portfolio-chat-backend/internal/config"
	httpapi "github.com/skumar-dev/portfolio-chat-backend/internal/http"
	"github.com/skumar-dev/portfolio-chat-backend/internal/notify"
	"github.com/skumar-dev/portfolio-chat-backend/internal/observability"
	"github.com/skumar-dev/portfolio-chat-backend/internal/repo"
	"github.com/skumar-dev/portfolio-chat-backend/internal/storage"
	"github.com/skumar-dev/portfolio-chat-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Best effort: absent .env is the normal case in production.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx := context.Background()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	store, err := openBlobStore(ctx, cfg.Blob)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Blob.Backend).Msg("blob store setup failed")
	}

	var mailer *notify.EmailNotifier
	if cfg.Mail.Host != "" {
		mailer = &notify.EmailNotifier{
			Mailer: &notify.SMTPMailer{
				Addr:     cfg.Mail.Host,
				Username: cfg.Mail.Username,
				Password: cfg.Mail.Password,
				From:     cfg.Mail.From,
			},
			Owner:    cfg.Mail.Owner,
			SiteName: cfg.Mail.SiteName,
		}
	} else {
		log.Warn().Msg("SMTP not configured; owner notifications and contact form disabled")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, store, mailer, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	log.Info().Msg("bye")
}

// openBlobStore selects the attachment backend from configuration: local
// filesystem for single-node deployments, a GCS bucket (optionally fronted
// by a CDN) otherwise. Credentials for GCS come from the ambient service
// account (GOOGLE_APPLICATION_CREDENTIALS or workload identity).
func openBlobStore(ctx context.Context, cfg config.BlobConfig) (storage.BlobStore, error) {
	switch cfg.Backend {
	case "gcs":
		return storage.NewGCSStore(ctx, cfg.Bucket, cfg.CDNDomain)
	default:
		return storage.NewFSStore(cfg.Dir, cfg.BaseURL)
	}
}
