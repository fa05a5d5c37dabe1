package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/icedl/icedl/internal/adapters/badgerstore"
	"github.com/icedl/icedl/internal/adapters/httpapi"
	"github.com/icedl/icedl/internal/adapters/memorybus"
	"github.com/icedl/icedl/internal/adapters/sqlite"
	"github.com/icedl/icedl/internal/app"
	"github.com/icedl/icedl/internal/buildinfo"
	"github.com/icedl/icedl/internal/config"
	"github.com/icedl/icedl/internal/fetch"
	"github.com/icedl/icedl/internal/resolver"
)

func main() {
	def := config.Default()
	addr := flag.String("addr", def.Addr, "Adresse d'écoute (ex: 127.0.0.1:8080)")
	dbPath := flag.String("db", def.DBPath, "Chemin SQLite (ex: icedl.db)")
	storePath := flag.String("store", def.StorePath, "Dossier Badger de la session (ex: icedl-session)")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "icedl-server").Logger()
	log.Logger = logger

	logger.Info().Interface("build", buildinfo.Current()).Str("db", *dbPath).Msg("starting")

	ctx := context.Background()
	db, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open db")
	}
	defer func() { _ = db.Close() }()

	store, err := badgerstore.Open(*storePath, def.SessionTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session store")
	}
	defer func() { _ = store.Close() }()

	bus := memorybus.New()
	defer bus.Close()

	settingsRepo := sqlite.NewSettingsRepository(db.SQL)
	settingsSvc := app.NewSettingsService(settingsRepo, logger)
	downloadsRepo := sqlite.NewDownloadsRepository(db.SQL)

	client := fetch.NewClient(logger, def.UserAgent, def.Referrer, def.FetchTimeout)
	waiter := resolver.NewWaiter(logger, time.Second)
	registry := resolver.NewRegistry(logger, client, waiter)

	captchaSvc := app.NewCaptchaService(client, store, logger)
	mirrorsSvc := app.NewMirrorService(client, store, captchaSvc, settingsSvc, def.SiteURL, logger)
	sourcesSvc := app.NewSourceService(client, store, settingsSvc, def.AjaxURL(), logger)
	stackSvc := app.NewStackService(store, registry, settingsSvc, logger)
	downloads := app.NewDownloadManager(downloadsRepo, store, bus, settingsSvc, client.UserAgent(), logger)
	defer downloads.Close()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := httpapi.NewServer(logger, mirrorsSvc, sourcesSvc, captchaSvc, stackSvc, downloads, settingsSvc, store, bus)
	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", *addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server crashed")
			stop()
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	logger.Info().Msg("bye")
}
