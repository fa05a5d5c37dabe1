package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/icedl/icedl/internal/app"
	"github.com/icedl/icedl/internal/ports"
)

type Server struct {
	logger    zerolog.Logger
	mirrors   *app.MirrorService
	sources   *app.SourceService
	captcha   *app.CaptchaService
	stack     *app.StackService
	downloads *app.DownloadManager
	settings  *app.SettingsService
	store     ports.SessionStore
	bus       ports.EventBus
}

func NewServer(logger zerolog.Logger, mirrors *app.MirrorService, sources *app.SourceService, captcha *app.CaptchaService, stack *app.StackService, downloads *app.DownloadManager, settings *app.SettingsService, store ports.SessionStore, bus ports.EventBus) *Server {
	return &Server{
		logger:    logger,
		mirrors:   mirrors,
		sources:   sources,
		captcha:   captcha,
		stack:     stack,
		downloads: downloads,
		settings:  settings,
		store:     store,
		bus:       bus,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("request_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote_ip"))
	r.Use(hlog.UserAgentHandler("user_agent"))
	r.Use(hlog.AccessHandler(accessLogFn))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Get("/events", s.handleEvents)

		if s.mirrors != nil {
			NewMirrorsHandler(s.mirrors, s.sources, s.captcha, s.store).Routes(r)
		}
		if s.stack != nil {
			NewResolveHandler(s.stack).Routes(r)
		}
		if s.downloads != nil {
			NewDownloadsHandler(s.downloads).Routes(r)
		}
		if s.settings != nil {
			NewSettingsHandler(s.settings).Routes(r)
		}
	})

	return r
}
