package server

import (
	"context"

	"coursebot/app/api"
	"coursebot/app/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var config = fiber.Config{
	ErrorHandler:          api.ErrorHandler,
	DisableStartupMessage: true,
}

const imagesPrefix = "/images"

// Deps are the collaborators the HTTP surface is built on.
type Deps struct {
	Pipeline    api.Answerer
	Ingester    api.Ingester
	Subjects    api.SubjectLister
	DB          api.Pinger
	Gatherer    prometheus.Gatherer
	ImagesDir   string
	DefaultTopK int
}

type Server struct {
	listenAddr string
	app        *fiber.App
	logger     zerolog.Logger
}

func NewServer(addr string, deps Deps, logger zerolog.Logger) *Server {
	return &Server{
		listenAddr: addr,
		app:        NewApp(deps),
		logger:     logger.With().Str("component", "server").Logger(),
	}
}

// NewApp wires the routes. Split out of NewServer so handlers can be driven
// through app.Test.
func NewApp(deps Deps) *fiber.App {
	var (
		app             = fiber.New(config)
		checkHandler    = api.NewCheckHandler(deps.DB)
		requestHandler  = api.NewRequestHandler(deps.Pipeline, deps.DefaultTopK)
		materialHandler = api.NewMaterialHandler(deps.Ingester)
		subjectHandler  = api.NewSubjectHandler(deps.Subjects)
		check           = app.Group("/check")
		apiv1           = app.Group("/api/v1")
	)

	app.Use(recover.New())

	check.Get("/healthy", checkHandler.HandleHealthy)
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	apiv1.Get("/subjects", subjectHandler.HandleList)
	apiv1.Post("/ask", requestHandler.HandleAsk)
	apiv1.Post("/materials/:id/ingest", materialHandler.HandleIngest)

	if deps.ImagesDir != "" {
		app.Use(middleware.PlugStatic(imagesPrefix))
		app.Static(imagesPrefix, deps.ImagesDir)
	}
	return app
}

// Run blocks until the listener fails or Stop is called.
func (s *Server) Run() error {
	s.logger.Info().Str("addr", s.listenAddr).Msg("server started")
	if err := s.app.Listen(s.listenAddr); err != nil {
		s.logger.Error().Err(err).Msg("error to start server")
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.logger.Info().Msg("server stopped")
	return err
}
