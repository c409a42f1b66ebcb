package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/pyrelog/pyre/internal/app/repository"
	"github.com/pyrelog/pyre/internal/app/service"
	inthttp "github.com/pyrelog/pyre/internal/http/handler"
	"github.com/pyrelog/pyre/internal/http/middleware"
	httpUtil "github.com/pyrelog/pyre/internal/http/util"
	"github.com/pyrelog/pyre/internal/ratelimit"
	"github.com/pyrelog/pyre/internal/screen"
	"go.uber.org/zap"
)

// Dependencies bundles everything the HTTP server needs. All shared state
// lives behind the injected components; nothing here is ambient module
// state.
type Dependencies struct {
	Logger       *zap.Logger
	Worries      service.WorryService
	Events       repository.LifecycleEventRepository
	Limiter      ratelimit.Limiter
	LimitCap     int
	Screen       *screen.Screen
	Helplines    []screen.Helpline
	Certificates *httpUtil.CertificateSigner
	CronSecret   string
	BaseURL      string
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with the record routes wired.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		// Body far above the 500-char content cap is noise or abuse.
		BodyLimit: 64 * 1024,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the underlying Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) registerRoutes() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.CORS())

	var rl fiber.Handler
	if s.deps.Limiter != nil {
		rl = middleware.RateLimit(s.deps.Limiter, s.deps.LimitCap, s.deps.Logger)
	}

	worryHandler := inthttp.NewWorryHandler(inthttp.WorryDeps{
		Logger:       s.deps.Logger,
		Worries:      s.deps.Worries,
		Screen:       s.deps.Screen,
		Helplines:    s.deps.Helplines,
		Certificates: s.deps.Certificates,
		RateLimit:    rl,
		BaseURL:      s.deps.BaseURL,
	})
	worryHandler.Register(s.app)

	cronHandler := inthttp.NewCronHandler(inthttp.CronDeps{
		Logger:  s.deps.Logger,
		Worries: s.deps.Worries,
		Events:  s.deps.Events,
		Secret:  s.deps.CronSecret,
	})
	cronHandler.Register(s.app)
}
