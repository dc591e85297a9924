package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/sendbtc/internal/config"
	"github.com/congo-pay/sendbtc/internal/routes"
)

// Server wraps the Fiber application, its background workers and shared
// dependencies.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	workers *routes.Workers
	logger  *slog.Logger

	workersCtx  context.Context
	stopWorkers context.CancelFunc
	workersDone chan struct{}
	startOnce   sync.Once
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler(logger),
	})

	workers, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		app:         app,
		cfg:         cfg,
		workers:     workers,
		logger:      logger,
		workersCtx:  ctx,
		stopWorkers: cancel,
		workersDone: make(chan struct{}),
	}, nil
}

// Listen starts the background workers and then the HTTP server.
func (s *Server) Listen() error {
	s.startOnce.Do(func() {
		go func() {
			defer close(s.workersDone)
			if err := s.workers.Run(s.workersCtx); err != nil {
				s.logger.Error("background workers stopped", slog.Any("error", err))
			}
		}()
	})
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server and waits for the workers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.stopWorkers()
	s.startOnce.Do(func() { close(s.workersDone) })
	select {
	case <-s.workersDone:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}

// errorHandler renders every error as {"error": message}.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
		}
		return c.Status(code).JSON(fiber.Map{"error": message})
	}
}
