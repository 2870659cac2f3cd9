// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mia-platform/malbacklog/internal/info"
	"github.com/mia-platform/malbacklog/internal/logger"
	"github.com/mia-platform/malbacklog/internal/pipeline"
)

const (
	loggerName = "malbacklog:server"

	healthzPath = "/-/healthz"
	readyPath   = "/-/ready"
	statusPath  = "/-/status"
)

var (
	ErrServerListen   = errors.New("server listen error")
	ErrServerShutdown = errors.New("server shutdown error")
)

// Server exposes the health of the process and the progress of the current run.
type Server struct {
	config Config

	app *fiber.App
}

type healthResponse struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

type statusResponse struct {
	Name      string             `json:"name"`
	Version   string             `json:"version"`
	Summaries []pipeline.Summary `json:"summaries"`
}

func NewServer(ctx context.Context, cfg *Config, status *Status) *Server {
	app := fiber.New(fiber.Config{
		AppName:               info.AppName,
		DisableStartupMessage: cfg.DisableStartupMessage,
	})
	log := logger.FromContext(ctx)
	app.Use(logger.RequestMiddlewareLogger(log, []string{healthzPath, readyPath}))

	statusRoutes(app, status)

	return &Server{
		app:    app,
		config: *cfg,
	}
}

func statusRoutes(app *fiber.App, status *Status) {
	app.Get(healthzPath, func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(healthResponse{
			Name:    info.AppName,
			Status:  "OK",
			Version: info.Version,
		})
	})

	app.Get(readyPath, func(c *fiber.Ctx) error {
		if !status.Ready() {
			return c.Status(http.StatusServiceUnavailable).JSON(healthResponse{
				Name:    info.AppName,
				Status:  "KO",
				Version: info.Version,
			})
		}
		return c.Status(http.StatusOK).JSON(healthResponse{
			Name:    info.AppName,
			Status:  "OK",
			Version: info.Version,
		})
	})

	app.Get(statusPath, func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(statusResponse{
			Name:      info.AppName,
			Version:   info.Version,
			Summaries: status.Summaries(),
		})
	})
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() error {
	if err := s.app.Listen(s.config.Address()); err != nil {
		return fmt.Errorf("%w: %w", ErrServerListen, err)
	}
	return nil
}

func (s *Server) Stop() error {
	if err := s.app.Shutdown(); err != nil {
		return fmt.Errorf("%w: %w", ErrServerShutdown, err)
	}
	return nil
}

// StartAsync starts listening in a separate goroutine, logging a listen failure.
func (s *Server) StartAsync(ctx context.Context) {
	log := logger.FromContext(ctx).WithName(loggerName)
	go func() {
		log.Debug("status server listening", "address", s.config.Address())
		if err := s.Start(); err != nil {
			log.Error(err.Error())
		}
	}()
}
