// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openpromo/hermes/app/dto"
	"github.com/openpromo/hermes/app/handlers"
	"github.com/openpromo/hermes/app/middleware"
	"github.com/openpromo/hermes/config"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown() error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app        *fiber.App
	cfg        *config.ProductionConfig
	runHandler handlers.RunHandlerInterface
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg *config.ProductionConfig, runHandler handlers.RunHandlerInterface) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Hermes Publisher API",
		ServerHeader: "Hermes",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:        app,
		cfg:        cfg,
		runHandler: runHandler,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.app.Use(recover.New())
	r.app.Use(requestid.New())
	r.app.Use(compress.New())
	if r.cfg.Server.EnableMetrics {
		r.app.Use(middleware.Metrics())
	}

	// Liveness probe for the scheduler deployment
	r.app.Get("/healthz", r.healthCheck)

	if r.cfg.Server.EnableMetrics {
		r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1", middleware.APIKey(r.cfg.Security))
	api.Post("/runs", r.runHandler.TriggerRun)
	api.Get("/runs", r.runHandler.ListRuns)
	api.Get("/runs/:uuid", r.runHandler.GetRun)
	api.Get("/runs/:uuid/report.xlsx", r.runHandler.DownloadRunReport)

	log.Println("Routes configured successfully")
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// Shutdown gracefully stops the HTTP server
func (r *FiberRouter) Shutdown() error {
	return r.app.ShutdownWithTimeout(30 * time.Second)
}

// GetApp returns the underlying Fiber app
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"version":     r.cfg.Deployment.Version,
		"environment": r.cfg.Deployment.Environment,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// errorHandler is the global Fiber error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: "HTTP_ERROR",
		},
	})
}
