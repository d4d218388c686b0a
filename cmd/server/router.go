package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/docsmith/docex-api/internal/api"
	apiMiddleware "github.com/docsmith/docex-api/internal/api/middleware"
	"github.com/docsmith/docex-api/internal/upload"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)
	r.Use(apiMiddleware.RateLimit(app.config.Server.RateLimitPerMinute, time.Minute))

	taskHandler := api.NewTaskHandler(
		app.taskStore,
		app.runner,
		app.uploads,
		upload.Policy{MaxBytes: app.config.Upload.MaxBytes},
		app.logger,
	)
	healthHandler := api.NewHealthHandler(app.taskStore, app.runner, app.logger)

	r.Post("/uploadfile/", taskHandler.UploadFile)
	r.Get("/download_markdown/{id}", taskHandler.DownloadMarkdown)
	r.Post("/tasks/{id}/stop", taskHandler.StopTask)

	r.Route("/api", func(r chi.Router) {
		r.Get("/tasks", taskHandler.ListTasks)
		r.Get("/tasks/{id}/result", taskHandler.GetResult)
	})

	r.Get("/health", healthHandler.Health)
	r.Get("/health/detailed", healthHandler.DetailedHealth)

	return r
}
