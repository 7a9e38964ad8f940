package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gosiva/archive-ui/internal/config"
	"github.com/gosiva/archive-ui/internal/format"
	"github.com/gosiva/archive-ui/internal/storage"
)

// Deps carries what the handlers need
type Deps struct {
	Service   *storage.Service
	DB        *storage.DB // nil disables admin routes
	Describer ArtifactDescriber
	Dates     *format.DateFormatter
	Notifier  *format.Notifier
	Admin     config.AdminConfig
	Version   string
	Log       *zap.Logger
}

// Router sets up all HTTP routes
func Router(d Deps) (http.Handler, error) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Dates == nil {
		d.Dates = format.NewDateFormatter(nil)
	}
	if d.Notifier == nil {
		d.Notifier = format.NewNotifier(d.Log)
	}

	r := chi.NewRouter()

	// Create handlers
	pageHandler, err := NewPageHandler(d.Service, d.Dates, d.Version, d.Log)
	if err != nil {
		return nil, err
	}
	urlHandler := NewURLHandler(d.Service, d.Dates, d.Log)
	snapshotHandler := NewSnapshotHandler(d.Service, d.Describer, d.Dates, d.Log)
	adminHandler := NewAdminHandler(d.Service, d.DB, d.Notifier, d.Log)

	// Middleware
	middleware := NewMiddleware(d.DB, d.Admin, d.Log)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", pageHandler.Health)
	r.Get("/", pageHandler.ShowHome)

	r.Route("/api", func(r chi.Router) {
		// URLs
		r.Get("/urls", urlHandler.ListURLs)
		r.Get("/urls/{url_id}", urlHandler.GetURL)

		// Snapshots
		r.Get("/snapshots/{snapshot_id}", snapshotHandler.GetSnapshot)
		r.Get("/snapshots/{snapshot_id}/artifacts/{artifact}", snapshotHandler.GetArtifact)

		// Admin
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/cache", adminHandler.CacheStats)
			r.Post("/cache/clear", adminHandler.ClearCache)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, r, http.StatusNotFound, codeNotFound, "Not found")
	})

	d.Log.Info("Router initialized successfully")
	return r, nil
}
