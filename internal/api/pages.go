package api

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/gosiva/archive-ui/internal/archive"
	"github.com/gosiva/archive-ui/internal/format"
	"github.com/gosiva/archive-ui/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	ServiceName = "archive-ui"
	pageTitle   = "Civers Archive Web Interface"
)

// PageHandler renders the HTML pages and the health check
type PageHandler struct {
	svc       *storage.Service
	templates *template.Template
	version   string
	log       *zap.Logger
}

// TemplateFuncs exposes the display formatters to templates
func TemplateFuncs(dates *format.DateFormatter) template.FuncMap {
	return template.FuncMap{
		"formatDate":     dates.Format,
		"formatFileSize": format.MustFormatFileSize,
		"relTime":        func(t time.Time) string { return humanize.Time(t) },
	}
}

// NewPageHandler parses the embedded templates
func NewPageHandler(svc *storage.Service, dates *format.DateFormatter, version string, log *zap.Logger) (*PageHandler, error) {
	tmpl, err := template.New("").Funcs(TemplateFuncs(dates)).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &PageHandler{
		svc:       svc,
		templates: tmpl,
		version:   version,
		log:       log.Named("pages"),
	}, nil
}

// homeRow is one archived URL on the home page
type homeRow struct {
	URL          *archive.ArchivedURL
	LastCaptured time.Time
	HasCapture   bool
	// PageSize is the content length of the newest capture, -1 when unknown.
	PageSize int64
}

// ShowHome renders the archived URL list
func (h *PageHandler) ShowHome(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Title string
		Rows  []homeRow
		Error string
	}{Title: pageTitle}

	all, err := h.svc.AllURLs(r.Context())
	if err != nil {
		h.log.Error("Failed to load URLs for home page", zap.Error(err))
		data.Error = "The archive could not be read."
	}

	urls := make([]*archive.ArchivedURL, 0, len(all))
	for _, u := range all {
		urls = append(urls, u)
	}
	sortURLs(urls, SortURL)

	for _, u := range urls {
		row := homeRow{URL: u, PageSize: -1}
		row.LastCaptured, row.HasCapture = u.LastCaptured()
		if len(u.Snapshots) > 0 {
			row.PageSize = u.Snapshots[0].ContentLength()
		}
		data.Rows = append(data.Rows, row)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		h.log.Error("Failed to render home page", zap.Error(err))
	}
}

// Health reports liveness
func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
		"version": h.version,
	})
}
