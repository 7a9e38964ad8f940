package api

import (
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gosiva/archive-ui/internal/archive"
	"github.com/gosiva/archive-ui/internal/format"
	"github.com/gosiva/archive-ui/internal/storage"
)

const (
	defaultPage  = 1
	defaultLimit = 50

	SortURL           = "url"
	SortLastCaptured  = "last_captured"
	SortSnapshotCount = "snapshot_count"
)

// listQuery holds the parsed /api/urls query string
type listQuery struct {
	Page  int    `query:"page" validate:"min=1"`
	Limit int    `query:"limit" validate:"min=1,max=100"`
	Sort  string `query:"sort" validate:"oneof=url last_captured snapshot_count"`
}

// URLSummary is one row of the URL listing (snapshots omitted)
type URLSummary struct {
	URLID                string  `json:"url_id"`
	OriginalURL          string  `json:"original_url"`
	FolderName           string  `json:"folder_name"`
	SnapshotCount        int     `json:"snapshot_count"`
	FirstCaptured        *string `json:"first_captured"`
	LastCaptured         *string `json:"last_captured"`
	DateRange            *string `json:"date_range"`
	LastCapturedDisplay  string  `json:"last_captured_display,omitempty"`
	LastCapturedRelative string  `json:"last_captured_relative,omitempty"`
}

// URLHandler serves the archived URL endpoints
type URLHandler struct {
	svc      *storage.Service
	dates    *format.DateFormatter
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

// NewURLHandler creates a URL handler
func NewURLHandler(svc *storage.Service, dates *format.DateFormatter, log *zap.Logger) *URLHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("query")
	})
	return &URLHandler{
		svc:      svc,
		dates:    dates,
		validate: v,
		log:      log.Named("urls"),
		now:      time.Now,
	}
}

func (h *URLHandler) parseQuery(r *http.Request) (listQuery, []archive.ErrorDetail) {
	q := listQuery{Page: defaultPage, Limit: defaultLimit, Sort: SortURL}
	var details []archive.ErrorDetail

	values := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &q.Page}, {"limit", &q.Limit}} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			details = append(details, archive.ErrorDetail{
				Field:   p.name,
				Message: fmt.Sprintf("%s must be an integer", p.name),
				Code:    "int_parsing",
			})
			continue
		}
		*p.dst = n
	}
	if s := values.Get("sort"); s != "" {
		q.Sort = s
	}
	if len(details) > 0 {
		return q, details
	}

	if err := h.validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details = append(details, archive.ErrorDetail{
					Field:   fe.Field(),
					Message: validationMessage(fe),
					Code:    fe.Tag(),
				})
			}
		} else {
			details = append(details, archive.ErrorDetail{Message: err.Error()})
		}
	}
	return q, details
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// sortURLs orders urls in place. Ties keep URL ID order.
func sortURLs(urls []*archive.ArchivedURL, key string) {
	sort.Slice(urls, func(i, j int) bool { return urls[i].ID < urls[j].ID })

	switch key {
	case SortURL:
		sort.SliceStable(urls, func(i, j int) bool {
			return strings.ToLower(urls[i].OriginalURL) < strings.ToLower(urls[j].OriginalURL)
		})
	case SortLastCaptured:
		sort.SliceStable(urls, func(i, j int) bool {
			a, _ := urls[i].LastCaptured()
			b, _ := urls[j].LastCaptured()
			return a.After(b)
		})
	case SortSnapshotCount:
		sort.SliceStable(urls, func(i, j int) bool {
			return urls[i].SnapshotCount() > urls[j].SnapshotCount()
		})
	}
}

func (h *URLHandler) summarize(u *archive.ArchivedURL) URLSummary {
	s := URLSummary{
		URLID:         u.ID,
		OriginalURL:   u.OriginalURL,
		FolderName:    u.FolderName,
		SnapshotCount: u.SnapshotCount(),
	}
	if first, ok := u.FirstCaptured(); ok {
		v := first.Format(time.RFC3339)
		s.FirstCaptured = &v
	}
	if last, ok := u.LastCaptured(); ok {
		v := last.Format(time.RFC3339)
		s.LastCaptured = &v
		s.LastCapturedDisplay = h.dates.Format(last)
		s.LastCapturedRelative = humanize.RelTime(last, h.now(), "ago", "from now")
	}
	if dr := u.DateRange(); dr != "" {
		s.DateRange = &dr
	}
	return s
}

// ListURLs returns one page of archived URL summaries
func (h *URLHandler) ListURLs(w http.ResponseWriter, r *http.Request) {
	q, details := h.parseQuery(r)
	if len(details) > 0 {
		JSONError(w, r, http.StatusBadRequest, codeValidation, "Invalid query parameters", details...)
		return
	}

	h.log.Debug("Fetching URLs", zap.Int("page", q.Page), zap.Int("limit", q.Limit), zap.String("sort", q.Sort))

	all, err := h.svc.AllURLs(r.Context())
	if err != nil {
		h.log.Error("Error fetching URL list", zap.Error(err))
		JSONError(w, r, http.StatusInternalServerError, codeInternal, "Failed to retrieve URL list")
		return
	}

	if len(all) == 0 {
		h.log.Warn("No URLs found in storage")
		JSONResponse(w, http.StatusOK, archive.PaginatedResponse[URLSummary]{
			Success:    true,
			Data:       []URLSummary{},
			Pagination: archive.NewPaginationMeta(q.Page, q.Limit, 0),
		})
		return
	}

	urls := make([]*archive.ArchivedURL, 0, len(all))
	for _, u := range all {
		urls = append(urls, u)
	}
	sortURLs(urls, q.Sort)

	total := len(urls)
	meta := archive.NewPaginationMeta(q.Page, q.Limit, total)
	// Compare pages, not offsets: (page-1)*limit overflows for huge pages.
	if q.Page > meta.TotalPages {
		JSONError(w, r, http.StatusBadRequest, codeBadRequest,
			fmt.Sprintf("Page %d does not exist. Total pages: %d", q.Page, meta.TotalPages))
		return
	}
	start := (q.Page - 1) * q.Limit
	end := min(start+q.Limit, total)

	data := make([]URLSummary, 0, end-start)
	for _, u := range urls[start:end] {
		data = append(data, h.summarize(u))
	}

	JSONResponse(w, http.StatusOK, archive.PaginatedResponse[URLSummary]{
		Success:    true,
		Data:       data,
		Pagination: meta,
	})
}

// GetURL returns one archived URL with all its snapshots
func (h *URLHandler) GetURL(w http.ResponseWriter, r *http.Request) {
	urlID := chi.URLParam(r, "url_id")
	if err := archive.ValidateURLID(urlID); err != nil {
		JSONError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	u, err := h.svc.URLByID(r.Context(), urlID)
	if errors.Is(err, storage.ErrNotFound) {
		JSONError(w, r, http.StatusNotFound, codeNotFound, fmt.Sprintf("URL %s not found", urlID))
		return
	}
	if err != nil {
		h.log.Error("Error fetching URL", zap.String("url_id", urlID), zap.Error(err))
		JSONError(w, r, http.StatusInternalServerError, codeInternal, "Failed to retrieve URL")
		return
	}

	JSONData(w, struct {
		*archive.ArchivedURL
		Summary URLSummary `json:"summary"`
	}{u, h.summarize(u)})
}
