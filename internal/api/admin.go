package api

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/gosiva/archive-ui/internal/archive"
	"github.com/gosiva/archive-ui/internal/format"
	"github.com/gosiva/archive-ui/internal/storage"
)

// AdminHandler exposes cache maintenance to the admin account
type AdminHandler struct {
	svc    *storage.Service
	db     *storage.DB
	notify *format.Notifier
	log    *zap.Logger
}

// NewAdminHandler creates an admin handler
func NewAdminHandler(svc *storage.Service, db *storage.DB, notify *format.Notifier, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		svc:    svc,
		db:     db,
		notify: notify,
		log:    log.Named("admin"),
	}
}

// CacheStatus is the body of GET /api/admin/cache
type CacheStatus struct {
	Cache    storage.CacheStats `json:"cache"`
	LastScan *ScanStatus        `json:"last_scan"`
	Toast    string             `json:"toast"`
}

// ScanStatus summarizes the last recorded scan
type ScanStatus struct {
	StartedAt       string  `json:"started_at"`
	DurationSeconds float64 `json:"duration_seconds"`
	URLCount        int     `json:"url_count"`
	SnapshotCount   int     `json:"snapshot_count"`
	TimedOut        bool    `json:"timed_out"`
}

// CacheStats reports the cache state and the last scan
func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	status := CacheStatus{Cache: h.svc.CacheStats()}

	if h.db != nil {
		run, err := h.db.LastScan(r.Context())
		if err != nil {
			h.log.Error("Failed to read last scan", zap.Error(err))
		} else if run != nil {
			status.LastScan = &ScanStatus{
				StartedAt:       format.FormatDate(run.StartedAt),
				DurationSeconds: run.Duration.Seconds(),
				URLCount:        run.URLCount,
				SnapshotCount:   run.SnapshotCount,
				TimedOut:        run.TimedOut,
			}
			if run.TimedOut {
				h.notify.Show("Last scan timed out before the whole archive was read", format.SeverityWarning)
			}
		}
	}

	status.Toast = h.notify.Info(fmt.Sprintf("%d URLs cached by %s", status.Cache.CachedURLs, GetUsername(r)))
	JSONData(w, status)
}

// ClearCache drops the cached URL set
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearCache()
	toast := h.notify.Show("Cache cleared by "+GetUsername(r), format.SeveritySuccess)

	JSONResponse(w, http.StatusOK, archive.SuccessResponse{
		Success: true,
		Message: "Cache cleared",
		Data:    map[string]any{"toast": toast},
	})
}
