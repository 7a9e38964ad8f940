package api

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gosiva/archive-ui/internal/archive"
	"github.com/gosiva/archive-ui/internal/format"
	"github.com/gosiva/archive-ui/internal/storage"
)

// ArtifactDescriber stats and checksums the artifacts of a snapshot
type ArtifactDescriber interface {
	DescribeArtifacts(snap *archive.Snapshot) []archive.Artifact
}

// SnapshotDetail is a snapshot with its artifacts described
type SnapshotDetail struct {
	archive.Snapshot
	TimestampDisplay string `json:"timestamp_display"`
}

// SnapshotHandler serves snapshot details and artifact downloads
type SnapshotHandler struct {
	svc       *storage.Service
	describer ArtifactDescriber
	dates     *format.DateFormatter
	log       *zap.Logger
}

// NewSnapshotHandler creates a snapshot handler
func NewSnapshotHandler(svc *storage.Service, describer ArtifactDescriber, dates *format.DateFormatter, log *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		svc:       svc,
		describer: describer,
		dates:     dates,
		log:       log.Named("snapshots"),
	}
}

// GetSnapshot returns one snapshot with artifact sizes and checksums
func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshotID := chi.URLParam(r, "snapshot_id")
	if err := archive.ValidateSnapshotID(snapshotID); err != nil {
		JSONError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	snap, err := h.svc.SnapshotByID(r.Context(), snapshotID)
	if errors.Is(err, storage.ErrNotFound) {
		JSONError(w, r, http.StatusNotFound, codeNotFound, fmt.Sprintf("Snapshot %s not found", snapshotID))
		return
	}
	if err != nil {
		h.log.Error("Error fetching snapshot", zap.String("snapshot_id", snapshotID), zap.Error(err))
		JSONError(w, r, http.StatusInternalServerError, codeInternal, "Failed to retrieve snapshot")
		return
	}

	// Copy so the cached snapshot is never modified.
	detail := SnapshotDetail{
		Snapshot:         *snap,
		TimestampDisplay: h.dates.Format(snap.Timestamp),
	}
	if h.describer != nil {
		detail.Artifacts = h.describer.DescribeArtifacts(snap)
	}
	JSONData(w, detail)
}

// GetArtifact streams one artifact file. Range requests are supported.
func (h *SnapshotHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	snapshotID := chi.URLParam(r, "snapshot_id")
	artifact := chi.URLParam(r, "artifact")

	if err := archive.ValidateSnapshotID(snapshotID); err != nil {
		JSONError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	if err := archive.ValidateFilename(artifact); err != nil {
		JSONError(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	f, info, err := h.svc.OpenArtifact(r.Context(), snapshotID, artifact)
	switch {
	case errors.Is(err, storage.ErrInvalidArtifact):
		JSONError(w, r, http.StatusBadRequest, codeValidation, fmt.Sprintf("Unknown artifact %q", artifact))
		return
	case errors.Is(err, storage.ErrNotFound):
		JSONError(w, r, http.StatusNotFound, codeNotFound,
			fmt.Sprintf("Artifact %s not found for snapshot %s", artifact, snapshotID))
		return
	case err != nil:
		h.log.Error("Error opening artifact",
			zap.String("snapshot_id", snapshotID), zap.String("artifact", artifact), zap.Error(err))
		JSONError(w, r, http.StatusInternalServerError, codeInternal, "Failed to open artifact")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", archive.ContentTypeFor(archive.ArtifactType(artifact), ""))
	if artifact == string(archive.ArtifactWACZ) || artifact == string(archive.ArtifactWARC) {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snapshotID+"_"+artifact))
	}
	http.ServeContent(w, r, artifact, info.ModTime(), f)
}
