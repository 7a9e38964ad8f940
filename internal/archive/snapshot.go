// Package archive defines the archived URL, snapshot and artifact models
// shared by the scanner, the storage layer and the API.
package archive

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrValidation marks model values that fail validation.
var ErrValidation = errors.New("validation error")

const (
	// RequestPrefix starts every request-format snapshot ID:
	// req_{request_id}_{YYYYMMDD}_{HHMMSS}.
	RequestPrefix = "req_"

	compactLayout = "20060102T150405Z"
	maxTitleLen   = 500
)

// Snapshot is one capture of a URL at a point in time. It maps to a
// request directory in the archive tree.
type Snapshot struct {
	ID                 string         `json:"snapshot_id"`
	Timestamp          time.Time      `json:"timestamp"`
	URL                string         `json:"url"`
	Title              string         `json:"title,omitempty"`
	FolderPath         string         `json:"-"`
	Metadata           map[string]any `json:"metadata"`
	AvailableArtifacts []string       `json:"available_artifacts"`
	Artifacts          []Artifact     `json:"artifacts,omitempty"`
}

// ValidateSnapshotID accepts request-format IDs and legacy compact
// timestamps (YYYYMMDDTHHMMSSZ).
func ValidateSnapshotID(id string) error {
	if strings.HasPrefix(id, RequestPrefix) {
		if len(id) < 10 {
			return errors.Wrapf(ErrValidation, "snapshot_id %q must be valid request format (req_{id}_{timestamp})", id)
		}
		return nil
	}
	if len(id) != len(compactLayout) {
		return errors.Wrapf(ErrValidation, "snapshot_id %q must be 16 characters (YYYYMMDDTHHMMSSZ) or request format", id)
	}
	if _, err := time.Parse(compactLayout, id); err != nil {
		return errors.Wrapf(ErrValidation, "snapshot_id %q must be valid timestamp format (YYYYMMDDTHHMMSSZ)", id)
	}
	return nil
}

// Validate checks the ID, timestamp and artifact list, and normalises the
// metadata and artifact list in place.
func (s *Snapshot) Validate() error {
	if err := ValidateSnapshotID(s.ID); err != nil {
		return err
	}
	if s.Timestamp.IsZero() {
		return errors.Wrapf(ErrValidation, "snapshot %s has no timestamp", s.ID)
	}
	if len(s.Title) > maxTitleLen {
		s.Title = s.Title[:maxTitleLen]
	}

	artifacts, err := NormalizeArtifacts(s.AvailableArtifacts)
	if err != nil {
		return err
	}
	s.AvailableArtifacts = artifacts
	s.Metadata = NormalizeMetadata(s.Metadata)
	return nil
}

// NormalizeArtifacts rejects unknown artifact names and drops duplicates,
// keeping first-seen order.
func NormalizeArtifacts(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if !IsKnownArtifact(name) {
			return nil, errors.Wrapf(ErrValidation, "invalid artifact type: %s", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

// NormalizeMetadata coerces "status" and "content_length" to ints, dropping
// them when they cannot be converted. A nil map becomes empty.
func NormalizeMetadata(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	for _, key := range []string{"status", "content_length"} {
		v, ok := m[key]
		if !ok {
			continue
		}
		if n, ok := toInt(v); ok {
			m[key] = n
		} else {
			delete(m, key)
		}
	}
	return m
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// FormattedTimestamp renders the capture time as "2006-01-02 15:04:05 UTC".
func (s *Snapshot) FormattedTimestamp() string {
	return s.Timestamp.UTC().Format("2006-01-02 15:04:05") + " UTC"
}

func (s *Snapshot) DateOnly() string { return s.Timestamp.Format("2006-01-02") }
func (s *Snapshot) TimeOnly() string { return s.Timestamp.Format("15:04:05") }

func (s *Snapshot) ArtifactCount() int { return len(s.AvailableArtifacts) }

// HasArtifact reports whether name was found in the snapshot directory.
func (s *Snapshot) HasArtifact(name string) bool {
	for _, a := range s.AvailableArtifacts {
		if a == name {
			return true
		}
	}
	return false
}

func (s *Snapshot) HasWACZ() bool       { return s.HasArtifact(string(ArtifactWACZ)) }
func (s *Snapshot) HasWARC() bool       { return s.HasArtifact(string(ArtifactWARC)) }
func (s *Snapshot) HasScreenshot() bool { return s.HasArtifact(string(ArtifactScreenshot)) }
func (s *Snapshot) HasSingleFile() bool { return s.HasArtifact(string(ArtifactSingleFile)) }
func (s *Snapshot) HasDocument() bool   { return s.HasArtifact(string(ArtifactDocument)) }

// StatusCode returns metadata.status, or 0 when absent.
func (s *Snapshot) StatusCode() int {
	n, _ := s.Metadata["status"].(int)
	return n
}

// ContentType returns metadata.content_type.
func (s *Snapshot) ContentType() string {
	v, _ := s.Metadata["content_type"].(string)
	return v
}

// ContentLength returns metadata.content_length, or -1 when absent.
func (s *Snapshot) ContentLength() int64 {
	if n, ok := s.Metadata["content_length"].(int); ok {
		return int64(n)
	}
	return -1
}

// ArtifactPath returns the on-disk path of an available artifact, or "" when
// the snapshot has no folder or lacks the artifact.
func (s *Snapshot) ArtifactPath(name string) string {
	if s.FolderPath == "" || !s.HasArtifact(name) {
		return ""
	}
	return filepath.Join(s.FolderPath, name)
}
