package archive

import (
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ArchivedURL is a URL with every snapshot captured for it. It maps to a
// <domain>/<path> directory pair in the archive tree.
type ArchivedURL struct {
	ID          string     `json:"url_id"`
	OriginalURL string     `json:"original_url"`
	FolderName  string     `json:"folder_name"`
	Snapshots   []Snapshot `json:"snapshots"`
}

// NewArchivedURL validates the identifiers, adds a scheme to originalURL
// when missing and sorts snapshots newest first.
func NewArchivedURL(id, originalURL, folderName string, snapshots []Snapshot) (*ArchivedURL, error) {
	if err := ValidateURLID(id); err != nil {
		return nil, err
	}
	if folderName == "" || len(folderName) > 255 {
		return nil, errors.Wrapf(ErrValidation, "folder_name must be 1-255 characters, got %d", len(folderName))
	}

	u := &ArchivedURL{
		ID:          id,
		OriginalURL: EnsureScheme(originalURL),
		FolderName:  folderName,
		Snapshots:   snapshots,
	}
	u.SortSnapshots()
	return u, nil
}

// ValidateURLID accepts 1-255 characters of letters, digits, '_' and '-'.
func ValidateURLID(id string) error {
	if id == "" || len(id) > 255 {
		return errors.Wrapf(ErrValidation, "url_id must be 1-255 characters, got %d", len(id))
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return errors.Wrapf(ErrValidation, "url_id %q must contain only alphanumeric characters, underscores, and hyphens", id)
		}
	}
	return nil
}

// EnsureScheme prefixes https:// to URLs without an http(s) scheme.
func EnsureScheme(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

// SortSnapshots orders snapshots newest first.
func (u *ArchivedURL) SortSnapshots() {
	sort.SliceStable(u.Snapshots, func(i, j int) bool {
		return u.Snapshots[i].Timestamp.After(u.Snapshots[j].Timestamp)
	})
}

func (u *ArchivedURL) SnapshotCount() int { return len(u.Snapshots) }

// FirstCaptured returns the earliest snapshot time; ok is false without
// snapshots.
func (u *ArchivedURL) FirstCaptured() (t time.Time, ok bool) {
	for i, s := range u.Snapshots {
		if i == 0 || s.Timestamp.Before(t) {
			t = s.Timestamp
		}
	}
	return t, len(u.Snapshots) > 0
}

// LastCaptured returns the latest snapshot time; ok is false without
// snapshots.
func (u *ArchivedURL) LastCaptured() (t time.Time, ok bool) {
	for i, s := range u.Snapshots {
		if i == 0 || s.Timestamp.After(t) {
			t = s.Timestamp
		}
	}
	return t, len(u.Snapshots) > 0
}

// DateRange renders "YYYY-MM-DD" or "YYYY-MM-DD to YYYY-MM-DD". It is empty
// without snapshots.
func (u *ArchivedURL) DateRange() string {
	first, ok := u.FirstCaptured()
	if !ok {
		return ""
	}
	last, _ := u.LastCaptured()

	a, b := first.Format("2006-01-02"), last.Format("2006-01-02")
	if a == b {
		return a
	}
	return a + " to " + b
}

// SnapshotByID returns the snapshot with the given ID, or nil.
func (u *ArchivedURL) SnapshotByID(id string) *Snapshot {
	for i := range u.Snapshots {
		if u.Snapshots[i].ID == id {
			return &u.Snapshots[i]
		}
	}
	return nil
}

// HasArtifactType reports whether any snapshot carries the artifact.
func (u *ArchivedURL) HasArtifactType(name string) bool {
	for i := range u.Snapshots {
		if u.Snapshots[i].HasArtifact(name) {
			return true
		}
	}
	return false
}
