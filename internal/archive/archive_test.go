package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(id string, ts time.Time, artifacts ...string) Snapshot {
	return Snapshot{ID: id, Timestamp: ts, URL: "https://example.com", AvailableArtifacts: artifacts}
}

func TestValidateSnapshotID(t *testing.T) {
	valid := []string{"20240315T143022Z", "req_test-1_20250904_120000", "req_abcdef"}
	for _, id := range valid {
		assert.NoError(t, ValidateSnapshotID(id), id)
	}

	invalid := []string{"", "req_x", "2024031", "20241315T143022Z", "abcdefghijklmnop"}
	for _, id := range invalid {
		err := ValidateSnapshotID(id)
		assert.True(t, errors.Is(err, ErrValidation), id)
	}
}

func TestSnapshotValidateNormalises(t *testing.T) {
	s := snap("20240315T143022Z", time.Now(), "archive.wacz", "screenshot.png", "archive.wacz")
	s.Metadata = map[string]any{"status": "200", "content_length": 1256.0, "content_type": "text/html"}

	require.NoError(t, s.Validate())
	assert.Equal(t, []string{"archive.wacz", "screenshot.png"}, s.AvailableArtifacts)
	assert.Equal(t, 200, s.StatusCode())
	assert.Equal(t, int64(1256), s.ContentLength())
	assert.Equal(t, "text/html", s.ContentType())
	assert.True(t, s.HasWACZ())
	assert.True(t, s.HasScreenshot())
	assert.False(t, s.HasSingleFile())
	assert.Equal(t, 2, s.ArtifactCount())
}

func TestSnapshotValidateRejectsUnknownArtifact(t *testing.T) {
	s := snap("20240315T143022Z", time.Now(), "evil.exe")
	assert.True(t, errors.Is(s.Validate(), ErrValidation))
}

func TestNormalizeMetadataDropsBadValues(t *testing.T) {
	m := NormalizeMetadata(map[string]any{"status": "ok", "content_length": []int{1}})
	assert.NotContains(t, m, "status")
	assert.NotContains(t, m, "content_length")
	assert.NotNil(t, NormalizeMetadata(nil))
}

func TestSnapshotTimestampHelpers(t *testing.T) {
	s := snap("20240315T143022Z", time.Date(2024, 3, 15, 14, 30, 22, 0, time.UTC))
	assert.Equal(t, "2024-03-15 14:30:22 UTC", s.FormattedTimestamp())
	assert.Equal(t, "2024-03-15", s.DateOnly())
	assert.Equal(t, "14:30:22", s.TimeOnly())
}

func TestSnapshotArtifactPath(t *testing.T) {
	s := snap("20240315T143022Z", time.Now(), "screenshot.png")
	assert.Empty(t, s.ArtifactPath("screenshot.png"))

	s.FolderPath = "/archives/a/b/req_1_20240101_000000"
	assert.Equal(t, "/archives/a/b/req_1_20240101_000000/screenshot.png", s.ArtifactPath("screenshot.png"))
	assert.Empty(t, s.ArtifactPath("archive.wacz"))
}

func TestNewArchivedURL(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	u, err := NewArchivedURL("example_com_home", "example.com", "example_com/home",
		[]Snapshot{snap("req_a_20240101_000000", older, "screenshot.png"), snap("req_b_20240301_000000", newer)})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", u.OriginalURL)
	assert.Equal(t, "req_b_20240301_000000", u.Snapshots[0].ID, "newest first")
	assert.Equal(t, 2, u.SnapshotCount())

	first, ok := u.FirstCaptured()
	require.True(t, ok)
	assert.Equal(t, older, first)
	last, _ := u.LastCaptured()
	assert.Equal(t, newer, last)

	assert.Equal(t, "2024-01-01 to 2024-03-01", u.DateRange())
	assert.NotNil(t, u.SnapshotByID("req_a_20240101_000000"))
	assert.Nil(t, u.SnapshotByID("missing"))
	assert.True(t, u.HasArtifactType("screenshot.png"))
	assert.False(t, u.HasArtifactType("archive.wacz"))
}

func TestArchivedURLEmpty(t *testing.T) {
	u, err := NewArchivedURL("x", "http://x", "x/y", nil)
	require.NoError(t, err)
	_, ok := u.FirstCaptured()
	assert.False(t, ok)
	assert.Empty(t, u.DateRange())
	assert.Equal(t, "http://x", u.OriginalURL)
}

func TestValidateURLID(t *testing.T) {
	assert.NoError(t, ValidateURLID("example_com-home"))
	assert.Error(t, ValidateURLID("example.com"))
	assert.Error(t, ValidateURLID(""))
}

func TestArtifactFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "screenshot.png")
	require.NoError(t, os.WriteFile(path, make([]byte, 1536), 0644))

	a, err := NewArtifactFromFile(ArtifactScreenshot, path)
	require.NoError(t, err)
	assert.True(t, a.Exists)
	require.NotNil(t, a.SizeBytes)
	assert.Equal(t, int64(1536), *a.SizeBytes)
	assert.Equal(t, "1.50 KB", a.SizeDisplay)
	assert.Equal(t, "image/png", a.ContentTypeHeader())
	assert.True(t, a.IsViewable())
	assert.False(t, a.IsReplayable())

	missing, err := NewArtifactFromFile(ArtifactWARC, filepath.Join(dir, "warc.file"))
	require.NoError(t, err)
	assert.False(t, missing.Exists)
	assert.Equal(t, "Unknown size", missing.FormattedSize())
	assert.True(t, missing.IsReplayable())
}

func TestValidateFilename(t *testing.T) {
	assert.NoError(t, ValidateFilename("archive.wacz"))
	assert.Error(t, ValidateFilename("../etc/passwd"))
	assert.Error(t, ValidateFilename(`a\b`))
}

func TestPaginationMeta(t *testing.T) {
	m := NewPaginationMeta(2, 50, 150)
	assert.Equal(t, 3, m.TotalPages)
	assert.True(t, m.HasNext)
	assert.True(t, m.HasPrevious)

	empty := NewPaginationMeta(1, 50, 0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrevious)
}
