package storage

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gosiva/archive-ui/internal/archive"
	"github.com/gosiva/archive-ui/internal/config"
	"github.com/gosiva/archive-ui/internal/scanner"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// newArchiveTree writes two URLs with three snapshots in total.
func newArchiveTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	write := func(domain, path, id string, meta map[string]any, artifacts ...string) {
		dir := filepath.Join(root, domain, path, id)
		require.NoError(t, os.MkdirAll(dir, 0755))
		data, err := json.Marshal(meta)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0644))
		for _, a := range artifacts {
			require.NoError(t, os.WriteFile(filepath.Join(dir, a), []byte("content of "+a), 0644))
		}
	}
	write("example_com", "home", "req_a_20250101_100000",
		map[string]any{"url": "https://example.com", "title": "Home", "status": 200}, "screenshot.png")
	write("example_com", "home", "req_b_20250102_100000",
		map[string]any{"url": "https://example.com"}, "archive.wacz")
	write("golang_org", "doc", "req_c_20240601_090000",
		map[string]any{"url": "https://golang.org/doc"})
	return root
}

func newFilesystemProvider(t *testing.T, root string, db *DB) *FilesystemProvider {
	t.Helper()
	log := zaptest.NewLogger(t)
	return NewFilesystemProvider(scanner.New(root, 5*time.Second, log), db, log)
}

func TestFilesystemProviderLookups(t *testing.T) {
	ctx := context.Background()
	p := newFilesystemProvider(t, newArchiveTree(t), nil)

	urls, err := p.AllURLs(ctx)
	require.NoError(t, err)
	assert.Len(t, urls, 2)

	u, err := p.URLByID(ctx, "example_com_home")
	require.NoError(t, err)
	assert.Equal(t, 2, u.SnapshotCount())

	_, err = p.URLByID(ctx, "missing_url")
	assert.True(t, errors.Is(err, ErrNotFound))

	snap, err := p.SnapshotByID(ctx, "req_a_20250101_100000")
	require.NoError(t, err)
	assert.Equal(t, "Home", snap.Title)

	_, err = p.SnapshotByID(ctx, "req_zzz_20250101_100000")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFilesystemProviderArtifacts(t *testing.T) {
	ctx := context.Background()
	p := newFilesystemProvider(t, newArchiveTree(t), nil)

	ok, err := p.ArtifactExists(ctx, "req_a_20250101_100000", "screenshot.png")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.ArtifactExists(ctx, "req_a_20250101_100000", "archive.wacz")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.ArtifactExists(ctx, "req_a_20250101_100000", "../../etc/passwd")
	assert.True(t, errors.Is(err, ErrInvalidArtifact))

	f, info, err := p.OpenArtifact(ctx, "req_a_20250101_100000", "screenshot.png")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "content of screenshot.png", string(data))
	assert.Equal(t, int64(len(data)), info.Size())

	path, err := p.ArtifactPath(ctx, "req_b_20250102_100000", "archive.wacz")
	require.NoError(t, err)
	assert.Equal(t, "archive.wacz", filepath.Base(path))

	_, _, err = p.OpenArtifact(ctx, "req_c_20240601_090000", "warc.file")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestScanIsPersistedAndServedFromDatabase(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	fs := newFilesystemProvider(t, newArchiveTree(t), db)

	_, err := fs.AllURLs(ctx)
	require.NoError(t, err)

	run, err := db.LastScan(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 2, run.URLCount)
	assert.Equal(t, 3, run.SnapshotCount)
	assert.False(t, run.TimedOut)

	dbp := NewDatabaseProvider(db)
	urls, err := dbp.AllURLs(ctx)
	require.NoError(t, err)
	require.Len(t, urls, 2)

	u := urls["example_com_home"]
	require.NotNil(t, u)
	require.Len(t, u.Snapshots, 2)
	assert.Equal(t, "req_b_20250102_100000", u.Snapshots[0].ID, "newest first")
	assert.Equal(t, time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), u.Snapshots[0].Timestamp)

	snap, err := dbp.SnapshotByID(ctx, "req_a_20250101_100000")
	require.NoError(t, err)
	assert.Equal(t, 200, snap.StatusCode())
	assert.True(t, snap.HasScreenshot())

	ok, err := dbp.ArtifactExists(ctx, "req_a_20250101_100000", "screenshot.png")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSaveIndexReplacesPreviousScan(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	first := map[string]*archive.ArchivedURL{
		"a_b": {ID: "a_b", OriginalURL: "https://a/b", FolderName: "a/b"},
		"c_d": {ID: "c_d", OriginalURL: "https://c/d", FolderName: "c/d"},
	}
	require.NoError(t, db.SaveIndex(ctx, first, ScanRun{StartedAt: time.Now(), URLCount: 2}))

	second := map[string]*archive.ArchivedURL{
		"e_f": {ID: "e_f", OriginalURL: "https://e/f", FolderName: "e/f"},
	}
	require.NoError(t, db.SaveIndex(ctx, second, ScanRun{StartedAt: time.Now(), URLCount: 1}))

	urls, err := db.LoadIndex(ctx)
	require.NoError(t, err)
	assert.Len(t, urls, 1)
	assert.Contains(t, urls, "e_f")

	run, err := db.LastScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, run.URLCount)
}

func TestLastScanEmpty(t *testing.T) {
	run, err := newTestDB(t).LastScan(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
}

// countingProvider counts AllURLs calls.
type countingProvider struct {
	Provider
	calls int
}

func (c *countingProvider) AllURLs(ctx context.Context) (map[string]*archive.ArchivedURL, error) {
	c.calls++
	return c.Provider.AllURLs(ctx)
}

func TestServiceCachesUntilTTL(t *testing.T) {
	ctx := context.Background()
	cp := &countingProvider{Provider: newFilesystemProvider(t, newArchiveTree(t), nil)}
	svc := NewService(cp, time.Minute, zaptest.NewLogger(t))

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	stats := svc.CacheStats()
	assert.True(t, stats.Expired)
	assert.Equal(t, 0, stats.CachedURLs)

	_, err := svc.AllURLs(ctx)
	require.NoError(t, err)
	_, err = svc.URLByID(ctx, "golang_org_doc")
	require.NoError(t, err)
	assert.Equal(t, 1, cp.calls)

	now = now.Add(30 * time.Second)
	stats = svc.CacheStats()
	assert.False(t, stats.Expired)
	assert.Equal(t, 2, stats.CachedURLs)
	assert.InDelta(t, 30.0, stats.AgeSeconds, 0.001)
	assert.Equal(t, 60.0, stats.TTLSeconds)

	now = now.Add(31 * time.Second)
	assert.True(t, svc.CacheStats().Expired)
	_, err = svc.AllURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cp.calls)

	svc.ClearCache()
	assert.True(t, svc.CacheStats().Expired)
	_, err = svc.AllURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, cp.calls)
}

func TestServiceDisabledCache(t *testing.T) {
	ctx := context.Background()
	cp := &countingProvider{Provider: newFilesystemProvider(t, newArchiveTree(t), nil)}
	svc := NewService(cp, 0, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.AllURLs(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, cp.calls)

	stats := svc.CacheStats()
	assert.True(t, stats.Disabled)
	assert.Equal(t, 0, stats.CachedURLs)
}

func TestServiceLookups(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFilesystemProvider(t, newArchiveTree(t), nil), time.Minute, nil)

	snaps, err := svc.SnapshotsForURL(ctx, "example_com_home")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "req_b_20250102_100000", snaps[0].ID)

	snaps, err = svc.SnapshotsForURL(ctx, "nope_nope")
	require.NoError(t, err)
	assert.Empty(t, snaps)

	_, err = svc.SnapshotByID(ctx, "req_x_20250101_100000")
	assert.True(t, errors.Is(err, ErrNotFound))

	snap, err := svc.SnapshotByID(ctx, "req_c_20240601_090000")
	require.NoError(t, err)
	assert.Equal(t, "https://golang.org/doc", snap.URL)
}

func TestNewProvider(t *testing.T) {
	log := zaptest.NewLogger(t)
	db := newTestDB(t)

	p, err := NewProvider(config.StorageConfig{Type: config.StorageFilesystem}, db, log)
	require.NoError(t, err)
	assert.IsType(t, &FilesystemProvider{}, p)

	p, err = NewProvider(config.StorageConfig{Type: config.StorageDatabase}, db, log)
	require.NoError(t, err)
	assert.IsType(t, &DatabaseProvider{}, p)

	_, err = NewProvider(config.StorageConfig{Type: config.StorageDatabase}, nil, log)
	assert.Error(t, err)

	_, err = NewProvider(config.StorageConfig{Type: config.StorageS3}, db, log)
	assert.True(t, errors.Is(err, ErrUnsupported))

	_, err = NewProvider(config.StorageConfig{Type: "ftp"}, db, log)
	assert.True(t, errors.Is(err, ErrUnknownProvider))
}

func TestUsersAndLockout(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.CreateUser("admin", "s3cret", ""))

	exists, err := db.UserExists("admin")
	require.NoError(t, err)
	assert.True(t, exists)

	u, err := db.VerifyPassword("admin", "s3cret")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "admin", u.Username)

	u, err = db.VerifyPassword("admin", "wrong")
	require.NoError(t, err)
	assert.Nil(t, u)

	for i := 0; i < MaxLoginAttempts; i++ {
		locked, err := db.IsLoginLocked("10.0.0.1", "admin")
		require.NoError(t, err)
		assert.False(t, locked)
		require.NoError(t, db.RegisterFailedLogin("10.0.0.1", "admin"))
	}
	locked, err := db.IsLoginLocked("10.0.0.1", "admin")
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, db.ResetFailedLogin("10.0.0.1", "admin"))
	locked, err = db.IsLoginLocked("10.0.0.1", "admin")
	require.NoError(t, err)
	assert.False(t, locked)
}
