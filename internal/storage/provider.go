package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/gosiva/archive-ui/internal/archive"
)

var (
	// ErrStorage marks failures of the underlying storage backend.
	ErrStorage = errors.New("storage error")
	// ErrNotFound is returned for unknown URLs, snapshots and artifacts.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArtifact is returned for artifact names outside the known set.
	ErrInvalidArtifact = errors.New("invalid artifact")
	// ErrUnknownProvider is returned by NewProvider for unsupported types.
	ErrUnknownProvider = errors.New("unknown storage provider")
	// ErrUnsupported is returned for provider types that are recognized but
	// not implemented.
	ErrUnsupported = errors.New("storage provider not implemented")
)

// Provider is a storage backend holding archived URLs and their artifacts.
// Maps and values returned by a Provider are shared and must not be
// modified by callers.
type Provider interface {
	// AllURLs returns every archived URL keyed by URL ID.
	AllURLs(ctx context.Context) (map[string]*archive.ArchivedURL, error)
	URLByID(ctx context.Context, urlID string) (*archive.ArchivedURL, error)
	SnapshotByID(ctx context.Context, snapshotID string) (*archive.Snapshot, error)
	// OpenArtifact opens an artifact for reading; the caller closes it.
	OpenArtifact(ctx context.Context, snapshotID, artifact string) (io.ReadSeekCloser, os.FileInfo, error)
	ArtifactExists(ctx context.Context, snapshotID, artifact string) (bool, error)
	ArtifactPath(ctx context.Context, snapshotID, artifact string) (string, error)
}

// FindSnapshot searches urls for a snapshot ID.
func FindSnapshot(urls map[string]*archive.ArchivedURL, snapshotID string) *archive.Snapshot {
	for _, u := range urls {
		if s := u.SnapshotByID(snapshotID); s != nil {
			return s
		}
	}
	return nil
}

// snapshotIndex holds the last set of URLs a provider loaded, so lookups by
// ID do not trigger a full reload each time.
type snapshotIndex struct {
	load func(ctx context.Context) (map[string]*archive.ArchivedURL, error)
	urls map[string]*archive.ArchivedURL
}

func (x *snapshotIndex) current(ctx context.Context) (map[string]*archive.ArchivedURL, error) {
	if x.urls != nil {
		return x.urls, nil
	}
	return x.load(ctx)
}

func (x *snapshotIndex) urlByID(ctx context.Context, urlID string) (*archive.ArchivedURL, error) {
	urls, err := x.current(ctx)
	if err != nil {
		return nil, err
	}
	u, ok := urls[urlID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "url %s", urlID)
	}
	return u, nil
}

func (x *snapshotIndex) snapshotByID(ctx context.Context, snapshotID string) (*archive.Snapshot, error) {
	urls, err := x.current(ctx)
	if err != nil {
		return nil, err
	}
	s := FindSnapshot(urls, snapshotID)
	if s == nil {
		return nil, errors.Wrapf(ErrNotFound, "snapshot %s", snapshotID)
	}
	return s, nil
}

func (x *snapshotIndex) artifactPath(ctx context.Context, snapshotID, artifact string) (string, error) {
	if !archive.IsKnownArtifact(artifact) {
		return "", errors.Wrapf(ErrInvalidArtifact, "%q", artifact)
	}
	s, err := x.snapshotByID(ctx, snapshotID)
	if err != nil {
		return "", err
	}
	if s.FolderPath == "" {
		return "", errors.Wrapf(ErrNotFound, "snapshot %s has no folder", snapshotID)
	}

	path := filepath.Join(s.FolderPath, artifact)
	info, err := os.Stat(path)
	if os.IsNotExist(err) || (err == nil && info.IsDir()) {
		return "", errors.Wrapf(ErrNotFound, "artifact %s/%s", snapshotID, artifact)
	}
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "stat artifact %s", path), ErrStorage)
	}
	return path, nil
}

func (x *snapshotIndex) openArtifact(ctx context.Context, snapshotID, artifact string) (io.ReadSeekCloser, os.FileInfo, error) {
	path, err := x.artifactPath(ctx, snapshotID, artifact)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Mark(errors.Wrapf(err, "open artifact %s", path), ErrStorage)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.Mark(errors.Wrapf(err, "stat artifact %s", path), ErrStorage)
	}
	return f, info, nil
}

func (x *snapshotIndex) artifactExists(ctx context.Context, snapshotID, artifact string) (bool, error) {
	_, err := x.artifactPath(ctx, snapshotID, artifact)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
