package storage

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/gosiva/archive-ui/internal/archive"
)

// DatabaseProvider serves archived URLs from the index written by a
// FilesystemProvider, without touching the archive tree until an artifact
// is requested.
type DatabaseProvider struct {
	db *DB

	mu sync.Mutex
	snapshotIndex
}

// NewDatabaseProvider creates a provider reading from db.
func NewDatabaseProvider(db *DB) *DatabaseProvider {
	p := &DatabaseProvider{db: db}
	p.snapshotIndex.load = p.load
	return p
}

func (p *DatabaseProvider) load(ctx context.Context) (map[string]*archive.ArchivedURL, error) {
	urls, err := p.db.LoadIndex(ctx)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "load index"), ErrStorage)
	}
	p.urls = urls
	return urls, nil
}

// AllURLs reloads the index.
func (p *DatabaseProvider) AllURLs(ctx context.Context) (map[string]*archive.ArchivedURL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load(ctx)
}

func (p *DatabaseProvider) URLByID(ctx context.Context, urlID string) (*archive.ArchivedURL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.urlByID(ctx, urlID)
}

func (p *DatabaseProvider) SnapshotByID(ctx context.Context, snapshotID string) (*archive.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotByID(ctx, snapshotID)
}

func (p *DatabaseProvider) OpenArtifact(ctx context.Context, snapshotID, artifact string) (io.ReadSeekCloser, os.FileInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openArtifact(ctx, snapshotID, artifact)
}

func (p *DatabaseProvider) ArtifactExists(ctx context.Context, snapshotID, artifact string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.artifactExists(ctx, snapshotID, artifact)
}

func (p *DatabaseProvider) ArtifactPath(ctx context.Context, snapshotID, artifact string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.artifactPath(ctx, snapshotID, artifact)
}
