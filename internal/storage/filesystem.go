package storage

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gosiva/archive-ui/internal/archive"
	"github.com/gosiva/archive-ui/internal/scanner"
)

// FilesystemProvider scans the archive tree on every AllURLs call. When an
// index database is attached, each scan result is persisted to it.
type FilesystemProvider struct {
	scanner *scanner.Scanner
	index   *DB
	log     *zap.Logger

	mu sync.Mutex
	snapshotIndex
}

// NewFilesystemProvider creates a provider over scan. index may be nil.
func NewFilesystemProvider(scan *scanner.Scanner, index *DB, log *zap.Logger) *FilesystemProvider {
	if log == nil {
		log = zap.NewNop()
	}
	p := &FilesystemProvider{
		scanner: scan,
		index:   index,
		log:     log.Named("filesystem"),
	}
	p.snapshotIndex.load = p.scan
	return p
}

// AllURLs rescans the archive tree.
func (p *FilesystemProvider) AllURLs(ctx context.Context) (map[string]*archive.ArchivedURL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scan(ctx)
}

// scan runs with p.mu held.
func (p *FilesystemProvider) scan(ctx context.Context) (map[string]*archive.ArchivedURL, error) {
	started := time.Now()
	res := p.scanner.Scan(ctx)
	p.urls = res.URLs

	if p.index != nil {
		run := ScanRun{
			StartedAt:     started,
			Duration:      res.Duration,
			URLCount:      len(res.URLs),
			SnapshotCount: res.Snapshots,
			TimedOut:      res.TimedOut,
		}
		if err := p.index.SaveIndex(ctx, res.URLs, run); err != nil {
			p.log.Error("Failed to persist scan index", zap.Error(err))
		}
	}
	return res.URLs, nil
}

func (p *FilesystemProvider) URLByID(ctx context.Context, urlID string) (*archive.ArchivedURL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.urlByID(ctx, urlID)
}

func (p *FilesystemProvider) SnapshotByID(ctx context.Context, snapshotID string) (*archive.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotByID(ctx, snapshotID)
}

func (p *FilesystemProvider) OpenArtifact(ctx context.Context, snapshotID, artifact string) (io.ReadSeekCloser, os.FileInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openArtifact(ctx, snapshotID, artifact)
}

func (p *FilesystemProvider) ArtifactExists(ctx context.Context, snapshotID, artifact string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.artifactExists(ctx, snapshotID, artifact)
}

func (p *FilesystemProvider) ArtifactPath(ctx context.Context, snapshotID, artifact string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.artifactPath(ctx, snapshotID, artifact)
}
