package storage

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gosiva/archive-ui/internal/archive"
)

// CacheStats describes the state of the Service cache.
type CacheStats struct {
	Disabled    bool      `json:"disabled"`
	TTLSeconds  float64   `json:"ttl_seconds"`
	AgeSeconds  float64   `json:"age_seconds"`
	Expired     bool      `json:"expired"`
	CachedURLs  int       `json:"cached_urls"`
	LastRefresh time.Time `json:"last_refresh,omitempty"`
}

// Service fronts a Provider with a TTL cache of the full URL set. Concurrent
// callers on an expired cache wait for a single refresh.
type Service struct {
	provider Provider
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	urls        map[string]*archive.ArchivedURL
	refreshedAt time.Time
}

// NewService creates a Service. A ttl <= 0 disables caching.
func NewService(provider Provider, ttl time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		provider: provider,
		ttl:      ttl,
		log:      log.Named("storage"),
		now:      time.Now,
	}
}

// Provider returns the underlying provider.
func (s *Service) Provider() Provider {
	return s.provider
}

func (s *Service) validLocked() bool {
	if s.ttl <= 0 || s.urls == nil {
		return false
	}
	return s.now().Sub(s.refreshedAt) < s.ttl
}

// AllURLs returns every archived URL, from cache when it is still fresh.
func (s *Service) AllURLs(ctx context.Context) (map[string]*archive.ArchivedURL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.validLocked() {
		return s.urls, nil
	}

	urls, err := s.provider.AllURLs(ctx)
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 {
		s.urls = urls
		s.refreshedAt = s.now()
		s.log.Debug("Cache refreshed", zap.Int("urls", len(urls)))
	}
	return urls, nil
}

// URLByID looks up one archived URL.
func (s *Service) URLByID(ctx context.Context, urlID string) (*archive.ArchivedURL, error) {
	urls, err := s.AllURLs(ctx)
	if err != nil {
		return nil, err
	}
	u, ok := urls[urlID]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

// SnapshotByID looks up one snapshot across all URLs.
func (s *Service) SnapshotByID(ctx context.Context, snapshotID string) (*archive.Snapshot, error) {
	urls, err := s.AllURLs(ctx)
	if err != nil {
		return nil, err
	}
	snap := FindSnapshot(urls, snapshotID)
	if snap == nil {
		return nil, ErrNotFound
	}
	return snap, nil
}

// SnapshotsForURL returns the snapshots of urlID, newest first. Unknown URLs
// yield an empty slice.
func (s *Service) SnapshotsForURL(ctx context.Context, urlID string) ([]archive.Snapshot, error) {
	urls, err := s.AllURLs(ctx)
	if err != nil {
		return nil, err
	}
	u, ok := urls[urlID]
	if !ok {
		return []archive.Snapshot{}, nil
	}
	return u.Snapshots, nil
}

func (s *Service) OpenArtifact(ctx context.Context, snapshotID, artifact string) (io.ReadSeekCloser, os.FileInfo, error) {
	return s.provider.OpenArtifact(ctx, snapshotID, artifact)
}

func (s *Service) ArtifactExists(ctx context.Context, snapshotID, artifact string) (bool, error) {
	return s.provider.ArtifactExists(ctx, snapshotID, artifact)
}

func (s *Service) ArtifactPath(ctx context.Context, snapshotID, artifact string) (string, error) {
	return s.provider.ArtifactPath(ctx, snapshotID, artifact)
}

// ClearCache drops the cached URL set so the next read hits the provider.
func (s *Service) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = nil
	s.refreshedAt = time.Time{}
	s.log.Info("Cache cleared")
}

// CacheStats reports the current cache state.
func (s *Service) CacheStats() CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := CacheStats{
		Disabled:   s.ttl <= 0,
		TTLSeconds: s.ttl.Seconds(),
		CachedURLs: len(s.urls),
	}
	if s.urls == nil {
		stats.Expired = true
		return stats
	}
	stats.AgeSeconds = s.now().Sub(s.refreshedAt).Seconds()
	stats.Expired = !s.validLocked()
	stats.LastRefresh = s.refreshedAt
	return stats
}
