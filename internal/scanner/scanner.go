package scanner

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gosiva/archive-ui/internal/archive"
)

// Scanner discovers archived URLs in a three-level tree:
// <root>/<domain>/<path_segment>/req_<request-id>_<YYYYMMDD>_<HHMMSS>/
type Scanner struct {
	root    string
	timeout time.Duration
	log     *zap.Logger
}

// Result is the outcome of one scan.
type Result struct {
	URLs      map[string]*archive.ArchivedURL
	Snapshots int
	Duration  time.Duration
	TimedOut  bool
}

// New creates a scanner for root. A zero timeout means no limit.
func New(root string, timeout time.Duration, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{
		root:    root,
		timeout: timeout,
		log:     log.Named("scanner"),
	}
}

// Root returns the archive root directory.
func (s *Scanner) Root() string {
	return s.root
}

// Scan walks the archive tree. When the timeout or ctx expires the scan
// stops early and returns what it has found so far. A missing root yields
// an empty result.
func (s *Scanner) Scan(ctx context.Context) *Result {
	start := time.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res := &Result{URLs: make(map[string]*archive.ArchivedURL)}

	info, err := os.Stat(s.root)
	if err != nil {
		s.log.Error("Storage path does not exist", zap.String("path", s.root), zap.Error(err))
		return res
	}
	if !info.IsDir() {
		s.log.Error("Storage path is not a directory", zap.String("path", s.root))
		return res
	}

	s.log.Info("Scanning archives directory", zap.String("path", s.root))

	domains, err := os.ReadDir(s.root)
	if err != nil {
		s.log.Error("Failed to read archives directory", zap.String("path", s.root), zap.Error(err))
		return res
	}

	for _, d := range domains {
		if ctx.Err() != nil {
			s.log.Warn("Scan timeout reached")
			res.TimedOut = true
			break
		}
		if !d.IsDir() {
			continue
		}
		for _, u := range s.scanDomain(ctx, filepath.Join(s.root, d.Name())) {
			res.URLs[u.ID] = u
			res.Snapshots += u.SnapshotCount()
		}
	}
	if ctx.Err() != nil {
		res.TimedOut = true
	}

	res.Duration = time.Since(start)
	s.log.Info("Scan completed",
		zap.Duration("duration", res.Duration),
		zap.Int("urls", len(res.URLs)),
		zap.Int("snapshots", res.Snapshots),
		zap.Bool("timed_out", res.TimedOut))
	return res
}

func (s *Scanner) scanDomain(ctx context.Context, domainDir string) []*archive.ArchivedURL {
	domain := filepath.Base(domainDir)
	entries, err := os.ReadDir(domainDir)
	if err != nil {
		s.log.Error("Error scanning domain directory", zap.String("path", domainDir), zap.Error(err))
		return nil
	}

	var urls []*archive.ArchivedURL
	for _, e := range entries {
		if ctx.Err() != nil {
			s.log.Warn("Timeout reached while scanning domain", zap.String("domain", domain))
			break
		}
		if !e.IsDir() {
			continue
		}

		urlID := domain + "_" + e.Name()
		snapshots := s.scanPath(ctx, filepath.Join(domainDir, e.Name()), urlID)
		if len(snapshots) == 0 {
			s.log.Debug("No valid snapshots found", zap.String("path", filepath.Join(domainDir, e.Name())))
			continue
		}

		u, err := archive.NewArchivedURL(urlID, "", domain+"/"+e.Name(), snapshots)
		if err != nil {
			s.log.Warn("Skipping archived URL", zap.String("url_id", urlID), zap.Error(err))
			continue
		}
		// Newest snapshot carries the canonical URL.
		u.OriginalURL = archive.EnsureScheme(u.Snapshots[0].URL)
		urls = append(urls, u)
	}
	return urls
}

func (s *Scanner) scanPath(ctx context.Context, pathDir, urlID string) []archive.Snapshot {
	entries, err := os.ReadDir(pathDir)
	if err != nil {
		s.log.Error("Error scanning path directory", zap.String("path", pathDir), zap.Error(err))
		return nil
	}

	var snapshots []archive.Snapshot
	for _, e := range entries {
		if ctx.Err() != nil {
			s.log.Warn("Timeout reached while scanning path", zap.String("path", pathDir))
			break
		}
		if !e.IsDir() {
			continue
		}
		if !strings.HasPrefix(e.Name(), archive.RequestPrefix) {
			s.log.Debug("Skipping non-request directory", zap.String("name", e.Name()))
			continue
		}
		if snap, ok := s.scanSnapshot(filepath.Join(pathDir, e.Name()), urlID); ok {
			snapshots = append(snapshots, snap)
		}
	}
	return snapshots
}

func (s *Scanner) scanSnapshot(dir, urlID string) (archive.Snapshot, bool) {
	id := filepath.Base(dir)
	ts, ok := ParseFolderTimestamp(id)
	if !ok {
		s.log.Warn("Could not parse timestamp for snapshot", zap.String("path", dir))
		return archive.Snapshot{}, false
	}

	metadata := s.readMetadata(filepath.Join(dir, string(archive.ArtifactMetadata)))

	snap := archive.Snapshot{
		ID:                 id,
		Timestamp:          ts,
		URL:                metadataURL(metadata, urlID),
		FolderPath:         dir,
		Metadata:           metadata,
		AvailableArtifacts: detectArtifacts(dir),
	}
	if title, ok := metadata["title"].(string); ok {
		snap.Title = title
	}

	if err := snap.Validate(); err != nil {
		s.log.Warn("Skipping invalid snapshot", zap.String("path", dir), zap.Error(err))
		return archive.Snapshot{}, false
	}
	return snap, true
}

func (s *Scanner) readMetadata(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Error("Error reading metadata", zap.String("path", path), zap.Error(err))
		}
		return map[string]any{}
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		s.log.Warn("Invalid JSON in metadata", zap.String("path", path), zap.Error(err))
		return map[string]any{}
	}
	if m == nil {
		return map[string]any{}
	}
	return m
}

// metadataURL prefers archive_info.url, then url, then a URL rebuilt from
// the URL ID.
func metadataURL(m map[string]any, urlID string) string {
	if info, ok := m["archive_info"].(map[string]any); ok {
		if u, ok := info["url"].(string); ok && u != "" {
			return u
		}
	}
	if u, ok := m["url"].(string); ok && u != "" {
		return u
	}

	rebuilt, err := url.PathUnescape(strings.ReplaceAll(urlID, "_", "/"))
	if err != nil {
		return "https://" + urlID
	}
	return archive.EnsureScheme(rebuilt)
}

func detectArtifacts(dir string) []string {
	var found []string
	for _, t := range archive.ArtifactTypes {
		info, err := os.Stat(filepath.Join(dir, string(t)))
		if err == nil && !info.IsDir() {
			found = append(found, string(t))
		}
	}
	return found
}

var folderLayouts = []string{
	"20060102T150405Z",
	"20060102_150405",
	"2006-01-02_15-04-05",
}

// ParseFolderTimestamp extracts the capture time from a snapshot folder
// name. Request folders carry it in their last two "_" separated fields.
func ParseFolderTimestamp(name string) (time.Time, bool) {
	if strings.HasPrefix(name, archive.RequestPrefix) {
		parts := strings.Split(name, "_")
		if len(parts) >= 3 {
			stamp := parts[len(parts)-2] + "_" + parts[len(parts)-1]
			if t, err := time.Parse("20060102_150405", stamp); err == nil {
				return t, true
			}
		}
	}
	for _, layout := range folderLayouts {
		if t, err := time.Parse(layout, name); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DescribeArtifacts stats every available artifact of snap, computing a
// checksum for each file that exists.
func (s *Scanner) DescribeArtifacts(snap *archive.Snapshot) []archive.Artifact {
	artifacts := make([]archive.Artifact, 0, len(snap.AvailableArtifacts))
	for _, name := range snap.AvailableArtifacts {
		t := archive.ArtifactType(name)
		path := snap.ArtifactPath(name)
		if path == "" {
			artifacts = append(artifacts, archive.MissingArtifact(t))
			continue
		}

		a, err := archive.NewArtifactFromFile(t, path)
		if err != nil {
			s.log.Warn("Failed to describe artifact", zap.String("path", path), zap.Error(err))
			artifacts = append(artifacts, archive.MissingArtifact(t))
			continue
		}
		if err := Checksum(&a); err != nil {
			s.log.Warn("Failed to hash artifact", zap.String("path", path), zap.Error(err))
		}
		artifacts = append(artifacts, a)
	}
	return artifacts
}
