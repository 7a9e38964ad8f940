package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gosiva/archive-ui/internal/archive"
)

// ScanRun records one completed scan.
type ScanRun struct {
	StartedAt     time.Time
	Duration      time.Duration
	URLCount      int
	SnapshotCount int
	TimedOut      bool
}

// SaveIndex replaces the stored index with urls and records the run.
func (db *DB) SaveIndex(ctx context.Context, urls map[string]*archive.ArchivedURL, run ScanRun) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin index transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return errors.Wrap(err, "clear snapshots")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM archived_urls`); err != nil {
		return errors.Wrap(err, "clear archived urls")
	}

	urlStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO archived_urls (url_id, original_url, folder_name)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare url insert")
	}
	defer urlStmt.Close()

	snapStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshots (snapshot_id, url_id, captured_at, url, title, folder_path, metadata, artifacts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare snapshot insert")
	}
	defer snapStmt.Close()

	for _, u := range urls {
		if _, err := urlStmt.ExecContext(ctx, u.ID, u.OriginalURL, u.FolderName); err != nil {
			return errors.Wrapf(err, "insert url %s", u.ID)
		}
		for _, s := range u.Snapshots {
			metadata, err := json.Marshal(s.Metadata)
			if err != nil {
				return errors.Wrapf(err, "encode metadata of %s", s.ID)
			}
			artifacts, err := json.Marshal(s.AvailableArtifacts)
			if err != nil {
				return errors.Wrapf(err, "encode artifacts of %s", s.ID)
			}
			if _, err := snapStmt.ExecContext(ctx, s.ID, u.ID, s.Timestamp.Unix(), s.URL, s.Title,
				s.FolderPath, string(metadata), string(artifacts)); err != nil {
				return errors.Wrapf(err, "insert snapshot %s", s.ID)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scan_runs (started_at, duration_ms, url_count, snapshot_count, timed_out)
		VALUES (?, ?, ?, ?, ?)
	`, run.StartedAt.Unix(), run.Duration.Milliseconds(), run.URLCount, run.SnapshotCount, boolToInt(run.TimedOut)); err != nil {
		return errors.Wrap(err, "record scan run")
	}

	return tx.Commit()
}

// LoadIndex reads every archived URL and its snapshots from the index.
func (db *DB) LoadIndex(ctx context.Context) (map[string]*archive.ArchivedURL, error) {
	rows, err := db.QueryContext(ctx, `SELECT url_id, original_url, folder_name FROM archived_urls`)
	if err != nil {
		return nil, errors.Wrap(err, "query archived urls")
	}
	defer rows.Close()

	urls := make(map[string]*archive.ArchivedURL)
	for rows.Next() {
		u := &archive.ArchivedURL{}
		if err := rows.Scan(&u.ID, &u.OriginalURL, &u.FolderName); err != nil {
			return nil, errors.Wrap(err, "scan archived url")
		}
		urls[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snapRows, err := db.QueryContext(ctx, `
		SELECT snapshot_id, url_id, captured_at, url, title, folder_path, metadata, artifacts
		FROM snapshots
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query snapshots")
	}
	defer snapRows.Close()

	for snapRows.Next() {
		var (
			s                   archive.Snapshot
			urlID               string
			capturedAt          int64
			metadata, artifacts string
		)
		if err := snapRows.Scan(&s.ID, &urlID, &capturedAt, &s.URL, &s.Title, &s.FolderPath, &metadata, &artifacts); err != nil {
			return nil, errors.Wrap(err, "scan snapshot")
		}
		s.Timestamp = time.Unix(capturedAt, 0).UTC()
		if err := json.Unmarshal([]byte(metadata), &s.Metadata); err != nil {
			return nil, errors.Wrapf(err, "decode metadata of %s", s.ID)
		}
		if err := json.Unmarshal([]byte(artifacts), &s.AvailableArtifacts); err != nil {
			return nil, errors.Wrapf(err, "decode artifacts of %s", s.ID)
		}
		s.Metadata = archive.NormalizeMetadata(s.Metadata)

		if u, ok := urls[urlID]; ok {
			u.Snapshots = append(u.Snapshots, s)
		}
	}
	if err := snapRows.Err(); err != nil {
		return nil, err
	}

	for _, u := range urls {
		u.SortSnapshots()
	}
	return urls, nil
}

// LastScan returns the most recent scan run, or nil when none was recorded.
func (db *DB) LastScan(ctx context.Context) (*ScanRun, error) {
	var (
		run                   ScanRun
		startedAt, durationMS int64
		timedOut              int
	)
	err := db.QueryRowContext(ctx, `
		SELECT started_at, duration_ms, url_count, snapshot_count, timed_out
		FROM scan_runs ORDER BY id DESC LIMIT 1
	`).Scan(&startedAt, &durationMS, &run.URLCount, &run.SnapshotCount, &timedOut)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query last scan")
	}

	run.StartedAt = time.Unix(startedAt, 0).UTC()
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.TimedOut = timedOut == 1
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
