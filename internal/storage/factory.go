package storage

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/gosiva/archive-ui/internal/config"
	"github.com/gosiva/archive-ui/internal/scanner"
)

// NewProvider builds the provider selected by cfg.Type. db backs the index
// for both supported types.
func NewProvider(cfg config.StorageConfig, db *DB, log *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case config.StorageFilesystem:
		scan := scanner.New(cfg.Filesystem.Path, cfg.Filesystem.Timeout(), log)
		return NewFilesystemProvider(scan, db, log), nil
	case config.StorageDatabase:
		if db == nil {
			return nil, errors.New("database storage requires an index database")
		}
		return NewDatabaseProvider(db), nil
	case config.StorageS3:
		return nil, errors.Wrapf(ErrUnsupported, "%s", cfg.Type)
	default:
		return nil, errors.Wrapf(ErrUnknownProvider, "%q", cfg.Type)
	}
}
