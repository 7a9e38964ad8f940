package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for events to settle before
// calling onChange.
const DefaultDebounce = 500 * time.Millisecond

// maxDepth covers <root>/<domain>/<path_segment>; snapshot folders appear
// as create events in path directories.
const maxDepth = 2

// Watcher calls onChange when the archive tree gains or loses entries.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	debounce time.Duration
	onChange func()
	log      *zap.Logger

	mu    sync.Mutex
	paths []string
}

// New watches root and its domain and path directories.
func New(root string, debounce time.Duration, onChange func(), log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}

	w := &Watcher{
		fsw:      fsw,
		root:     abs,
		debounce: debounce,
		onChange: onChange,
		log:      log.Named("watch"),
	}
	if err := w.addTree(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) depth(path string) int {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// addTree adds dir and its subdirectories up to maxDepth.
func (w *Watcher) addTree(dir string) error {
	if err := w.fsw.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	w.mu.Lock()
	w.paths = append(w.paths, dir)
	w.mu.Unlock()

	if w.depth(dir) >= maxDepth {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "read %s", dir)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := w.addTree(filepath.Join(dir, e.Name())); err != nil {
			w.log.Warn("Cannot watch directory", zap.Error(err))
		}
	}
	return nil
}

// Paths returns the watched directories.
func (w *Watcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.paths...)
}

// Run forwards debounced change notifications until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) &&
				!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Write) {
				continue
			}
			w.log.Debug("Archive change", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))

			if ev.Has(fsnotify.Create) && w.depth(ev.Name) <= maxDepth {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.log.Warn("Cannot watch new directory", zap.Error(err))
					}
				}
			}

			if timer == nil {
				timer = time.AfterFunc(w.debounce, w.onChange)
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("Watcher error", zap.Error(err))
		}
	}
}
