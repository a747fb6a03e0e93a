// Package watcher recommits a lockfile whenever it changes on disk, turning
// the snapshot service into a continuous reproducibility check.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lockroot/lockroot-go/pkg/snapshot"
)

// Watcher observes one lockfile and commits a new snapshot on every change.
//
// The watch is placed on the lockfile's parent directory rather than the file
// itself: package managers typically replace lockfiles via rename, which
// would silently detach a file-level watch.
type Watcher struct {
	svc     *snapshot.Service
	logger  *zap.Logger
	path    string
	limiter *rate.Limiter
	fsw     *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given lockfile path.
// Editors and package managers emit bursts of write events for a single
// save; the rate limiter spaces immediate commits while suppressed events
// collapse into one trailing commit.
func NewWatcher(path string, svc *snapshot.Service, logger *zap.Logger) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve lockfile path")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		_ = fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch %s", filepath.Dir(absPath))
	}

	return &Watcher{
		svc:     svc,
		logger:  logger,
		path:    absPath,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1), // at most one commit per 2s burst
		fsw:     fsw,
	}, nil
}

// debounceQuiet is how long after the last rate-limited event the deferred
// commit fires.
const debounceQuiet = 500 * time.Millisecond

// Run blocks processing filesystem events until the context is cancelled.
// An initial commit is taken before waiting so the baseline snapshot always
// exists. Commit failures are logged and the watch continues; only watcher
// failures end the loop.
//
// The first event of a burst commits immediately; events the limiter
// suppresses arm a trailing deferred commit instead of being dropped, so the
// final state of a burst always reaches the store.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	w.commit()

	w.logger.Sugar().Infow("Watching lockfile", "path", w.path)

	debounce := time.NewTimer(debounceQuiet)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			w.logger.Sugar().Infow("Watcher stopped", "path", w.path)
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}
			if !w.isRelevant(event) {
				continue
			}
			if w.limiter.Allow() {
				// This commit captures the current state, so any armed
				// deferred commit is stale.
				if pending {
					if !debounce.Stop() {
						<-debounce.C
					}
					pending = false
				}
				w.commit()
				continue
			}
			// Push the deferred commit back to the end of the burst.
			if pending && !debounce.Stop() {
				<-debounce.C
			}
			debounce.Reset(debounceQuiet)
			pending = true

		case <-debounce.C:
			pending = false
			w.commit()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed")
			}
			w.logger.Sugar().Warnw("Watcher error", "path", w.path, "error", err)
		}
	}
}

// isRelevant reports whether an event touches the watched lockfile.
func (w *Watcher) isRelevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// commit takes a snapshot and logs the outcome.
func (w *Watcher) commit() {
	result, err := w.svc.Commit(w.path)
	if err != nil {
		w.logger.Sugar().Warnw("Failed to commit lockfile", "path", w.path, "error", err)
		return
	}

	if result.Previous != nil && !result.Reproducible {
		w.logger.Sugar().Warnw("Lockfile drifted",
			"path", w.path,
			"previousRoot", result.Previous.RootHex(),
			"root", result.Snapshot.RootHex())
	}
}
