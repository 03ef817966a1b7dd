package reconcile

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
	"github.com/fyrsmithlabs/memoryd/internal/repoindex"
)

// Watcher triggers a Reconcile pass whenever <repoRoot>/.orchestrator/index/index.json
// is written, instead of relying solely on a polling scheduler (spec.md §4.7's
// "change-triggered" reconciliation path).
type Watcher struct {
	reconciler *Reconciler
	repoID     string
	repoRoot   string
	watcher    *fsnotify.Watcher
	stop       chan struct{}
}

// NewWatcher constructs a Watcher for repoID rooted at repoRoot. Call Start
// to begin watching and Stop to release the underlying fsnotify handle.
func NewWatcher(reconciler *Reconciler, repoID, repoRoot string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, memory.NewError(memory.KindStorageInit, "creating index watcher", err)
	}
	return &Watcher{
		reconciler: reconciler,
		repoID:     repoID,
		repoRoot:   repoRoot,
		watcher:    fw,
		stop:       make(chan struct{}),
	}, nil
}

// Start watches the index directory and runs Reconcile on every write to
// index.json. It returns once the watch is registered; reconciliation runs
// in a background goroutine until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	indexDir := filepath.Dir(filepath.Join(w.repoRoot, repoindex.RelativePath))
	if err := w.watcher.Add(indexDir); err != nil {
		return memory.NewError(memory.KindStorageInit, "watching index directory", err)
	}
	go w.run(ctx)
	return nil
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

func (w *Watcher) run(ctx context.Context) {
	indexFile := filepath.Join(w.repoRoot, repoindex.RelativePath)
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(indexFile) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reconcileOnce(ctx)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) reconcileOnce(ctx context.Context) {
	idx, err := repoindex.Load(w.repoRoot)
	if err != nil {
		return
	}
	_, _ = w.reconciler.Reconcile(ctx, w.repoID, idx)
}
