package providers

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before a changed table is reloaded
const DefaultDebounce = 200 * time.Millisecond

// TableWatcher reloads the provider table file when it changes and hands the
// parsed definitions to onReload. A table that fails to parse is logged and
// ignored, so the last good table stays live.
type TableWatcher struct {
	path     string
	debounce time.Duration
	onReload func([]Definition) error
	logger   *zap.Logger

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewTableWatcher creates a watcher for path
func NewTableWatcher(path string, debounce time.Duration, onReload func([]Definition) error, logger *zap.Logger) (*TableWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("provider table path is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve provider table path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &TableWatcher{
		path:     abs,
		debounce: debounce,
		onReload: onReload,
		logger:   logger,
		watcher:  w,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine. The parent directory is
// watched so editors that replace the file by rename are still seen.
func (tw *TableWatcher) Start(ctx context.Context) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.running {
		return fmt.Errorf("table watcher already running")
	}
	if err := tw.watcher.Add(filepath.Dir(tw.path)); err != nil {
		return fmt.Errorf("failed to watch provider table: %w", err)
	}
	tw.running = true

	go tw.loop(ctx)

	tw.logger.Info("provider table watcher started",
		zap.String("path", tw.path),
		zap.Duration("debounce", tw.debounce))
	return nil
}

func (tw *TableWatcher) loop(ctx context.Context) {
	defer close(tw.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-tw.stopCh:
			return
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			if !tw.relevant(event) {
				continue
			}
			tw.logger.Debug("provider table event",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))
			tw.schedule()
		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			tw.logger.Error("provider table watcher error", zap.Error(err))
		}
	}
}

func (tw *TableWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == tw.path
}

func (tw *TableWatcher) schedule() {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timer != nil {
		tw.timer.Stop()
	}
	tw.timer = time.AfterFunc(tw.debounce, tw.Reload)
}

// Reload reads the table file now and applies it
func (tw *TableWatcher) Reload() {
	defs, err := LoadTable(tw.path)
	if err != nil {
		tw.logger.Error("provider table reload failed, keeping previous table",
			zap.String("path", tw.path), zap.Error(err))
		return
	}
	if err := tw.onReload(defs); err != nil {
		tw.logger.Error("provider table apply failed", zap.Error(err))
		return
	}
	tw.logger.Info("provider table reloaded", zap.Int("providers", len(defs)))
}

// Stop stops watching and cancels a pending reload
func (tw *TableWatcher) Stop() error {
	tw.mu.Lock()
	if !tw.running {
		tw.mu.Unlock()
		return tw.watcher.Close()
	}
	tw.running = false
	if tw.timer != nil {
		tw.timer.Stop()
		tw.timer = nil
	}
	tw.mu.Unlock()

	close(tw.stopCh)
	<-tw.doneCh

	if err := tw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}
