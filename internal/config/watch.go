package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// RegionWatcher reloads the configuration when the config file or the region
// file changes on disk and hands the new region block to OnChange.
// Directories are watched rather than files so editors that replace a file
// on save are still picked up.
type RegionWatcher struct {
	mu         sync.Mutex
	watcher    *fsnotify.Watcher
	configPath string
	targets    map[string]bool
	onChange   func(RegionConfig)
	logger     *zap.Logger

	debounce time.Duration
	pending  bool
	lastSeen time.Time

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewRegionWatcher watches configPath and cfg.RegionFile (if set).
func NewRegionWatcher(configPath string, cfg *Config, onChange func(RegionConfig), logger *zap.Logger) (*RegionWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rw := &RegionWatcher{
		watcher:    w,
		configPath: configPath,
		targets:    map[string]bool{},
		onChange:   onChange,
		logger:     logger,
		debounce:   300 * time.Millisecond,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, p := range []string{configPath, cfg.RegionFile} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		rw.targets[filepath.Clean(abs)] = true
	}
	return rw, nil
}

// Start begins watching. It does not block.
func (rw *RegionWatcher) Start(ctx context.Context) error {
	rw.mu.Lock()
	if rw.running {
		rw.mu.Unlock()
		return nil
	}
	rw.running = true
	rw.mu.Unlock()

	dirs := map[string]bool{}
	for p := range rw.targets {
		dirs[filepath.Dir(p)] = true
	}
	for d := range dirs {
		if err := rw.watcher.Add(d); err != nil {
			rw.mu.Lock()
			rw.running = false
			rw.mu.Unlock()
			_ = rw.watcher.Close()
			return err
		}
		rw.logger.Info("watching region config", zap.String("dir", d))
	}

	go rw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (rw *RegionWatcher) Stop() {
	rw.mu.Lock()
	if !rw.running {
		rw.mu.Unlock()
		return
	}
	rw.running = false
	rw.mu.Unlock()

	close(rw.stopCh)
	<-rw.doneCh
	if err := rw.watcher.Close(); err != nil {
		rw.logger.Warn("closing region watcher", zap.Error(err))
	}
}

func (rw *RegionWatcher) run(ctx context.Context) {
	defer close(rw.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rw.stopCh:
			return
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			rw.handleEvent(event)
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.logger.Warn("region watcher error", zap.Error(err))
		case <-ticker.C:
			rw.flush()
		}
	}
}

func (rw *RegionWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		name = event.Name
	}
	if !rw.targets[filepath.Clean(name)] {
		return
	}
	rw.mu.Lock()
	rw.pending = true
	rw.lastSeen = time.Now()
	rw.mu.Unlock()
}

func (rw *RegionWatcher) flush() {
	rw.mu.Lock()
	if !rw.pending || time.Since(rw.lastSeen) < rw.debounce {
		rw.mu.Unlock()
		return
	}
	rw.pending = false
	rw.mu.Unlock()

	cfg, err := Load(rw.configPath)
	if err != nil {
		// Keep the current matcher until the file is fixed.
		rw.logger.Warn("region config reload failed", zap.String("path", rw.configPath), zap.Error(err))
		return
	}
	rw.logger.Info("region config reloaded",
		zap.String("region", cfg.Region.Name),
		zap.Int("indicators", len(cfg.Region.Indicators)),
		zap.Int("postcode_prefixes", len(cfg.Region.PostcodePrefixes)))
	if rw.onChange != nil {
		rw.onChange(cfg.Region)
	}
}
