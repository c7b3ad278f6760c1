// Package watcher provides script-file watching with rebuild callbacks
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/exeforge/exeforge/pkg/logger"
)

// DefaultDebounce is how long the watcher waits after the last write
// before firing a rebuild. Editors tend to emit bursts of events per save.
const DefaultDebounce = 500 * time.Millisecond

// RebuildCallback is called with the script path that changed.
type RebuildCallback func(scriptPath string)

// ScriptWatcher watches a set of Python scripts and fires a callback when
// one of them is rewritten on disk.
type ScriptWatcher struct {
	logger     logger.Logger
	watcher    *fsnotify.Watcher
	scripts    map[string]string // absolute path -> path as given by the caller
	callbacks  []RebuildCallback
	timers     map[string]*time.Timer
	debounce   time.Duration
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	isWatching bool
}

// NewScriptWatcher creates a watcher for the given script paths.
func NewScriptWatcher(scriptPaths []string, log logger.Logger) (*ScriptWatcher, error) {
	ctx, cancel := context.WithCancel(context.Background())

	scripts := make(map[string]string, len(scriptPaths))
	for _, p := range scriptPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to resolve script path %s: %w", p, err)
		}
		scripts[abs] = p
	}

	return &ScriptWatcher{
		logger:   log,
		scripts:  scripts,
		timers:   make(map[string]*time.Timer),
		debounce: DefaultDebounce,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// SetDebounce overrides the debounce period. Must be called before Start.
func (sw *ScriptWatcher) SetDebounce(d time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.debounce = d
}

// AddCallback registers a rebuild callback.
func (sw *ScriptWatcher) AddCallback(callback RebuildCallback) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.callbacks = append(sw.callbacks, callback)
}

// Start begins watching the script directories.
func (sw *ScriptWatcher) Start() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.isWatching {
		return fmt.Errorf("already watching scripts")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	sw.watcher = watcher

	// Watch parent directories rather than the files themselves so that
	// editors that replace the file (write temp, rename over) stay covered.
	dirs := make(map[string]struct{})
	for abs := range sw.scripts {
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := sw.watcher.Add(dir); err != nil {
			sw.watcher.Close()
			sw.watcher = nil
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	sw.isWatching = true
	go sw.watchLoop()

	sw.logger.Debug("Started watching scripts",
		logger.WithField("count", len(sw.scripts)))
	return nil
}

// Stop stops watching and releases the underlying watcher.
func (sw *ScriptWatcher) Stop() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if !sw.isWatching {
		return nil
	}

	sw.cancel()

	for path, timer := range sw.timers {
		timer.Stop()
		delete(sw.timers, path)
	}

	if sw.watcher != nil {
		if err := sw.watcher.Close(); err != nil {
			sw.logger.Warn("Error closing file watcher", logger.WithField("error", err))
		}
		sw.watcher = nil
	}

	sw.isWatching = false
	sw.logger.Debug("Stopped watching scripts")
	return nil
}

// IsWatching reports whether the watcher is running.
func (sw *ScriptWatcher) IsWatching() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.isWatching
}

func (sw *ScriptWatcher) watchLoop() {
	defer func() {
		if r := recover(); r != nil {
			sw.logger.Error("Script watcher panic recovered",
				logger.WithField("panic", r))
		}
	}()

	for {
		select {
		case <-sw.ctx.Done():
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}

			script, matched := sw.matchScript(event.Name)
			if !matched {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			sw.logger.Debug("Script change detected",
				logger.WithField("script", script),
				logger.WithField("event", event.Op.String()))
			sw.debounceRebuild(script)

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Error("Script watcher error", logger.WithField("error", err))
		}
	}
}

// matchScript maps a filesystem event path back to a watched script. Editor
// save dances (temp file plus rename) still land on the final name.
func (sw *ScriptWatcher) matchScript(eventPath string) (string, bool) {
	abs, err := filepath.Abs(eventPath)
	if err != nil {
		return "", false
	}
	if orig, ok := sw.scripts[abs]; ok {
		return orig, true
	}

	// Some editors write "<name>.py.tmp" then rename; treat the prefix
	// match in the same directory as a hit on the original script.
	base := filepath.Base(abs)
	dir := filepath.Dir(abs)
	for watched, orig := range sw.scripts {
		if filepath.Dir(watched) != dir {
			continue
		}
		if strings.HasPrefix(base, filepath.Base(watched)) {
			return orig, true
		}
	}
	return "", false
}

func (sw *ScriptWatcher) debounceRebuild(script string) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if timer, ok := sw.timers[script]; ok {
		timer.Stop()
	}
	sw.timers[script] = time.AfterFunc(sw.debounce, func() {
		sw.fireCallbacks(script)
	})
}

func (sw *ScriptWatcher) fireCallbacks(script string) {
	sw.mu.Lock()
	callbacks := make([]RebuildCallback, len(sw.callbacks))
	copy(callbacks, sw.callbacks)
	sw.mu.Unlock()

	for _, cb := range callbacks {
		cb(script)
	}
}
