package config

import (
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Watcher keeps a live snapshot of the retrieval calibration. The config
// file is watched with fsnotify; on change the calibration is reloaded and
// swapped atomically, so in-flight searches keep the snapshot they started
// with.
type Watcher struct {
	current atomic.Pointer[RetrievalConfig]
	fw      *fsnotify.Watcher
	path    string
	log     *zap.Logger
	done    chan struct{}
}

// NewWatcher seeds the snapshot from the current viper state. Watching
// starts only when Start is called, so a Watcher is also usable as a plain
// snapshot holder in tests.
func NewWatcher(configPath string, log *zap.Logger) *Watcher {
	w := &Watcher{
		path: configPath,
		log:  log,
		done: make(chan struct{}),
	}
	cfg := LoadRetrievalConfig()
	w.current.Store(&cfg)
	return w
}

// Current returns the calibration snapshot for one query.
func (w *Watcher) Current() RetrievalConfig {
	return *w.current.Load()
}

// Start begins watching the config file's directory. Editors replace files
// by rename, so the directory is watched and events are filtered by name.
// Reloads are debounced.
func (w *Watcher) Start() error {
	if w.path == "" {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return err
	}
	w.fw = fw

	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	var pending *time.Timer
	target := filepath.Base(w.path)

	for {
		select {
		case <-w.done:
			if pending != nil {
				pending.Stop()
			}
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(250*time.Millisecond, w.reload)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	if err := viper.ReadInConfig(); err != nil {
		w.log.Warn("config reload failed, keeping previous calibration", zap.Error(err))
		return
	}
	cfg := LoadRetrievalConfig()
	w.current.Store(&cfg)
	w.log.Info("retrieval calibration reloaded",
		zap.Float64("semantic_weight", cfg.SemanticWeight),
		zap.Float64("keyword_weight", cfg.KeywordWeight),
		zap.Bool("graph_enabled", cfg.GraphEnabled),
	)
}

// Stop ends watching. Safe to call when Start was never called.
func (w *Watcher) Stop() {
	close(w.done)
	if w.fw != nil {
		_ = w.fw.Close()
	}
}
