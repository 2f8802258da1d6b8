// Package watcher observes the application config file and reports when a
// semantically meaningful change lands on disk. Routing and listener config
// only take effect on restart, so the watcher's job is to tell the operator
// (or the shell) that a restart is due.
package watcher

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher debounces config-file events down to semantic changes.
type Watcher struct {
	path     string
	onChange func()

	mu       sync.Mutex
	lastHash string
	fsw      *fsnotify.Watcher
	done     chan struct{}
}

// New creates a watcher for the given config path. onChange fires once per
// semantic content change; volatile rewrites with identical content are
// suppressed.
func New(path string, onChange func()) *Watcher {
	return &Watcher{path: path, onChange: onChange}
}

// Start begins watching. The parent directory is watched because editors
// typically replace the file rather than write it in place.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err = fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return err
	}

	w.mu.Lock()
	w.fsw = fsw
	w.done = make(chan struct{})
	w.lastHash, _ = hashFile(w.path)
	w.mu.Unlock()

	go w.run(fsw)
	return nil
}

// Stop shuts the watcher down. Safe to call on a never-started watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fsw := w.fsw
	done := w.done
	w.fsw = nil
	w.mu.Unlock()

	if fsw != nil {
		_ = fsw.Close()
		<-done
	}
}

func (w *Watcher) run(fsw *fsnotify.Watcher) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.handleChange()
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleChange() {
	hash, err := hashFile(w.path)
	if err != nil {
		return
	}

	w.mu.Lock()
	changed := hash != w.lastHash
	w.lastHash = hash
	w.mu.Unlock()

	if !changed {
		return
	}
	log.Info("config file changed on disk; restart the proxy to apply it")
	if w.onChange != nil {
		w.onChange()
	}
}
