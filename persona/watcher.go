package persona

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/tobmae/soulchat/logging"
)

// Watcher invalidates a Loader's cache whenever the soul file or the skills
// directory changes on disk.
type Watcher struct {
	fw     *fsnotify.Watcher
	loader *Loader
	logger logging.Logger
	done   chan struct{}
}

// NewWatcher starts watching the loader's source paths. Close releases the
// watcher and stops the background goroutine.
func NewWatcher(loader *Loader, logger logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the soul file's parent so edits via rename (the common editor
	// save strategy) are still seen.
	if err := fw.Add(filepath.Dir(loader.soulPath)); err != nil {
		logger.Warn("cannot watch soul directory", "path", loader.soulPath, "error", err.Error())
	}
	if err := fw.Add(loader.skillsDir); err != nil {
		logger.Debug("cannot watch skills directory", "path", loader.skillsDir, "error", err.Error())
	}

	w := &Watcher{fw: fw, loader: loader, logger: logger, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("persona source changed, invalidating cache", "path", event.Name)
			w.loader.Invalidate()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("persona watcher error", "error", err.Error())
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.fw.Close()
	<-w.done
	return err
}
