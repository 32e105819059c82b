package module

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"portage/internal/logger"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher registers transfer modules dropped into the module directory
// while the daemon is running. Schemes already claimed stay with their
// first registrant.
type Watcher struct {
	fw     *fsnotify.Watcher
	reg    *Registry
	doneCh chan struct{}
}

func WatchModules(dir string, reg *Registry) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		fw:     fw,
		reg:    reg,
		doneCh: make(chan struct{}),
	}

	go w.run()

	logger.Log.Info("module watcher started",
		zap.String("dir", dir))
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.doneCh:
			logger.Log.Info("module watcher stopping")
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}

			// Chmod matters too: modules are often copied in first and
			// made executable afterwards.
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Chmod) {
				continue
			}

			w.tryRegister(event.Name)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}

			logger.Log.Error("module watcher error",
				zap.Error(err))
		}
	}
}

func (w *Watcher) tryRegister(path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Mode().Perm()&0111 == 0 {
		return
	}

	m, err := NewExternal(path)
	if err != nil {
		logger.Log.Warn("ignoring module candidate",
			zap.String("path", path),
			zap.Error(err))
		return
	}

	w.reg.Register(m)
}

func (w *Watcher) Stop() {
	close(w.doneCh)
	_ = w.fw.Close()
}
