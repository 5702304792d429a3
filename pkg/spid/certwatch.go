package spid

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/ingresso/pkg/observability"
)

// CertWatcher reloads the adapter's signing material when the key or
// certificate file on disk changes. Reload failures keep the previous
// material in place.
type CertWatcher struct {
	watcher  *fsnotify.Watcher
	adapter  *Adapter
	keyPath  string
	certPath string
	logger   *observability.Logger
	onReload func(*SigningMaterial)
}

// WatchSigningMaterial starts watching the key and certificate files and
// returns the watcher. Close it to stop. onReload, when non-nil, is called
// after each successful reload.
func WatchSigningMaterial(ctx context.Context, a *Adapter, keyPath, certPath string, logger *observability.Logger, onReload func(*SigningMaterial)) (*CertWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the parent directories: editors and secret mounts replace the
	// files rather than writing them in place.
	dirs := map[string]struct{}{
		filepath.Dir(keyPath):  {},
		filepath.Dir(certPath): {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	w := &CertWatcher{
		watcher:  watcher,
		adapter:  a,
		keyPath:  keyPath,
		certPath: certPath,
		logger:   logger,
		onReload: onReload,
	}
	go w.run(ctx)
	return w, nil
}

// Close stops the watcher.
func (w *CertWatcher) Close() error {
	return w.watcher.Close()
}

func (w *CertWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if event.Name != w.keyPath && event.Name != w.certPath {
				continue
			}
			w.reload(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Signing material watcher error")
		}
	}
}

func (w *CertWatcher) reload(changed string) {
	w.logger.WithField("file", changed).Info("Signing material changed on disk, reloading")

	material, err := LoadSigningMaterial(w.keyPath, w.certPath)
	if err != nil {
		w.logger.WithError(err).Error("Failed to reload signing material, keeping previous key pair")
		return
	}

	w.adapter.ReloadMaterial(material)
	if w.onReload != nil {
		w.onReload(material)
	}
}
