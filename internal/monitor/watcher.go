package monitor

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Watcher delivers the file content to a callback every time the file
// changes. The parent directory is watched rather than the file itself:
// editors that replace the file by rename would otherwise silently drop
// the watch.
type Watcher struct {
	loader *Loader
	fw     *fsnotify.Watcher
}

// NewWatcher starts watching the loader's directory.
func NewWatcher(loader *Loader) (*Watcher, error) {
	if loader == nil {
		return nil, errors.New("monitor: nil loader")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	dir := filepath.Dir(loader.Path())
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, errors.Wrapf(err, "watch %s", dir)
	}
	return &Watcher{loader: loader, fw: fw}, nil
}

// Run blocks, invoking onChange with the re-read content after every
// write to the monitored file, until ctx is done.
func (w *Watcher) Run(ctx context.Context, onChange func(content []byte)) error {
	if w == nil || w.fw == nil {
		return errors.New("monitor: nil watcher")
	}
	defer w.fw.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !w.matches(event) {
				continue
			}
			data, err := w.loader.Load()
			if err != nil {
				// a rename-replace briefly leaves no file behind
				logs.Errorf("reload %s: %v", w.loader.Path(), err)
				continue
			}
			onChange(data)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			logs.Errorf("watch error: %v", err)
		}
	}
}

func (w *Watcher) matches(event fsnotify.Event) bool {
	if event.Name != w.loader.Path() {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
