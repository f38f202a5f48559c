package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/tauraamui/xerror"
	"github.com/tauraamui/zedcv/pkg/configdef"
	"github.com/tauraamui/zedcv/pkg/log"
)

func DefaultWatcher() configdef.Watcher {
	return defaultWatcher{}
}

type defaultWatcher struct{}

func (d defaultWatcher) Watch(ctx context.Context, onChange func(configdef.Values)) (chan interface{}, error) {
	return watch(ctx, onChange)
}

var newFSWatcher = fsnotify.NewWatcher

// watch observes the config file's parent directory rather than the file
// itself so that editors which replace the file on save are still seen.
func watch(ctx context.Context, onChange func(configdef.Values)) (chan interface{}, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}

	watcher, err := newFSWatcher()
	if err != nil {
		return nil, xerror.Errorf("unable to create config watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, xerror.Errorf("unable to watch config directory: %w", err)
	}

	stopped := make(chan interface{})
	go func() {
		defer close(stopped)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				reload(onChange)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("Config watcher error: %v", err)
			}
		}
	}()
	return stopped, nil
}

func reload(onChange func(configdef.Values)) {
	values, err := load()
	if err != nil {
		log.Warn("Ignoring config change: %v", err)
		return
	}
	log.Info("Reloaded config file")
	onChange(values)
}
