// Package inventorywatch reloads a file whenever it changes on disk and hands
// the decoded result to every subscriber.
package inventorywatch

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type WatcherOptions[T any] struct {
	Logger *zap.Logger
	Path   string
	// Load decodes the file. Updates which fail to load are logged and dropped.
	Load func(path string) (T, error)
}

type Watcher[T any] struct {
	logger *zap.Logger
	path   string
	load   func(path string) (T, error)

	lock     sync.Mutex
	watchers map[uuid.UUID]chan<- T
	watch    *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher starts watching opts.Path. The parent directory is watched so
// that files replaced by rename are still picked up.
func NewWatcher[T any](opts WatcherOptions[T]) (*Watcher[T], error) {
	if opts.Load == nil {
		return nil, errors.New("inventory watcher requires a load function")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve watched path")
	}

	watch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}

	w := &Watcher[T]{
		logger:   logger,
		path:     path,
		load:     opts.Load,
		watchers: map[uuid.UUID]chan<- T{},
		watch:    watch,
		done:     make(chan struct{}),
	}

	if err := watch.Add(filepath.Dir(path)); err != nil {
		_ = watch.Close()
		return nil, errors.Wrapf(err, "failed to watch %s", path)
	}

	go w.run()

	return w, nil
}

func (w *Watcher[T]) run() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.watch.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.watch.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher[T]) reload() {
	value, err := w.load(w.path)
	if err != nil {
		w.logger.Warn("ignoring unloadable update", zap.String("path", w.path), zap.Error(err))
		return
	}

	w.logger.Debug("change detected", zap.String("path", w.path))
	w.broadcast(value)
}

func (w *Watcher[T]) broadcast(value T) {
	w.lock.Lock()
	chans := make([]chan<- T, 0, len(w.watchers))
	for _, ch := range w.watchers {
		chans = append(chans, ch)
	}
	w.lock.Unlock()

	for _, ch := range chans {
		ch <- value
	}
}

// Subscribe registers ch for updates. The returned function unsubscribes.
func (w *Watcher[T]) Subscribe(ch chan<- T) func() {
	id := uuid.New()

	w.lock.Lock()
	w.watchers[id] = ch
	w.lock.Unlock()

	return func() {
		w.lock.Lock()
		delete(w.watchers, id)
		w.lock.Unlock()
	}
}

// Close stops watching and waits for the watch loop to exit.
func (w *Watcher[T]) Close() error {
	err := w.watch.Close()
	<-w.done
	return err
}
