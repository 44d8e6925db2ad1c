package config

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/utils/clock"

	"github.com/dshills/molsync/internal/logging"
	"github.com/dshills/molsync/internal/schedule"
)

// DefaultReloadDelay is the quiet period after the last file event before
// the configuration is reloaded.
const DefaultReloadDelay = 200 * time.Millisecond

// ErrNoFile is returned by Watch when Options has no Path.
var ErrNoFile = errors.New("no config file to watch")

// Watcher reloads the configuration when its file changes.
type Watcher struct {
	fsw      *fsnotify.Watcher
	opts     Options
	target   string
	log      *logging.Logger
	reload   *schedule.Debouncer
	onReload func(*Config)
	onError  func(error)

	closed  atomic.Bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// WatchOption configures a Watcher.
type WatchOption func(*watchSettings)

type watchSettings struct {
	delay   time.Duration
	clock   clock.WithDelayedExecution
	log     *logging.Logger
	onError func(error)
}

// WithReloadDelay sets the quiet period before reloading.
func WithReloadDelay(d time.Duration) WatchOption {
	return func(s *watchSettings) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithReloadClock sets the clock of the reload timer.
func WithReloadClock(c clock.WithDelayedExecution) WatchOption {
	return func(s *watchSettings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithWatchLogger sets the logger.
func WithWatchLogger(l *logging.Logger) WatchOption {
	return func(s *watchSettings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithErrorHandler receives load and watch errors. The previous
// configuration stays in effect after an error.
func WithErrorHandler(fn func(error)) WatchOption {
	return func(s *watchSettings) {
		s.onError = fn
	}
}

// Watch starts watching the file named by opts.Path. onReload receives
// every successfully reloaded configuration.
//
// The directory is watched rather than the file, since editors often save
// by renaming a temporary file over the original.
func Watch(opts Options, onReload func(*Config), wopts ...WatchOption) (*Watcher, error) {
	if opts.Path == "" {
		return nil, ErrNoFile
	}
	s := watchSettings{
		delay: DefaultReloadDelay,
		clock: clock.RealClock{},
		log:   logging.Null(),
	}
	for _, opt := range wopts {
		opt(&s)
	}

	target, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		opts:     opts,
		target:   target,
		log:      s.log.WithComponent("config"),
		onReload: onReload,
		onError:  s.onError,
		closeCh:  make(chan struct{}),
	}
	w.reload = schedule.NewDebouncer(s.delay, w.load, schedule.WithClock(s.clock))

	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(w.closeCh)
	w.wg.Wait()
	w.reload.Cancel()
	return w.fsw.Close()
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.reload.Call()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.fail(err)
		}
	}
}

func (w *Watcher) load() {
	if w.closed.Load() {
		return
	}
	cfg, err := Load(w.opts)
	if err != nil {
		w.fail(err)
		return
	}
	w.log.Info("configuration reloaded from %s", w.target)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

func (w *Watcher) fail(err error) {
	w.log.Warn("config reload: %v", err)
	if w.onError != nil {
		w.onError(err)
	}
}
