package tuning

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 100 * time.Millisecond

// Watcher reloads a tuning file whenever it changes on disk. Editors that
// replace the file by rename are handled by watching the parent directory.
// Updates only carries files that loaded and validated; everything else
// goes to Errors. Both channels close after Close.
type Watcher struct {
	path    string
	fs      *fsnotify.Watcher
	Updates chan Tuning
	Errors  chan error
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

func Watch(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	w := &Watcher{
		path:    abs,
		fs:      fw,
		Updates: make(chan Tuning, 1),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.fs.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	defer close(w.Updates)
	defer close(w.Errors)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	var pending <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Base(ev.Name) != filepath.Base(w.path) {
				continue
			}
			// Trailing edge: reload once the burst of writes is over.
			timer.Reset(debounce)
			pending = timer.C
		case <-pending:
			pending = nil
			t, err := Load(w.path)
			if err != nil {
				if !w.fail(err) {
					return
				}
				continue
			}
			if !w.deliver(t) {
				return
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if !w.fail(err) {
				return
			}
		case <-w.closeCh:
			return
		}
	}
}

func (w *Watcher) deliver(t Tuning) bool {
	select {
	case w.Updates <- t:
		return true
	case <-w.closeCh:
		return false
	}
}

func (w *Watcher) fail(err error) bool {
	select {
	case w.Errors <- err:
		return true
	case <-w.closeCh:
		return false
	}
}
