package flowstore

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// FlowEvent reports a flow directory appearing or disappearing under a
// watched domain.
type FlowEvent struct {
	ID      uuid.UUID
	Created bool
}

// Watcher tracks flow creation and destruction under a domain directory.
// It prefers OS-level directory-change notifications and falls back to
// periodic polling if those are unavailable, per the "liveness is derived,
// not authoritative" design note: callers should treat FlowEvent as a hint
// to re-list, not as a guaranteed, lossless stream.
type Watcher struct {
	manager *Manager
	events  chan FlowEvent
	done    chan struct{}
	log     *slog.Logger
}

// WatchDomain starts watching m's domain directory for flow creation and
// destruction. Callers must call Close when done.
func WatchDomain(m *Manager, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	w := &Watcher{
		manager: m,
		events:  make(chan FlowEvent, 64),
		done:    make(chan struct{}),
		log:     log,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("fsnotify unavailable, falling back to polling", "error", err)
		go w.pollLoop()
		return w, nil
	}
	if err := fsw.Add(m.domain); err != nil {
		fsw.Close()
		w.log.Warn("fsnotify.Add failed, falling back to polling", "error", err)
		go w.pollLoop()
		return w, nil
	}

	go w.notifyLoop(fsw)
	return w, nil
}

// Events returns the channel of flow creation/destruction hints.
func (w *Watcher) Events() <-chan FlowEvent { return w.events }

// Close stops the watcher and closes the Events channel.
func (w *Watcher) Close() {
	close(w.done)
}

func (w *Watcher) notifyLoop(fsw *fsnotify.Watcher) {
	defer fsw.Close()
	defer close(w.events)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			id, err := uuid.Parse(filepath.Base(ev.Name))
			if err != nil {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create) != 0:
				w.emit(FlowEvent{ID: id, Created: true})
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.emit(FlowEvent{ID: id, Created: false})
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) pollLoop() {
	defer close(w.events)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	seen := map[uuid.UUID]bool{}
	if ids, err := w.manager.List(); err == nil {
		for _, id := range ids {
			seen[id] = true
		}
	}

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			ids, err := w.manager.List()
			if err != nil {
				continue
			}
			current := map[uuid.UUID]bool{}
			for _, id := range ids {
				current[id] = true
				if !seen[id] {
					w.emit(FlowEvent{ID: id, Created: true})
				}
			}
			for id := range seen {
				if !current[id] {
					w.emit(FlowEvent{ID: id, Created: false})
				}
			}
			seen = current
		}
	}
}

func (w *Watcher) emit(ev FlowEvent) {
	select {
	case w.events <- ev:
	case <-w.done:
	}
}
