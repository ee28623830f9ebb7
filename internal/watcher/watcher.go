package watcher

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
)

type EventKind int

const (
	EventChanged EventKind = iota
	EventMissing
)

func (k EventKind) String() string {
	if k == EventMissing {
		return "missing"
	}
	return "changed"
}

type Fingerprint struct {
	Mod  time.Time
	Size int64
	Hash string
}

type Event struct {
	Path string
	Kind EventKind
	Prev Fingerprint
	Curr Fingerprint
}

type Options struct {
	Buffer int
	Logger *slog.Logger
}

type entry struct {
	fp      Fingerprint
	missing bool
}

// Watcher reports content changes of tracked files. Parent directories are
// watched rather than the files themselves so editors and atomic writers that
// replace a file by rename are still seen. Events whose content hash did not
// change are dropped.
type Watcher struct {
	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	entries map[string]*entry
	dirs    map[string]int
	out     chan Event
	log     *slog.Logger
	wg      sync.WaitGroup
	started bool
	closed  bool
}

const defaultBuffer = 16

func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	buf := opts.Buffer
	if buf <= 0 {
		buf = defaultBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		fsw:     fsw,
		entries: make(map[string]*entry),
		dirs:    make(map[string]int),
		out:     make(chan Event, buf),
		log:     logger,
	}, nil
}

func (w *Watcher) Events() <-chan Event {
	return w.out
}

func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started || w.closed {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		for {
			select {
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
					continue
				}
				w.Check(ev.Name)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.log.Warn("file watcher error", "err", err)
			}
		}
	}()
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	_ = w.fsw.Close()
	w.wg.Wait()
	close(w.out)
}

// Track starts watching path. data is the content the caller just loaded and
// becomes the baseline fingerprint; with nil data the file is read here. A
// path that does not exist yet is tracked as missing and reported once it
// appears.
func (w *Watcher) Track(path string, data []byte) error {
	clean, ok := cleanPath(path)
	if !ok {
		return nil
	}
	missing := false
	if data == nil {
		read, err := os.ReadFile(clean)
		if err != nil {
			missing = true
		}
		data = read
	}
	fp := buildFingerprint(clean, data)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if _, tracked := w.entries[clean]; !tracked {
		dir := filepath.Dir(clean)
		if w.dirs[dir] == 0 {
			if err := w.fsw.Add(dir); err != nil {
				return err
			}
		}
		w.dirs[dir]++
	}
	w.entries[clean] = &entry{fp: fp, missing: missing}
	return nil
}

func (w *Watcher) Forget(path string) {
	clean, ok := cleanPath(path)
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, tracked := w.entries[clean]; !tracked {
		return
	}
	delete(w.entries, clean)
	dir := filepath.Dir(clean)
	if w.dirs[dir]--; w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		_ = w.fsw.Remove(dir)
	}
}

// Check compares path against its baseline and emits an event on change.
// Untracked paths are ignored.
func (w *Watcher) Check(path string) {
	clean, ok := cleanPath(path)
	if !ok {
		return
	}
	w.mu.Lock()
	e, tracked := w.entries[clean]
	var snapshot entry
	if tracked {
		snapshot = *e
	}
	w.mu.Unlock()
	if !tracked {
		return
	}

	if evt, ok := w.compare(clean, snapshot); ok {
		w.emit(evt)
	}
}

func (w *Watcher) compare(path string, e entry) (Event, bool) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !e.missing {
			w.update(path, e.fp, true)
			return Event{Path: path, Kind: EventMissing, Prev: e.fp}, true
		}
		return Event{}, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.update(path, e.fp, true)
		return Event{Path: path, Kind: EventMissing, Prev: e.fp}, true
	}

	next := fingerprintFromStat(info, data)
	w.update(path, next, false)
	if !e.missing && next.Hash == e.fp.Hash {
		return Event{}, false
	}
	return Event{Path: path, Kind: EventChanged, Prev: e.fp, Curr: next}, true
}

func (w *Watcher) update(path string, fp Fingerprint, missing bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.entries[path]; ok {
		e.fp = fp
		e.missing = missing
	}
}

func (w *Watcher) emit(evt Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.out <- evt:
	default:
		w.log.Debug("dropping file event, consumer is behind", "path", evt.Path)
	}
}

func cleanPath(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	return abs, true
}

func buildFingerprint(path string, data []byte) Fingerprint {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{Hash: hashBytes(data), Size: int64(len(data))}
	}
	return fingerprintFromStat(info, data)
}

func fingerprintFromStat(info fs.FileInfo, data []byte) Fingerprint {
	return Fingerprint{
		Mod:  info.ModTime(),
		Size: int64(len(data)),
		Hash: hashBytes(data),
	}
}

func hashBytes(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}
