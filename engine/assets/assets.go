package assets

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/texlab/engine/core"
)

// Rewrites closer together than this are reported once.
const DEFAULT_DEBOUNCE = 150 * time.Millisecond

type SourceInfo struct {
	Path        string
	LastChanged time.Time
}

// SourceWatcher reports when a watched source image is rewritten on disk.
// Files are watched through their parent directory so editors that replace
// the file (write to temp, rename) are still seen.
type SourceWatcher struct {
	sources  map[string]SourceInfo
	dirs     map[string]int
	onChange func(path string)
	debounce time.Duration

	mutex sync.Mutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewSourceWatcher(onChange func(path string)) (*SourceWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	sw := &SourceWatcher{
		sources:  make(map[string]SourceInfo),
		dirs:     make(map[string]int),
		onChange: onChange,
		debounce: DEFAULT_DEBOUNCE,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go sw.start()
	return sw, nil
}

// Watch starts reporting changes of the file at path.
func (sw *SourceWatcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	if sw.isClosed {
		return errors.New("source watcher already closed")
	}
	if _, ok := sw.sources[abs]; ok {
		return nil
	}
	dir := filepath.Dir(abs)
	if sw.dirs[dir] == 0 {
		if err := sw.fsnotify.Add(dir); err != nil {
			return err
		}
	}
	sw.dirs[dir]++
	sw.sources[abs] = SourceInfo{Path: abs}
	core.LogDebug("Watching %s for changes.", abs)
	return nil
}

// Unwatch stops reporting changes of path.
func (sw *SourceWatcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	if _, ok := sw.sources[abs]; !ok {
		return nil
	}
	delete(sw.sources, abs)
	dir := filepath.Dir(abs)
	sw.dirs[dir]--
	if sw.dirs[dir] <= 0 {
		delete(sw.dirs, dir)
		if !sw.isClosed {
			return sw.fsnotify.Remove(dir)
		}
	}
	return nil
}

// UnwatchAll drops every watched source.
func (sw *SourceWatcher) UnwatchAll() {
	sw.mutex.Lock()
	paths := make([]string, 0, len(sw.sources))
	for p := range sw.sources {
		paths = append(paths, p)
	}
	sw.mutex.Unlock()
	for _, p := range paths {
		if err := sw.Unwatch(p); err != nil {
			core.LogWarn("Could not stop watching %s: %s", p, err)
		}
	}
}

func (sw *SourceWatcher) Watched() []string {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	out := make([]string, 0, len(sw.sources))
	for p := range sw.sources {
		out = append(out, p)
	}
	return out
}

func (sw *SourceWatcher) start() {
	defer close(sw.stopped)
	for {
		select {
		case e, ok := <-sw.fsnotify.Events:
			if !ok {
				return
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				sw.handleFileEvent(e.Name)
			}

		case err, ok := <-sw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("Source watcher: %s", err)

		case <-sw.done:
			return
		}
	}
}

func (sw *SourceWatcher) handleFileEvent(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}
	now := time.Now()

	sw.mutex.Lock()
	info, ok := sw.sources[abs]
	if !ok || now.Sub(info.LastChanged) < sw.debounce {
		sw.mutex.Unlock()
		return
	}
	info.LastChanged = now
	sw.sources[abs] = info
	onChange := sw.onChange
	sw.mutex.Unlock()

	core.LogInfo("Source %s changed on disk.", abs)
	if onChange != nil {
		onChange(abs)
	}
}

func (sw *SourceWatcher) Close() error {
	sw.mutex.Lock()
	if sw.isClosed {
		sw.mutex.Unlock()
		return nil
	}
	sw.isClosed = true
	sw.mutex.Unlock()

	close(sw.done)
	<-sw.stopped
	return sw.fsnotify.Close()
}

// IsSupportedImage reports whether path has an extension the decoder handles.
func IsSupportedImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return true
	default:
		return false
	}
}
