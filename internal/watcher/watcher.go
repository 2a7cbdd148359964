// Package watcher reports source files appearing, changing and disappearing
// below a root directory.
//
// FileWatcher wraps fsnotify with recursive directory registration, glob
// based filtering and an initial scan that reports every matching file that
// already exists as added.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/coco/internal/logging"
)

// FileWatcher watches a directory tree for file changes
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	root     string
	ignores  []string
	filters  []FileFilter
	handlers []ChangeHandler
	logger   logging.Logger
	mutex    sync.RWMutex
	started  bool
	done     chan struct{}
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventAdd EventType = iota
	EventChange
	EventUnlink
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventAdd:
		return "add"
	case EventChange:
		return "change"
	case EventUnlink:
		return "unlink"
	default:
		return "unknown"
	}
}

// FileFilter determines if a file should be reported. It receives the
// absolute path.
type FileFilter func(path string) bool

// ChangeHandler handles one file change event
type ChangeHandler func(event ChangeEvent) error

// NewFileWatcher creates a watcher for the tree below root.
func NewFileWatcher(root string, logger logging.Logger) (*FileWatcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", absRoot)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &FileWatcher{
		watcher:  watcher,
		root:     absRoot,
		filters:  make([]FileFilter, 0),
		handlers: make([]ChangeHandler, 0),
		logger:   logger.WithComponent("watcher"),
		done:     make(chan struct{}),
	}, nil
}

// Root returns the absolute watch root.
func (fw *FileWatcher) Root() string {
	return fw.root
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// Ignore excludes files and directories matching any of the doublestar
// patterns, given relative to the root.
func (fw *FileWatcher) Ignore(patterns ...string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid ignore pattern %q", p)
		}
	}

	fw.mutex.Lock()
	fw.ignores = append(fw.ignores, patterns...)
	fw.mutex.Unlock()

	fw.AddFilter(IgnoreFilter(fw.root, patterns...))
	return nil
}

// ignoredDir reports whether everything inside dir is ignored.
func (fw *FileWatcher) ignoredDir(dir string) bool {
	rel, err := filepath.Rel(fw.root, dir)
	if err != nil || rel == "." {
		return false
	}

	fw.mutex.RLock()
	defer fw.mutex.RUnlock()

	probe := path.Join(filepath.ToSlash(rel), "_")
	for _, p := range fw.ignores {
		if ok, _ := doublestar.Match(p, probe); ok {
			return true
		}
	}
	return false
}

// Start registers the tree, reports existing files as added and begins
// watching. It returns once the initial scan is done.
func (fw *FileWatcher) Start(ctx context.Context) error {
	if err := fw.addTree(ctx, fw.root); err != nil {
		return err
	}

	fw.logger.Info(ctx, "watcher ready", "root", fw.root)

	fw.mutex.Lock()
	fw.started = true
	fw.mutex.Unlock()

	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	err := fw.watcher.Close()

	fw.mutex.RLock()
	started := fw.started
	fw.mutex.RUnlock()
	if started {
		<-fw.done
	}
	return err
}

// addTree watches dir and every directory below it that is not ignored, and
// emits an add event for each matching file found on the way.
func (fw *FileWatcher) addTree(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			fw.logger.Warn(ctx, err, "skipping unreadable path", "path", p)
			return nil
		}

		if d.IsDir() {
			if fw.ignoredDir(p) {
				return filepath.SkipDir
			}
			if err := fw.watcher.Add(p); err != nil {
				return fmt.Errorf("watching %s: %w", p, err)
			}
			return nil
		}

		if d.Type().IsRegular() {
			fw.emit(ctx, EventAdd, p)
		}
		return nil
	})
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	defer close(fw.done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// Log error but continue watching
			fw.logger.Error(ctx, err, "watcher error")
		}
	}
}

// translate maps an fsnotify operation to the event reported for a file.
// Permission changes are not reported.
func translate(op fsnotify.Op) (EventType, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return EventAdd, true
	case op.Has(fsnotify.Write):
		return EventChange, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return EventUnlink, true
	default:
		return 0, false
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	eventType, ok := translate(event.Op)
	if !ok {
		return
	}

	if eventType == EventAdd {
		info, err := os.Stat(event.Name)
		if err != nil {
			// Gone again before we looked; the remove event follows.
			return
		}
		if info.IsDir() {
			if fw.ignoredDir(event.Name) {
				return
			}
			if err := fw.addTree(ctx, event.Name); err != nil {
				fw.logger.Error(ctx, err, "watching new directory failed", "path", event.Name)
			}
			return
		}
	}

	fw.emit(ctx, eventType, event.Name)
}

func (fw *FileWatcher) emit(ctx context.Context, eventType EventType, p string) {
	fw.mutex.RLock()
	filters := fw.filters
	handlers := fw.handlers
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(p) {
			return
		}
	}

	changeEvent := ChangeEvent{Type: eventType, Path: p}
	if eventType != EventUnlink {
		if info, err := os.Stat(p); err == nil {
			changeEvent.ModTime = info.ModTime()
			changeEvent.Size = info.Size()
		}
	}

	fw.logger.Debug(ctx, "file event", "type", eventType.String(), "path", p)

	for _, handler := range handlers {
		if err := handler(changeEvent); err != nil {
			// Log error but continue processing
			fw.logger.Error(ctx, err, "watcher handler failed", "path", p)
		}
	}
}

// relSlash returns p relative to root with forward slashes, or false when p
// is outside root.
func relSlash(root, p string) (string, bool) {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// GlobFilter accepts files below root whose relative path matches the
// doublestar pattern.
func GlobFilter(root, pattern string) FileFilter {
	return func(p string) bool {
		rel, ok := relSlash(root, p)
		if !ok {
			return false
		}
		matched, err := doublestar.Match(pattern, rel)
		return err == nil && matched
	}
}

// IgnoreFilter rejects files below root whose relative path matches any of
// the doublestar patterns.
func IgnoreFilter(root string, patterns ...string) FileFilter {
	return func(p string) bool {
		rel, ok := relSlash(root, p)
		if !ok {
			return true
		}
		for _, pattern := range patterns {
			if matched, _ := doublestar.Match(pattern, rel); matched {
				return false
			}
		}
		return true
	}
}

// ExtensionFilter accepts files with the given extension.
func ExtensionFilter(ext string) FileFilter {
	return func(p string) bool {
		return filepath.Ext(p) == ext
	}
}
