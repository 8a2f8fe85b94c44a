package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/logging"
	"github.com/sirupsen/logrus"
)

const defaultDebounce = 100 * time.Millisecond

// FileOptions configures a FileAdapter.
type FileOptions struct {
	// Paths are files or directories to watch. A file is watched directly
	// and through its parent directory, so atomic replacement is seen.
	Paths []string
	// Recursive adds every subdirectory of each directory path, including
	// directories created later.
	Recursive bool
	// Debounce is the coalescing window; events inside one window produce
	// a single wakeup at its end.
	Debounce time.Duration
	// Filter, when set, drops events for paths it rejects.
	Filter func(path string) bool
}

// FileAdapter wakes on filesystem changes reported by fsnotify.
type FileAdapter struct {
	name   string
	opts   FileOptions
	logger *logrus.Entry
}

// NewFileAdapter returns a FileAdapter over paths that exist now. A missing
// path fails with CONSTRUCTION_FAILED so the owning service is reported
// unavailable. Nothing is watched until Run.
func NewFileAdapter(name string, opts FileOptions) (*FileAdapter, error) {
	if len(opts.Paths) == 0 {
		return nil, errors.New(errors.ErrCodeConstructionFailed, "no paths to watch").WithDetail("adapter", name)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	cleaned := make([]string, len(opts.Paths))
	for i, p := range opts.Paths {
		cleaned[i] = filepath.Clean(p)
		if _, err := os.Stat(cleaned[i]); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConstructionFailed, "cannot watch path").
				WithDetail("adapter", name).
				WithDetail("path", cleaned[i])
		}
	}
	opts.Paths = cleaned
	return &FileAdapter{
		name:   name,
		opts:   opts,
		logger: logging.NewLogger("watch").WithField("adapter", name),
	}, nil
}

func (a *FileAdapter) Name() string { return a.name }

// Run reports ready once every path is registered with fsnotify. A path
// removed since construction ends Run with TRANSPORT_FAILED.
func (a *FileAdapter) Run(ctx context.Context, wake chan<- Wakeup, ready func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.TransportFailed(a.name, "watch", err)
	}
	defer watcher.Close()

	sc, err := a.addPaths(watcher)
	if err != nil {
		return errors.TransportFailed(a.name, "watch", err)
	}
	ready()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.TransportFailed(a.name, "watch", errors.New(errors.ErrCodeTransportFailed, "watcher closed"))
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if a.opts.Recursive && event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					a.addTree(watcher, event.Name)
				}
			}
			if !a.relevant(event.Name, sc) {
				continue
			}
			a.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			pending = event.Name
			if timer == nil {
				timer = time.NewTimer(a.opts.Debounce)
				timerC = timer.C
			}

		case <-timerC:
			timer, timerC = nil, nil
			if !send(ctx, wake, Wakeup{Source: a.name, Detail: pending}) {
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.TransportFailed(a.name, "watch", errors.New(errors.ErrCodeTransportFailed, "watcher closed"))
			}
			a.logger.WithError(err).Warn("Watcher error")
		}
	}
}

// scope is the set of paths whose events are reported.
type scope struct {
	files map[string]bool
	dirs  []string
}

// addPaths registers every configured path. Files (and their symlink
// targets) are also watched through their parent directory.
func (a *FileAdapter) addPaths(watcher *fsnotify.Watcher) (scope, error) {
	sc := scope{files: make(map[string]bool)}
	for _, path := range a.opts.Paths {
		info, err := os.Stat(path)
		if err != nil {
			return sc, err
		}
		if info.IsDir() {
			sc.dirs = append(sc.dirs, path)
			if a.opts.Recursive {
				a.addTree(watcher, path)
			} else if err := watcher.Add(path); err != nil {
				return sc, err
			}
			continue
		}

		sc.files[path] = true
		if err := watcher.Add(path); err != nil {
			return sc, err
		}
		// fsnotify does not follow symlinks; watch the target's directory too.
		if target, err := filepath.EvalSymlinks(path); err == nil && target != path {
			sc.files[target] = true
			if err := watcher.Add(filepath.Dir(target)); err != nil {
				a.logger.WithError(err).Warnf("Failed to watch symlink target dir %s", filepath.Dir(target))
			}
		}
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			a.logger.WithError(err).Debugf("Failed to watch parent of %s", path)
		}
	}
	return sc, nil
}

func (a *FileAdapter) addTree(watcher *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				a.logger.WithError(err).Debugf("Failed to watch %s", path)
			}
		}
		return nil
	})
}

// relevant drops sibling events seen through a watched file's parent.
func (a *FileAdapter) relevant(path string, sc scope) bool {
	if !sc.files[path] && !sc.contains(path) {
		return false
	}
	if a.opts.Filter != nil && !a.opts.Filter(path) {
		return false
	}
	return true
}

func (sc scope) contains(path string) bool {
	for _, dir := range sc.dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
