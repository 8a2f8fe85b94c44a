// Package applications enumerates desktop entries, tracks how often each
// one is launched and launches them.
package applications

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grovetools/deskd/command"
	"github.com/grovetools/deskd/config"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/logging"
	"github.com/grovetools/deskd/pkg/paths"
	"github.com/grovetools/deskd/pkg/service"
	"github.com/grovetools/deskd/pkg/snapshot"
	"github.com/grovetools/deskd/pkg/watch"
	"github.com/moby/patternmatcher"
	"github.com/sahilm/fuzzy"
	"github.com/sirupsen/logrus"
)

// Name is the service name.
const Name = "applications"

// Data is the applications snapshot, sorted by desktop path.
type Data struct {
	Apps []Application `json:"apps"`
}

func (d Data) Clone() Data {
	d.Apps = append([]Application(nil), d.Apps...)
	return d
}

var appsField = snapshot.Field[Data, []Application]{
	Name: "apps",
	Get:  func(d *Data) []Application { return d.Apps },
	Set:  func(d *Data, v []Application) { d.Apps = v },
	Equal: func(a, b []Application) bool {
		return snapshot.EqualKeyed(a, b,
			func(app Application) string { return app.Desktop },
			func(x, y Application) bool { return x == y })
	},
}

// Launcher starts a desktop file.
type Launcher interface {
	Launch(ctx context.Context, desktop string) error
}

// ProcessLauncher spawns program with the desktop file as its argument
// and does not wait for it.
type ProcessLauncher struct {
	executor command.Executor
	program  string
}

// NewProcessLauncher returns a Launcher running program (usually dex).
func NewProcessLauncher(executor command.Executor, program string) *ProcessLauncher {
	return &ProcessLauncher{executor: executor, program: program}
}

func (l *ProcessLauncher) Launch(ctx context.Context, desktop string) error {
	// The launched program outlives the request, so ctx does not bound it.
	cmd := l.executor.Command(l.program, desktop)
	if err := cmd.Start(); err != nil {
		return errors.CommandFailed(l.program+" "+desktop, err)
	}
	go cmd.Wait()
	return nil
}

// Options configures enumeration.
type Options struct {
	Dirs    []string
	Exclude []string
}

// Service is the applications service.
type Service struct {
	*service.Base[Data]
	opts     Options
	exclude  *patternmatcher.PatternMatcher
	cache    *FrequencyCache
	launcher Launcher
	logger   *logrus.Entry
}

// New enumerates the desktop file directories and watches them.
func New(cfg config.ApplicationsConfig, watchCfg config.WatchConfig, executor command.Executor) (*Service, error) {
	dirs := paths.DesktopFileDirs()
	if len(dirs) == 0 {
		return nil, errors.ConstructionFailed(Name, errors.New(errors.ErrCodeConstructionFailed, "no desktop file directories"))
	}
	adapter, err := watch.NewFileAdapter("desktop-files", watch.FileOptions{
		Paths:     dirs,
		Recursive: true,
		Debounce:  watchCfg.Debounce(),
		Filter:    func(path string) bool { return filepath.Ext(path) == ".desktop" },
	})
	if err != nil {
		return nil, errors.ConstructionFailed(Name, err)
	}
	return NewWithOptions(
		Options{Dirs: dirs, Exclude: cfg.Exclude},
		NewFrequencyCache(paths.FrequencyCachePath()),
		NewProcessLauncher(executor, cfg.Launcher),
		adapter,
	)
}

// NewWithOptions builds the service from explicit directories, cache,
// launcher and adapter. Counts are loaded from the cache, or the cache is
// written with zero counts when it does not exist yet.
func NewWithOptions(opts Options, cache *FrequencyCache, launcher Launcher, adapter watch.Adapter) (*Service, error) {
	s := &Service{
		opts:     opts,
		cache:    cache,
		launcher: launcher,
		logger:   logging.NewLogger("deskd").WithField("service", Name),
	}
	if len(opts.Exclude) > 0 {
		patterns := make([]string, len(opts.Exclude))
		for i, p := range opts.Exclude {
			patterns[i] = strings.TrimPrefix(filepath.ToSlash(p), "/")
		}
		pm, err := patternmatcher.New(patterns)
		if err != nil {
			return nil, errors.ConstructionFailed(Name, errors.ConfigInvalid("applications.exclude: "+err.Error()))
		}
		s.exclude = pm
	}

	apps := s.enumerate()
	if cache.Exists() {
		counts, err := cache.Load()
		if err != nil {
			return nil, errors.ConstructionFailed(Name, err)
		}
		applyCounts(apps, counts)
	} else if err := cache.Save(countsOf(apps)); err != nil {
		return nil, errors.ConstructionFailed(Name, err)
	}

	store := snapshot.NewStore(Data{Apps: apps}, "apps")
	s.Base = service.NewBase(Name, store, service.SyncFunc(s.Sync), adapter)
	return s, nil
}

// Sync re-enumerates desktop files and persists the counts.
func (s *Service) Sync(ctx context.Context) error {
	s.UpdateAll()
	return s.Save()
}

// UpdateAll re-enumerates desktop files. Counts carry over by name from the
// current snapshot, never from disk. Enumeration runs unlocked; the counts
// are read and the list written under one lock so a concurrent Launch is
// never lost.
func (s *Service) UpdateAll() {
	apps := s.enumerate()
	snapshot.Modify(s.Store(), appsField, func(cur []Application) []Application {
		applyCounts(apps, countsOf(cur))
		return apps
	})
}

// Save writes the current counts to the frequency cache.
func (s *Service) Save() error {
	return s.cache.Save(countsOf(s.Store().Get().Apps))
}

// Launch starts the application with the given desktop path and bumps its
// count.
func (s *Service) Launch(ctx context.Context, desktop string) error {
	if err := command.Validate("desktopFile", desktop); err != nil {
		return err
	}
	if _, ok := s.find(desktop); !ok {
		return errors.New(errors.ErrCodeInvalidInput, "unknown application").WithDetail("desktop", desktop)
	}
	if err := s.launcher.Launch(ctx, desktop); err != nil {
		return err
	}
	snapshot.Modify(s.Store(), appsField, func(apps []Application) []Application {
		next := append([]Application(nil), apps...)
		for i := range next {
			if next[i].Desktop == desktop {
				next[i].Frequency++
			}
		}
		return next
	})
	return nil
}

// Query returns the applications matching term, least used first with
// ties broken by name.
func (s *Service) Query(term string) []Application {
	var result []Application
	for _, app := range s.Store().Get().Apps {
		if app.Match(term) {
			result = append(result, app)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return less(result[i], result[j]) })
	return result
}

// FuzzyQuery ranks applications by fuzzy match of term against their
// names, best match first.
func (s *Service) FuzzyQuery(term string) []Application {
	apps := s.Store().Get().Apps
	names := make([]string, len(apps))
	for i, app := range apps {
		names[i] = app.Name
	}
	matches := fuzzy.Find(term, names)
	result := make([]Application, 0, len(matches))
	for _, m := range matches {
		result = append(result, apps[m.Index])
	}
	return result
}

func (s *Service) find(desktop string) (Application, bool) {
	for _, app := range s.Store().Get().Apps {
		if app.Desktop == desktop {
			return app, true
		}
	}
	return Application{}, false
}

// enumerate walks every directory for .desktop files. Unreadable entries
// and hidden or malformed desktop files are skipped.
func (s *Service) enumerate() []Application {
	seen := make(map[string]bool)
	apps := []Application{}
	for _, dir := range s.opts.Dirs {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || filepath.Ext(path) != ".desktop" {
				return nil
			}
			if seen[path] || s.excluded(path) {
				return nil
			}
			seen[path] = true
			app, err := ParseDesktopFile(path)
			if err != nil {
				if err != ErrHidden {
					s.logger.WithError(err).WithField("path", path).Debug("Skipping desktop file")
				}
				return nil
			}
			apps = append(apps, app)
			return nil
		})
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Desktop < apps[j].Desktop })
	return apps
}

// excluded matches path against the exclude patterns. Both sides are
// compared without their leading slash.
func (s *Service) excluded(path string) bool {
	if s.exclude == nil {
		return false
	}
	matched, err := s.exclude.MatchesOrParentMatches(strings.TrimPrefix(filepath.ToSlash(path), "/"))
	return err == nil && matched
}

func countsOf(apps []Application) map[string]uint64 {
	counts := make(map[string]uint64, len(apps))
	for _, app := range apps {
		counts[app.Name] = app.Frequency
	}
	return counts
}

func applyCounts(apps []Application, counts map[string]uint64) {
	for i := range apps {
		if n, ok := counts[apps[i].Name]; ok {
			apps[i].Frequency = n
		}
	}
}

type launchParams struct {
	Desktop string `json:"desktop"`
}

type queryParams struct {
	Term string `json:"term"`
}

// Commands returns the applications commands.
func (s *Service) Commands() []service.Command {
	return []service.Command{
		{
			Name:        "launch",
			Description: "Launch an application (desktop: path of its .desktop file)",
			Run: func(ctx context.Context, params map[string]any) (any, error) {
				var p launchParams
				if err := service.DecodeParams(params, &p); err != nil {
					return nil, err
				}
				return nil, s.Launch(ctx, p.Desktop)
			},
		},
		{
			Name:        "query",
			Description: "List applications matching a substring (term: string)",
			Run: func(ctx context.Context, params map[string]any) (any, error) {
				var p queryParams
				if err := service.DecodeParams(params, &p); err != nil {
					return nil, err
				}
				return s.Query(p.Term), nil
			},
		},
		{
			Name:        "fuzzy_query",
			Description: "Rank applications by fuzzy name match (term: string)",
			Run: func(ctx context.Context, params map[string]any) (any, error) {
				var p queryParams
				if err := service.DecodeParams(params, &p); err != nil {
					return nil, err
				}
				return s.FuzzyQuery(p.Term), nil
			},
		},
		{
			Name:        "save",
			Description: "Write launch counts to the frequency cache",
			Run: func(ctx context.Context, params map[string]any) (any, error) {
				return nil, s.Save()
			},
		},
	}
}
