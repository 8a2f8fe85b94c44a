package applications

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/pkg/service"
	"github.com/grovetools/deskd/pkg/snapshot"
	"github.com/grovetools/deskd/pkg/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLauncher struct {
	mu       sync.Mutex
	launched []string
	err      error
}

func (f *fakeLauncher) Launch(ctx context.Context, desktop string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.launched = append(f.launched, desktop)
	return nil
}

func idle() watch.Adapter { return watch.NewChanAdapter("desktop-files", make(chan string)) }

func writeDesktop(t *testing.T, dir, file, body string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func entry(name, exec string) string {
	return "[Desktop Entry]\nType=Application\nName=" + name + "\nExec=" + exec + "\n"
}

func TestParseDesktopFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("application", func(t *testing.T) {
		path := writeDesktop(t, dir, "firefox.desktop", `[Desktop Entry]
Type=Application
Name=Firefox
Name[de]=Firefox Browser
GenericName=Web Browser
Exec=firefox %u
Icon=firefox
StartupWMClass=firefox
Terminal=false
Categories=Network;WebBrowser;

[Desktop Action new-window]
Name=New Window
Exec=firefox --new-window %u
`)
		app, err := ParseDesktopFile(path)
		require.NoError(t, err)
		assert.Equal(t, Application{
			Name:           "Firefox",
			Description:    "Web Browser",
			Executable:     "firefox %u",
			Desktop:        path,
			IconName:       "firefox",
			StartupWMClass: "firefox",
			Type:           TypeApplication,
			Categories:     "Network;WebBrowser;",
		}, app)
	})

	t.Run("link uses URL", func(t *testing.T) {
		path := writeDesktop(t, dir, "docs.desktop", "[Desktop Entry]\nType=Link\nName=Docs\nURL=https://example.org\n")
		app, err := ParseDesktopFile(path)
		require.NoError(t, err)
		assert.Equal(t, TypeLink, app.Type)
		assert.Equal(t, "https://example.org", app.Executable)
	})

	t.Run("terminal", func(t *testing.T) {
		path := writeDesktop(t, dir, "htop.desktop", entry("htop", "htop")+"Terminal=true\n")
		app, err := ParseDesktopFile(path)
		require.NoError(t, err)
		assert.True(t, app.Terminal)
	})

	failures := []struct {
		name string
		file string
		body string
	}{
		{"missing section", "nosection.desktop", "[Other]\nName=x\n"},
		{"directory type", "dir.desktop", "[Desktop Entry]\nType=Directory\nName=Dir\n"},
		{"no exec", "noexec.desktop", "[Desktop Entry]\nType=Application\nName=NoExec\n"},
		{"no name", "noname.desktop", "[Desktop Entry]\nType=Application\nExec=true\n"},
		{"wrong extension", "app.txt", entry("App", "app")},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			path := writeDesktop(t, dir, tt.file, tt.body)
			_, err := ParseDesktopFile(path)
			require.Error(t, err)
		})
	}

	t.Run("hidden", func(t *testing.T) {
		for file, extra := range map[string]string{"hidden.desktop": "Hidden=true\n", "nodisplay.desktop": "NoDisplay=true\n"} {
			path := writeDesktop(t, dir, file, entry("Hidden", "hidden")+extra)
			_, err := ParseDesktopFile(path)
			assert.Equal(t, ErrHidden, err)
		}
	})
}

func TestFrequencyCache(t *testing.T) {
	dir := t.TempDir()
	cache := NewFrequencyCache(filepath.Join(dir, "apps", "apps_frequency.yml"))
	assert.False(t, cache.Exists())

	require.NoError(t, cache.Save(map[string]uint64{"Firefox": 3, "Terminal": 0}))
	assert.True(t, cache.Exists())

	counts, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"Firefox": 3, "Terminal": 0}, counts)

	leftovers, err := filepath.Glob(filepath.Join(dir, "apps", ".apps_frequency-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	require.NoError(t, os.WriteFile(cache.Path(), []byte("- not\n- a map\n"), 0o644))
	_, err = cache.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDataInvalid))
}

func newService(t *testing.T, dirs []string, exclude []string) (*Service, *FrequencyCache, *fakeLauncher) {
	t.Helper()
	cache := NewFrequencyCache(filepath.Join(t.TempDir(), "apps_frequency.yml"))
	launcher := &fakeLauncher{}
	svc, err := NewWithOptions(Options{Dirs: dirs, Exclude: exclude}, cache, launcher, idle())
	require.NoError(t, err)
	return svc, cache, launcher
}

func TestConstructionWritesZeroCounts(t *testing.T) {
	dir := t.TempDir()
	writeDesktop(t, dir, "a.desktop", entry("Alpha", "alpha"))
	writeDesktop(t, dir, "nested/b.desktop", entry("Beta", "beta"))

	svc, cache, _ := newService(t, []string{dir}, nil)
	assert.Len(t, svc.Store().Get().Apps, 2)

	counts, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"Alpha": 0, "Beta": 0}, counts)
}

func TestConstructionLoadsCounts(t *testing.T) {
	dir := t.TempDir()
	writeDesktop(t, dir, "a.desktop", entry("Alpha", "alpha"))
	cache := NewFrequencyCache(filepath.Join(t.TempDir(), "apps_frequency.yml"))
	require.NoError(t, cache.Save(map[string]uint64{"Alpha": 7}))

	svc, err := NewWithOptions(Options{Dirs: []string{dir}}, cache, &fakeLauncher{}, idle())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), svc.Store().Get().Apps[0].Frequency)

	require.NoError(t, os.WriteFile(cache.Path(), []byte("{{{"), 0o644))
	_, err = NewWithOptions(Options{Dirs: []string{dir}}, cache, &fakeLauncher{}, idle())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConstructionFailed))
	assert.True(t, errors.Is(err, errors.ErrCodeDataInvalid))
}

func TestExcludePatterns(t *testing.T) {
	dir := t.TempDir()
	writeDesktop(t, dir, "keep.desktop", entry("Keep", "keep"))
	writeDesktop(t, dir, "wine/notepad.desktop", entry("Notepad", "wine notepad"))
	writeDesktop(t, dir, "skip-me.desktop", entry("Skip", "skip"))

	svc, _, _ := newService(t, []string{dir}, []string{filepath.Join(dir, "wine"), "**/skip-*.desktop"})
	apps := svc.Store().Get().Apps
	require.Len(t, apps, 1)
	assert.Equal(t, "Keep", apps[0].Name)
}

func TestLaunchIncrementsAndPublishes(t *testing.T) {
	dir := t.TempDir()
	path := writeDesktop(t, dir, "a.desktop", entry("Alpha", "alpha"))

	svc, cache, launcher := newService(t, []string{dir}, nil)
	sub, err := svc.Store().Subscribe("apps")
	require.NoError(t, err)
	defer sub.Close()

	ctx := context.Background()
	require.NoError(t, svc.Launch(ctx, path))
	assert.Equal(t, []string{path}, launcher.launched)
	assert.Equal(t, uint64(1), svc.Store().Get().Apps[0].Frequency)
	assert.Len(t, sub.C(), 1)

	// Counts reach disk only on Save.
	counts, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), counts["Alpha"])
	require.NoError(t, svc.Save())
	counts, err = cache.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), counts["Alpha"])

	err = svc.Launch(ctx, filepath.Join(dir, "missing.desktop"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	launcher.err = errors.New(errors.ErrCodeCommandNotFound, "command not found: dex")
	require.Error(t, svc.Launch(ctx, path))
	assert.Equal(t, uint64(1), svc.Store().Get().Apps[0].Frequency)
}

func TestUpdateAllKeepsMemoryCounts(t *testing.T) {
	dir := t.TempDir()
	path := writeDesktop(t, dir, "a.desktop", entry("Alpha", "alpha"))

	svc, cache, _ := newService(t, []string{dir}, nil)
	require.NoError(t, svc.Launch(context.Background(), path))
	require.NoError(t, cache.Save(map[string]uint64{"Alpha": 99}))

	writeDesktop(t, dir, "b.desktop", entry("Beta", "beta"))
	require.NoError(t, svc.Sync(context.Background()))

	apps := svc.Store().Get().Apps
	require.Len(t, apps, 2)
	assert.Equal(t, uint64(1), apps[0].Frequency)
	assert.Equal(t, uint64(0), apps[1].Frequency)

	counts, err := cache.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"Alpha": 1, "Beta": 0}, counts)
}

func TestUpdateAllIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeDesktop(t, dir, "a.desktop", entry("Alpha", "alpha"))
	writeDesktop(t, dir, "b.desktop", entry("Beta", "beta"))

	svc, _, _ := newService(t, []string{dir}, nil)
	require.NoError(t, svc.Launch(context.Background(), path))

	sub, err := svc.Store().Subscribe(snapshot.Changed)
	require.NoError(t, err)
	defer sub.Close()

	svc.UpdateAll()
	first := countsOf(svc.Store().Get().Apps)
	svc.UpdateAll()
	second := countsOf(svc.Store().Get().Apps)

	assert.Equal(t, first, second)
	assert.Equal(t, map[string]uint64{"Alpha": 1, "Beta": 0}, second)
	assert.Empty(t, sub.C(), "re-enumerating unchanged files publishes nothing")
}

func TestLaunchDuringUpdateAllKeepsCounts(t *testing.T) {
	dir := t.TempDir()
	path := writeDesktop(t, dir, "a.desktop", entry("Alpha", "alpha"))
	writeDesktop(t, dir, "b.desktop", entry("Beta", "beta"))
	svc, _, _ := newService(t, []string{dir}, nil)

	const workers, perWorker = 8, 250
	stop := make(chan struct{})
	updated := make(chan struct{})
	go func() {
		defer close(updated)
		for {
			select {
			case <-stop:
				return
			default:
				svc.UpdateAll()
			}
		}
	}()

	var wg sync.WaitGroup
	ctx := context.Background()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				assert.NoError(t, svc.Launch(ctx, path))
			}
		}()
	}
	wg.Wait()
	close(stop)
	<-updated

	counts := countsOf(svc.Store().Get().Apps)
	assert.Equal(t, uint64(workers*perWorker), counts["Alpha"])
	assert.Equal(t, uint64(0), counts["Beta"])
}

func TestQuery(t *testing.T) {
	dir := t.TempDir()
	writeDesktop(t, dir, "term.desktop", entry("Terminal", "foot"))
	writeDesktop(t, dir, "files.desktop", entry("Files", "nautilus"))
	code := writeDesktop(t, dir, "code.desktop", entry("Code", "code --new-window"))
	writeDesktop(t, dir, "zed.desktop", entry("Zed", "zed"))

	svc, _, _ := newService(t, []string{dir}, nil)
	require.NoError(t, svc.Launch(context.Background(), code))

	names := func(apps []Application) []string {
		out := make([]string, 0, len(apps))
		for _, a := range apps {
			out = append(out, a.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Files", "Terminal", "Zed", "Code"}, names(svc.Query("")))
	assert.Equal(t, []string{"Code"}, names(svc.Query("new-window")))
	assert.Equal(t, []string{"Files"}, names(svc.Query("files.desktop")))
	assert.Empty(t, svc.Query("terminal"), "matching is case-sensitive")

	fuzzy := svc.FuzzyQuery("trm")
	require.NotEmpty(t, fuzzy)
	assert.Equal(t, "Terminal", fuzzy[0].Name)
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	path := writeDesktop(t, dir, "a.desktop", entry("Alpha", "alpha"))
	svc, _, launcher := newService(t, []string{dir}, nil)

	ctx := context.Background()
	launch, err := service.FindCommand(svc, "launch")
	require.NoError(t, err)
	_, err = launch.Run(ctx, map[string]any{"desktop": path})
	require.NoError(t, err)
	assert.Equal(t, []string{path}, launcher.launched)

	query, err := service.FindCommand(svc, "query")
	require.NoError(t, err)
	result, err := query.Run(ctx, map[string]any{"term": "Alp"})
	require.NoError(t, err)
	assert.Len(t, result, 1)

	_, err = launch.Run(ctx, map[string]any{"desktop": "relative.desktop"})
	require.Error(t, err)
}
