package watch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/deskd/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

type running struct {
	wake   chan Wakeup
	ready  chan struct{}
	cancel context.CancelFunc
	done   chan error
}

func startAdapter(t *testing.T, a Adapter) *running {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := &running{
		wake:   make(chan Wakeup, 16),
		ready:  make(chan struct{}),
		cancel: cancel,
		done:   make(chan error, 1),
	}
	var once sync.Once
	go func() {
		r.done <- a.Run(ctx, r.wake, func() { once.Do(func() { close(r.ready) }) })
	}()
	t.Cleanup(cancel)
	return r
}

// runAdapter starts a and waits until it is registered.
func runAdapter(t *testing.T, a Adapter) (chan Wakeup, context.CancelFunc, <-chan error) {
	t.Helper()
	r := startAdapter(t, a)
	select {
	case <-r.ready:
	case <-time.After(waitFor):
		t.Fatal("adapter never became ready")
	}
	return r.wake, r.cancel, r.done
}

func expectWake(t *testing.T, wake <-chan Wakeup) Wakeup {
	t.Helper()
	select {
	case w := <-wake:
		return w
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for wakeup")
		return Wakeup{}
	}
}

func expectNoWake(t *testing.T, wake <-chan Wakeup, d time.Duration) {
	t.Helper()
	select {
	case w := <-wake:
		t.Fatalf("unexpected wakeup: %+v", w)
	case <-time.After(d):
	}
}

func expectDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitFor):
		t.Fatal("adapter did not stop")
		return nil
	}
}

func TestChanAdapter(t *testing.T) {
	ch := make(chan string)
	wake, _, done := runAdapter(t, NewChanAdapter("test", ch))

	ch <- "one"
	w := expectWake(t, wake)
	assert.Equal(t, Wakeup{Source: "test", Detail: "one"}, w)

	close(ch)
	assert.NoError(t, expectDone(t, done), "closing the channel ends the stream")
}

func TestTickerAdapter(t *testing.T) {
	wake, cancel, done := runAdapter(t, NewTickerAdapter("poll", 10*time.Millisecond))

	expectWake(t, wake)
	expectWake(t, wake)
	cancel()
	assert.NoError(t, expectDone(t, done))
}

func TestFileAdapterCoalescesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brightness")
	require.NoError(t, os.WriteFile(path, []byte("1"), 0644))

	a, err := NewFileAdapter("backlight", FileOptions{Paths: []string{path}, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	wake, _, _ := runAdapter(t, a)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('0' + i)}, 0644))
	}

	w := expectWake(t, wake)
	assert.Equal(t, "backlight", w.Source)
	assert.Equal(t, path, w.Detail)
	expectNoWake(t, wake, 150*time.Millisecond)
}

func TestFileAdapterIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	a, err := NewFileAdapter("cliphist", FileOptions{Paths: []string{path}, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	wake, _, _ := runAdapter(t, a)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0644))
	expectNoWake(t, wake, 150*time.Millisecond)

	// Atomic replacement through rename is still seen.
	tmp := filepath.Join(dir, "db.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("new"), 0644))
	require.NoError(t, os.Rename(tmp, path))
	expectWake(t, wake)
}

func TestFileAdapterRecursive(t *testing.T) {
	root := t.TempDir()
	a, err := NewFileAdapter("apps", FileOptions{
		Paths:     []string{root},
		Recursive: true,
		Debounce:  20 * time.Millisecond,
		Filter:    func(p string) bool { return filepath.Ext(p) == ".desktop" || filepath.Ext(p) == "" },
	})
	require.NoError(t, err)
	wake, _, _ := runAdapter(t, a)

	sub := filepath.Join(root, "vendor")
	require.NoError(t, os.Mkdir(sub, 0755))
	expectWake(t, wake)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "app.desktop"), []byte("[Desktop Entry]"), 0644))
	w := expectWake(t, wake)
	assert.Equal(t, filepath.Join(sub, "app.desktop"), w.Detail)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "notes.txt"), []byte("x"), 0644))
	expectNoWake(t, wake, 100*time.Millisecond)
}

func TestNewFileAdapterRejectsBadPaths(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
	}{
		{"no paths", nil},
		{"missing file", []string{filepath.Join(t.TempDir(), "nope")}},
		{"one of several missing", []string{t.TempDir(), filepath.Join(t.TempDir(), "gone", "db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewFileAdapter("missing", FileOptions{Paths: tt.paths})
			require.Error(t, err)
			assert.Nil(t, a)
			assert.True(t, errors.Is(err, errors.ErrCodeConstructionFailed))
		})
	}
}

func TestFileAdapterPathRemovedBeforeRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	a, err := NewFileAdapter("cliphist", FileOptions{Paths: []string{path}})
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	r := startAdapter(t, a)
	err = expectDone(t, r.done)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeTransportFailed))
	select {
	case <-r.ready:
		t.Fatal("ready reported for an adapter that never registered")
	default:
	}
}

type shellExecutor struct{ script string }

func (s shellExecutor) Command(name string, args ...string) *exec.Cmd {
	return exec.Command("sh", "-c", s.script)
}

func (s shellExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "sh", "-c", s.script)
}

func TestLineAdapterFiltersAndEnds(t *testing.T) {
	script := `echo "Event 'change' on sink #1"; echo "Event 'new' on client #4"; echo "Event 'change' on source #2"`
	accept := func(line string) bool { return !strings.Contains(line, "client") }
	a := NewLineAdapter("pactl", shellExecutor{script: script}, accept, "pactl", "subscribe")

	wake, _, done := runAdapter(t, a)
	assert.Equal(t, "Event 'change' on sink #1", expectWake(t, wake).Detail)
	assert.Equal(t, "Event 'change' on source #2", expectWake(t, wake).Detail)

	err := expectDone(t, done)
	require.Error(t, err, "process exit ends the stream with an error")
	assert.True(t, errors.Is(err, errors.ErrCodeTransportFailed))
}

func TestLineAdapterCancel(t *testing.T) {
	a := NewLineAdapter("pactl", shellExecutor{script: "while true; do sleep 1; done"}, nil, "pactl", "subscribe")
	_, cancel, done := runAdapter(t, a)
	cancel()
	assert.NoError(t, expectDone(t, done))
}

type fakeBus struct {
	mu      sync.Mutex
	matches int
	chans   []chan<- *dbus.Signal
}

func (f *fakeBus) AddMatchSignal(options ...dbus.MatchOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches++
	return nil
}

func (f *fakeBus) RemoveMatchSignal(options ...dbus.MatchOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches--
	return nil
}

func (f *fakeBus) Signal(ch chan<- *dbus.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chans = append(f.chans, ch)
}

func (f *fakeBus) RemoveSignal(ch chan<- *dbus.Signal) {}

func (f *fakeBus) emit(sig *dbus.Signal) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.chans {
		ch <- sig
	}
	return len(f.chans) > 0
}

func TestSignalAdapter(t *testing.T) {
	bus := &fakeBus{}
	accept := func(sig *dbus.Signal) bool { return sig.Path == "/org/freedesktop/UPower/devices/DisplayDevice" }
	a := NewSignalAdapter("upower", bus, accept,
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"))

	wake, cancel, done := runAdapter(t, a)
	bus.mu.Lock()
	assert.Equal(t, 1, bus.matches, "match rule is added before ready")
	assert.Len(t, bus.chans, 1)
	bus.mu.Unlock()

	bus.emit(&dbus.Signal{Path: "/org/bluez/hci0", Name: "org.freedesktop.DBus.Properties.PropertiesChanged"})
	bus.emit(&dbus.Signal{Path: "/org/freedesktop/UPower/devices/DisplayDevice", Name: "org.freedesktop.DBus.Properties.PropertiesChanged"})

	w := expectWake(t, wake)
	assert.Equal(t, "org.freedesktop.DBus.Properties.PropertiesChanged", w.Detail)
	expectNoWake(t, wake, 50*time.Millisecond)

	cancel()
	assert.NoError(t, expectDone(t, done))
	bus.mu.Lock()
	assert.Equal(t, 0, bus.matches, "match rule is removed on exit")
	bus.mu.Unlock()
}

func TestMerge(t *testing.T) {
	a := make(chan string)
	b := make(chan string)
	m := Merge(NewChanAdapter("a", a), NewChanAdapter("b", b))
	assert.Equal(t, "a+b", m.Name())

	wake, _, done := runAdapter(t, m)
	a <- "x"
	b <- "y"
	sources := map[string]bool{expectWake(t, wake).Source: true, expectWake(t, wake).Source: true}
	assert.Equal(t, map[string]bool{"a": true, "b": true}, sources)

	close(a)
	b <- "z"
	expectWake(t, wake)
	close(b)
	assert.NoError(t, expectDone(t, done), "merge ends when every adapter ends")
}

// gatedAdapter registers once open is closed, then idles until canceled.
type gatedAdapter struct {
	name string
	open chan struct{}
}

func (g gatedAdapter) Name() string { return g.name }
func (g gatedAdapter) Run(ctx context.Context, wake chan<- Wakeup, ready func()) error {
	select {
	case <-g.open:
	case <-ctx.Done():
		return nil
	}
	ready()
	<-ctx.Done()
	return nil
}

func TestMergeReadyAfterEveryAdapter(t *testing.T) {
	first := gatedAdapter{name: "first", open: make(chan struct{})}
	second := gatedAdapter{name: "second", open: make(chan struct{})}
	r := startAdapter(t, Merge(first, second))

	notReady := func() {
		t.Helper()
		select {
		case <-r.ready:
			t.Fatal("merge ready before every adapter registered")
		case <-time.After(50 * time.Millisecond):
		}
	}
	notReady()
	close(first.open)
	notReady()
	close(second.open)

	select {
	case <-r.ready:
	case <-time.After(waitFor):
		t.Fatal("merge never became ready")
	}
	r.cancel()
	assert.NoError(t, expectDone(t, r.done))
}

func TestMergeStopsOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	removed, err := NewFileAdapter("file", FileOptions{Paths: []string{path}})
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	r := startAdapter(t, Merge(NewTickerAdapter("poll", time.Hour), removed))
	err = expectDone(t, r.done)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeTransportFailed))
}
