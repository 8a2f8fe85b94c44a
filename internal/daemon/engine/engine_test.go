package engine

import (
	"context"
	"testing"
	"time"

	"github.com/grovetools/deskd/config"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/logging"
	"github.com/grovetools/deskd/pkg/service"
	"github.com/grovetools/deskd/pkg/snapshot"
	"github.com/grovetools/deskd/pkg/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	N int `json:"n"`
}

func newCounter(name string) *service.Base[counter] {
	store := snapshot.NewStore(counter{}, "n")
	sync := service.SyncFunc(func(ctx context.Context) error { return nil })
	return service.NewBase(name, store, sync, watch.NewChanAdapter(name, make(chan string)))
}

func TestConstructIsolatesFailures(t *testing.T) {
	eng := New(logging.NewLogger("test"))
	eng.Construct(context.Background(), []Factory{
		{Name: "ok", New: func(ctx context.Context) (service.Service, error) { return newCounter("ok"), nil }},
		{Name: "broken", New: func(ctx context.Context) (service.Service, error) {
			return nil, errors.ConstructionFailed("broken", errors.New(errors.ErrCodeCommandNotFound, "command not found: brightnessctl"))
		}},
		{Name: "panics", New: func(ctx context.Context) (service.Service, error) { panic("boom") }},
		{Name: "after", New: func(ctx context.Context) (service.Service, error) { return newCounter("after"), nil }},
	})

	assert.Equal(t, []string{"ok", "broken", "panics", "after"}, eng.Names())
	assert.Equal(t, []string{"after", "ok"}, eng.Available())

	statuses := eng.Statuses()
	require.Len(t, statuses, 4)
	assert.True(t, statuses[0].Available)
	assert.Equal(t, []string{"n", snapshot.Changed}, statuses[0].Channels)
	assert.False(t, statuses[1].Available)
	assert.Equal(t, "unavailable", statuses[1].State)
	assert.Equal(t, string(errors.ErrCodeConstructionFailed), statuses[1].ErrorCode)
	assert.Contains(t, statuses[2].Error, "boom")

	_, err := eng.Service("broken")
	assert.True(t, errors.Is(err, errors.ErrCodeServiceUnavailable))
	_, err = eng.Service("missing")
	assert.True(t, errors.Is(err, errors.ErrCodeServiceNotFound))

	snaps := eng.Snapshots()
	assert.Len(t, snaps, 2)
	assert.Equal(t, counter{}, snaps["ok"])
}

func TestStartRunsUntilCanceled(t *testing.T) {
	eng := New(logging.NewLogger("test"))
	a, b := newCounter("a"), newCounter("b")
	eng.Register(a)
	eng.Register(b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eng.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return a.State() == service.Idle && b.State() == service.Idle
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
	assert.Equal(t, service.Stopped, a.State())
	assert.Equal(t, service.Stopped, b.State())
}

func TestFactoriesHonorEnabled(t *testing.T) {
	cfg := configWithDisabled("bluetooth", "audio")
	var names []string
	for _, f := range Factories(cfg, nil) {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"battery", "brightness", "clipboard", "applications"}, names)
}

func configWithDisabled(names ...string) *config.Config {
	cfg := config.Default()
	off := false
	for _, name := range names {
		switch name {
		case "bluetooth":
			cfg.Services.Bluetooth.Enabled = &off
		case "audio":
			cfg.Services.Audio.Enabled = &off
		}
	}
	return cfg
}
