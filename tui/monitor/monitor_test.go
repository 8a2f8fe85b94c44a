package monitor

import (
	"context"
	"encoding/json"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/deskd/pkg/daemon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	services []daemon.ServiceStatus
	state    map[string]json.RawMessage
	events   chan daemon.Event
}

func (f *fakeSource) Services(ctx context.Context) ([]daemon.ServiceStatus, error) {
	return f.services, nil
}

func (f *fakeSource) State(ctx context.Context) (map[string]json.RawMessage, error) {
	return f.state, nil
}

func (f *fakeSource) Stream(ctx context.Context, service, channel string) (<-chan daemon.Event, error) {
	return f.events, nil
}

func newTestModel(t *testing.T) (*Model, *fakeSource) {
	t.Helper()
	src := &fakeSource{
		services: []daemon.ServiceStatus{
			{Name: "battery", Available: true, State: "running"},
			{Name: "audio", Available: false, State: "unavailable", Error: "pactl not found"},
		},
		state: map[string]json.RawMessage{
			"battery": json.RawMessage(`{"percent":40}`),
		},
		events: make(chan daemon.Event, 1),
	}
	m, err := New(context.Background(), src)
	require.NoError(t, err)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, src
}

func TestInitialDetailShowsSelectedSnapshot(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Contains(t, m.detailContent(), `"percent": 40`)
	assert.Contains(t, m.View(), "battery")
}

func TestEventReplacesSnapshot(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(eventMsg(daemon.Event{
		Service:  "battery",
		Channel:  "changed",
		Snapshot: json.RawMessage(`{"percent":41}`),
	}))

	require.NotNil(t, cmd, "the model keeps listening after an event")
	assert.Contains(t, m.detailContent(), `"percent": 41`)
	assert.Equal(t, 1, m.counts["battery"])
}

func TestNavigationShowsConstructionError(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	assert.Equal(t, "audio", m.selected())
	assert.Equal(t, "pactl not found", m.detailContent())

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	assert.Equal(t, "battery", m.selected(), "navigation wraps around")
}

func TestStatusRefreshKeepsSelection(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})

	m.Update(statusMsg{statuses: []daemon.ServiceStatus{
		{Name: "audio", Available: true, State: "running"},
		{Name: "battery", Available: true, State: "running"},
	}})

	assert.Equal(t, "audio", m.selected())
	assert.Equal(t, 0, m.cursor)
}

func TestStreamClosed(t *testing.T) {
	m, src := newTestModel(t)
	close(src.events)

	msg := waitForEvent(src.events)()
	_, ok := msg.(streamClosedMsg)
	require.True(t, ok)

	m.Update(msg)
	assert.Contains(t, m.View(), "stream closed")

	_, cmd := m.Update(tickMsg{})
	assert.Nil(t, cmd, "status polling stops once the daemon is gone")
}
