// Package monitor is a live terminal view of every deskd service snapshot.
// It is a debugging tool fed by the daemon stream, not the shell UI.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/deskd/pkg/daemon"
)

const statusInterval = 2 * time.Second

// Source is the part of the daemon client the monitor reads from.
type Source interface {
	Services(ctx context.Context) ([]daemon.ServiceStatus, error)
	State(ctx context.Context) (map[string]json.RawMessage, error)
	Stream(ctx context.Context, service, channel string) (<-chan daemon.Event, error)
}

type eventMsg daemon.Event

type streamClosedMsg struct{}

type statusMsg struct {
	statuses []daemon.ServiceStatus
	err      error
}

type tickMsg time.Time

// Model is the monitor's Bubble Tea model.
type Model struct {
	ctx    context.Context
	source Source
	events <-chan daemon.Event

	services  []daemon.ServiceStatus
	snapshots map[string]json.RawMessage
	updated   map[string]time.Time
	counts    map[string]int

	cursor   int
	viewport viewport.Model
	help     help.Model
	keys     KeyMap

	width, height int
	ready         bool
	streamClosed  bool
	err           error
}

// New loads the current services and snapshots and subscribes to every
// future update pass. The subscription ends with ctx.
func New(ctx context.Context, source Source) (*Model, error) {
	services, err := source.Services(ctx)
	if err != nil {
		return nil, err
	}
	state, err := source.State(ctx)
	if err != nil {
		return nil, err
	}
	events, err := source.Stream(ctx, "", "")
	if err != nil {
		return nil, err
	}

	if state == nil {
		state = make(map[string]json.RawMessage)
	}
	return &Model{
		ctx:       ctx,
		source:    source,
		events:    events,
		services:  services,
		snapshots: state,
		updated:   make(map[string]time.Time),
		counts:    make(map[string]int),
		help:      help.New(),
		keys:      DefaultKeyMap(),
	}, nil
}

// Init starts listening for stream events and status refreshes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick())
}

func waitForEvent(events <-chan daemon.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(event)
	}
}

func tick() tea.Cmd {
	return tea.Tick(statusInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, statusInterval)
		defer cancel()
		statuses, err := m.source.Services(ctx)
		return statusMsg{statuses: statuses, err: err}
	}
}

// Update handles a message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		w, h := m.detailSize()
		if !m.ready {
			m.viewport = viewport.New(w, h)
			m.ready = true
		} else {
			m.viewport.Width, m.viewport.Height = w, h
		}
		m.refreshDetail()
		return m, nil

	case eventMsg:
		m.snapshots[msg.Service] = msg.Snapshot
		m.updated[msg.Service] = time.Now()
		m.counts[msg.Service]++
		if m.selected() == msg.Service {
			m.refreshDetail()
		}
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.streamClosed = true
		return m, nil

	case statusMsg:
		m.err = msg.err
		if msg.err == nil {
			selected := m.selected()
			m.services = msg.statuses
			m.selectByName(selected)
		}
		return m, nil

	case tickMsg:
		if m.streamClosed {
			return m, nil
		}
		return m, tea.Batch(m.fetchStatus(), tick())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.resize()
		case key.Matches(msg, m.keys.Up):
			m.move(-1)
		case key.Matches(msg, m.keys.Down):
			m.move(1)
		case key.Matches(msg, m.keys.HalfPageUp):
			m.viewport.HalfPageUp()
		case key.Matches(msg, m.keys.HalfPageDown):
			m.viewport.HalfPageDown()
		case key.Matches(msg, m.keys.GotoTop):
			m.viewport.GotoTop()
		case key.Matches(msg, m.keys.GotoEnd):
			m.viewport.GotoBottom()
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetchStatus()
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) move(delta int) {
	if len(m.services) == 0 {
		return
	}
	m.cursor = (m.cursor + delta + len(m.services)) % len(m.services)
	m.refreshDetail()
	m.viewport.GotoTop()
}

func (m *Model) selected() string {
	if m.cursor < 0 || m.cursor >= len(m.services) {
		return ""
	}
	return m.services[m.cursor].Name
}

func (m *Model) selectByName(name string) {
	for i, s := range m.services {
		if s.Name == name {
			m.cursor = i
			return
		}
	}
	if m.cursor >= len(m.services) {
		m.cursor = 0
	}
}

func (m *Model) resize() {
	if !m.ready {
		return
	}
	m.viewport.Width, m.viewport.Height = m.detailSize()
}

// refreshDetail renders the selected snapshot into the viewport.
func (m *Model) refreshDetail() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.detailContent())
}

func (m *Model) detailContent() string {
	name := m.selected()
	for _, s := range m.services {
		if s.Name == name && !s.Available {
			return s.Error
		}
	}
	raw, ok := m.snapshots[name]
	if !ok {
		return "no snapshot yet"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
