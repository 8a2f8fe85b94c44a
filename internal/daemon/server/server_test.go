package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/internal/daemon/engine"
	"github.com/grovetools/deskd/logging"
	"github.com/grovetools/deskd/pkg/daemon"
	"github.com/grovetools/deskd/pkg/service"
	"github.com/grovetools/deskd/pkg/snapshot"
	"github.com/grovetools/deskd/pkg/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type level struct {
	Value int `json:"value"`
}

var valueField = snapshot.NewField("value", func(l *level) int { return l.Value }, func(l *level, v int) { l.Value = v })

type levelService struct {
	*service.Base[level]
}

func (s *levelService) Commands() []service.Command {
	return []service.Command{{
		Name:        "set",
		Description: "Set the value",
		Run: func(ctx context.Context, params map[string]any) (any, error) {
			var p struct {
				Value int `json:"value"`
			}
			if err := service.DecodeParams(params, &p); err != nil {
				return nil, err
			}
			snapshot.Update(s.Store(), valueField, p.Value)
			return map[string]int{"value": p.Value}, nil
		},
	}}
}

func newTestServer(t *testing.T) (*httptest.Server, *levelService) {
	t.Helper()
	store := snapshot.NewStore(level{}, "value")
	svc := &levelService{}
	svc.Base = service.NewBase("level", store,
		service.SyncFunc(func(ctx context.Context) error { return nil }),
		watch.NewChanAdapter("level", make(chan string)))

	eng := engine.New(logging.NewLogger("test"))
	eng.Register(svc)
	eng.RegisterFailed("brightness", errors.ConstructionFailed("brightness", errors.New(errors.ErrCodeCommandNotFound, "command not found: brightnessctl")))

	srv := New(eng, logging.NewLogger("test"))
	srv.SetRunningConfig(daemon.RunningConfig{StartedAt: time.Now(), Services: eng.Names()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, svc
}

func decodeError(t *testing.T, resp *http.Response) daemon.APIError {
	t.Helper()
	var body daemon.ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestHealthAndServices(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/services")
	require.NoError(t, err)
	defer resp.Body.Close()
	var statuses []daemon.ServiceStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&statuses))
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Available)
	assert.Equal(t, []daemon.CommandInfo{{Name: "set", Description: "Set the value"}}, statuses[0].Commands)
	assert.False(t, statuses[1].Available)
	assert.Equal(t, string(errors.ErrCodeConstructionFailed), statuses[1].ErrorCode)
}

func TestState(t *testing.T) {
	ts, svc := newTestServer(t)
	snapshot.Update(svc.Store(), valueField, 7)

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	var all map[string]level
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	resp.Body.Close()
	assert.Equal(t, map[string]level{"level": {Value: 7}}, all)

	resp, err = http.Get(ts.URL + "/api/state/level")
	require.NoError(t, err)
	var one level
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&one))
	resp.Body.Close()
	assert.Equal(t, 7, one.Value)

	tests := []struct {
		path   string
		status int
		code   errors.ErrorCode
	}{
		{"/api/state/missing", http.StatusNotFound, errors.ErrCodeServiceNotFound},
		{"/api/state/brightness", http.StatusServiceUnavailable, errors.ErrCodeServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, string(tt.code), decodeError(t, resp).Code)
		})
	}
}

func TestCommand(t *testing.T) {
	ts, svc := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/level/set", "application/json", strings.NewReader(`{"value": 3}`))
	require.NoError(t, err)
	var result daemon.CommandResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"value": 3}`, string(result.Result))
	assert.Equal(t, 3, svc.Store().Get().Value)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown command", "/api/level/reset", "", http.StatusBadRequest},
		{"unknown parameter", "/api/level/set", `{"other": 1}`, http.StatusBadRequest},
		{"malformed body", "/api/level/set", `[1,2]`, http.StatusBadRequest},
		{"unknown service", "/api/nope/set", "", http.StatusNotFound},
		{"failed service", "/api/brightness/set", "", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+tt.path, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestStreamSendsFuturePublishes(t *testing.T) {
	ts, svc := newTestServer(t)
	snapshot.Update(svc.Store(), valueField, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream?service=level&channel=value", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	snapshot.Update(svc.Store(), valueField, 2)

	var event daemon.Event
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
			break
		}
	}
	assert.Equal(t, "level", event.Service)
	assert.Equal(t, "value", event.Channel)
	assert.JSONEq(t, `{"value": 2}`, string(event.Snapshot))
}

func TestStreamRejectsUnknownChannel(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/stream?service=level&channel=nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(errors.ErrCodeInvalidInput), decodeError(t, resp).Code)
}

func TestWebsocket(t *testing.T) {
	ts, svc := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	snapshot.Update(svc.Store(), valueField, 5)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event daemon.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "level", event.Service)
	assert.Equal(t, snapshot.Changed, event.Channel)
	assert.JSONEq(t, `{"value": 5}`, string(event.Snapshot))
}

func TestConfigReloaded(t *testing.T) {
	eng := engine.New(logging.NewLogger("test"))
	srv := New(eng, logging.NewLogger("test"))
	srv.SetRunningConfig(daemon.RunningConfig{ConfigFile: "/tmp/deskd.yml"})
	srv.ConfigReloaded(time.Now(), nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	var cfg daemon.RunningConfig
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Equal(t, "/tmp/deskd.yml", cfg.ConfigFile)
	assert.True(t, cfg.PendingRestart)
	assert.NotNil(t, cfg.ReloadedAt)
}
