package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/deskd/errors"
)

// RemoteClient implements Client over the daemon's HTTP API on a Unix
// socket.
type RemoteClient struct {
	httpClient *http.Client
	socketPath string
}

// NewRemoteClient creates a RemoteClient for socketPath.
func NewRemoteClient(socketPath string) *RemoteClient {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}

	return &RemoteClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		socketPath: socketPath,
	}
}

// baseURL is the dummy host used for Unix socket HTTP requests.
// The actual connection goes through the Unix socket, not this URL.
const baseURL = "http://unix"

func (c *RemoteClient) get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, target)
}

func (c *RemoteClient) do(req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to reach deskd daemon").
			WithDetail("path", req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return errors.Wrap(err, errors.ErrCodeDataInvalid, "failed to decode daemon response").
			WithDetail("path", req.URL.Path)
	}
	return nil
}

// decodeError turns an error body back into a deskd error with the same
// code.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body ErrorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Error.Code == "" {
		return errors.New(errors.ErrCodeInternal, fmt.Sprintf("daemon returned status %d", resp.StatusCode)).
			WithDetail("body", strings.TrimSpace(string(data)))
	}
	deskErr := errors.New(errors.ErrorCode(body.Error.Code), body.Error.Message)
	for k, v := range body.Error.Details {
		deskErr.WithDetail(k, v)
	}
	return deskErr
}

func (c *RemoteClient) Services(ctx context.Context) ([]ServiceStatus, error) {
	var statuses []ServiceStatus
	if err := c.get(ctx, "/api/services", &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

func (c *RemoteClient) State(ctx context.Context) (map[string]json.RawMessage, error) {
	var state map[string]json.RawMessage
	if err := c.get(ctx, "/api/state", &state); err != nil {
		return nil, err
	}
	return state, nil
}

func (c *RemoteClient) ServiceState(ctx context.Context, service string) (json.RawMessage, error) {
	var state json.RawMessage
	if err := c.get(ctx, "/api/state/"+url.PathEscape(service), &state); err != nil {
		return nil, err
	}
	return state, nil
}

func (c *RemoteClient) Config(ctx context.Context) (*RunningConfig, error) {
	var cfg RunningConfig
	if err := c.get(ctx, "/api/config", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *RemoteClient) Command(ctx context.Context, service, command string, params map[string]any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to encode command parameters")
	}
	path := "/api/" + url.PathEscape(service) + "/" + url.PathEscape(command)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result CommandResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return result.Result, nil
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func streamQuery(service, channel string) string {
	q := url.Values{}
	if service != "" {
		q.Set("service", service)
	}
	if channel != "" {
		q.Set("channel", channel)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// Stream subscribes through Server-Sent Events.
func (c *RemoteClient) Stream(ctx context.Context, service, channel string) (<-chan Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/stream"+streamQuery(service, channel), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	// Use a separate client with no timeout for streaming
	streamTransport := &http.Transport{
		DialContext: func(dialCtx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(dialCtx, "unix", c.socketPath)
		},
	}
	streamClient := &http.Client{Transport: streamTransport}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to stream")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	ch := make(chan Event, 10)
	go func() {
		defer resp.Body.Close()
		defer close(ch)
		defer streamTransport.CloseIdleConnections()
		readEvents(ctx, resp.Body, ch)
	}()
	return ch, nil
}

// readEvents parses SSE data lines from r into ch until r ends.
func readEvents(ctx context.Context, r io.Reader, ch chan<- Event) {
	scanner := bufio.NewScanner(r)
	// Clipboard snapshots carry image payloads.
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			continue // Skip malformed data
		}
		select {
		case ch <- event:
		case <-ctx.Done():
			return
		}
	}
}

// StreamWebsocket subscribes through the websocket endpoint.
func (c *RemoteClient) StreamWebsocket(ctx context.Context, service, channel string) (<-chan Event, error) {
	dialer := websocket.Dialer{
		NetDialContext: func(dialCtx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(dialCtx, "unix", c.socketPath)
		},
		HandshakeTimeout: 5 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, "ws://unix/api/ws"+streamQuery(service, channel), nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to websocket")
	}

	ch := make(chan Event, 10)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(ch)
		defer conn.Close()
		for {
			var event Event
			if err := conn.ReadJSON(&event); err != nil {
				return
			}
			select {
			case ch <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
