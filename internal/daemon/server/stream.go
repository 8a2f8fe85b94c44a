package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/pkg/daemon"
	"github.com/grovetools/deskd/pkg/service"
	"github.com/grovetools/deskd/pkg/snapshot"
)

// subscribe opens feeds for a stream request. An empty serviceName means
// every available service that has channel. The returned channel closes
// when ctx ends or every feed has closed.
func (s *Server) subscribe(ctx context.Context, serviceName, channel string) (<-chan daemon.Event, error) {
	if channel == "" {
		channel = snapshot.Changed
	}

	var services []service.Service
	if serviceName != "" {
		svc, err := s.engine.Service(serviceName)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	} else {
		for _, name := range s.engine.Available() {
			if svc, err := s.engine.Service(name); err == nil {
				services = append(services, svc)
			}
		}
	}

	type namedFeed struct {
		name string
		feed *service.Feed
	}
	var feeds []namedFeed
	for _, svc := range services {
		feed, err := svc.Subscribe(channel)
		if err != nil {
			if serviceName != "" {
				return nil, err
			}
			continue
		}
		feeds = append(feeds, namedFeed{name: svc.Name(), feed: feed})
	}
	if len(feeds) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("no service has channel '%s'", channel))
	}

	events := make(chan daemon.Event)
	var wg sync.WaitGroup
	for _, nf := range feeds {
		wg.Add(1)
		go func(name string, feed *service.Feed) {
			defer wg.Done()
			defer feed.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case snap, ok := <-feed.C():
					if !ok {
						return
					}
					raw, err := json.Marshal(snap)
					if err != nil {
						s.logger.WithError(err).WithField("service", name).Error("Failed to marshal snapshot")
						continue
					}
					select {
					case events <- daemon.Event{Service: name, Channel: feed.Channel, Snapshot: raw}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(nf.name, nf.feed)
	}
	go func() {
		wg.Wait()
		close(events)
	}()
	return events, nil
}

// handleStream sends future publishes as Server-Sent Events. Only changes
// after the subscription are sent; there is no initial snapshot.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	events, err := s.subscribe(r.Context(), r.URL.Query().Get("service"), r.URL.Query().Get("channel"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()
	s.logger.Debug("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal event")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	// The socket is owner-only; there is no browser origin to check.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket sends the same events as handleStream over a websocket.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := s.subscribe(ctx, r.URL.Query().Get("service"), r.URL.Query().Get("channel"))
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reads only detect the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
