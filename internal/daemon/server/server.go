// Package server provides the HTTP API of the deskd daemon.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/internal/daemon/engine"
	"github.com/grovetools/deskd/pkg/daemon"
	"github.com/grovetools/deskd/pkg/service"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server serves the engine's services over a Unix socket.
type Server struct {
	logger *logrus.Entry
	server *http.Server
	engine *engine.Engine

	cfgMu         sync.Mutex
	runningConfig daemon.RunningConfig
}

// New creates a Server for eng.
func New(eng *engine.Engine, logger *logrus.Entry) *Server {
	return &Server{
		logger: logger,
		engine: eng,
	}
}

// SetRunningConfig records the configuration the daemon started with.
func (s *Server) SetRunningConfig(cfg daemon.RunningConfig) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.runningConfig = cfg
}

// ConfigReloaded records that the configuration file changed. err is the
// result of loading the new file.
func (s *Server) ConfigReloaded(at time.Time, err error) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.runningConfig.ReloadedAt = &at
	s.runningConfig.PendingRestart = err == nil
	s.runningConfig.ReloadError = ""
	if err != nil {
		s.runningConfig.ReloadError = err.Error()
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/services", s.handleServices)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/state/{service}", s.handleServiceState)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.HandleFunc("GET /api/ws", s.handleWebsocket)
	mux.HandleFunc("POST /api/{service}/{command}", s.handleCommand)

	return mux
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.server = &http.Server{
		Handler: h2c.NewHandler(s.Handler(), &http2.Server{}),
	}

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	err = s.server.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Statuses())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.cfgMu.Lock()
	cfg := s.runningConfig
	s.cfgMu.Unlock()
	writeJSON(w, http.StatusOK, cfg)
}

// handleState returns every available snapshot keyed by service name.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshots())
}

func (s *Server) handleServiceState(w http.ResponseWriter, r *http.Request) {
	svc, err := s.engine.Service(r.PathValue("service"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc.Snapshot())
}

// handleCommand runs a service command. The body, when present, is a JSON
// object of parameters.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	svc, err := s.engine.Service(r.PathValue("service"))
	if err != nil {
		writeError(w, err)
		return
	}
	cmd, err := service.FindCommand(svc, r.PathValue("command"))
	if err != nil {
		writeError(w, err)
		return
	}

	params := map[string]any{}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read request body"))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &params); err != nil {
			writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "request body must be a JSON object"))
			return
		}
	}

	log := s.logger.WithField("service", svc.Name()).WithField("command", cmd.Name)
	result, err := cmd.Run(r.Context(), params)
	if err != nil {
		log.WithError(err).Warn("Command failed")
		writeError(w, err)
		return
	}
	log.Debug("Command succeeded")

	var out daemon.CommandResult
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			writeError(w, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode result"))
			return
		}
		out.Result = raw
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a deskd error code to an HTTP status.
func writeError(w http.ResponseWriter, err error) {
	body := daemon.ErrorBody{Error: daemon.APIError{
		Code:    string(errors.ErrCodeInternal),
		Message: err.Error(),
	}}
	if deskErr, ok := errors.As(err); ok {
		body.Error.Code = string(deskErr.Code)
		body.Error.Message = deskErr.Message
		body.Error.Details = deskErr.Details
		if deskErr.Cause != nil {
			if body.Error.Details == nil {
				body.Error.Details = map[string]interface{}{}
			}
			body.Error.Details["cause"] = deskErr.Cause.Error()
		}
	}
	writeJSON(w, statusFor(errors.ErrorCode(body.Error.Code)), body)
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeServiceNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeDataInvalid:
		return http.StatusBadRequest
	case errors.ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case errors.ErrCodeCommandNotFound, errors.ErrCodeCommandFailed, errors.ErrCodeTransportFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
