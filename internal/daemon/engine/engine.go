// Package engine assembles deskd services and runs them.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/pkg/daemon"
	"github.com/grovetools/deskd/pkg/service"
	"github.com/sirupsen/logrus"
)

// Factory constructs one service. A failing factory only disables its
// own service.
type Factory struct {
	Name string
	New  func(ctx context.Context) (service.Service, error)
}

type entry struct {
	name string
	svc  service.Service
	err  error
}

// Engine owns the registry of constructed and failed services.
type Engine struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	logger  *logrus.Entry
}

// New creates an empty Engine.
func New(logger *logrus.Entry) *Engine {
	return &Engine{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Construct runs every factory in order. A factory that errors or panics
// is recorded as unavailable and the rest still run.
func (e *Engine) Construct(ctx context.Context, factories []Factory) {
	for _, f := range factories {
		svc, err := construct(ctx, f)
		if err != nil {
			e.logger.WithField("service", f.Name).WithError(err).Error("Service construction failed")
			e.RegisterFailed(f.Name, err)
			continue
		}
		e.Register(svc)
	}
}

func construct(ctx context.Context, f Factory) (svc service.Service, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeConstructionFailed, fmt.Sprintf("service '%s' panicked during construction: %v", f.Name, r))
		}
	}()
	svc, err = f.New(ctx)
	if err == nil && svc == nil {
		err = errors.New(errors.ErrCodeConstructionFailed, fmt.Sprintf("service '%s' returned nothing", f.Name))
	}
	return svc, err
}

// Register adds a constructed service.
func (e *Engine) Register(svc service.Service) {
	e.add(&entry{name: svc.Name(), svc: svc})
}

// RegisterFailed records a service whose construction failed.
func (e *Engine) RegisterFailed(name string, err error) {
	e.add(&entry{name: name, err: err})
}

func (e *Engine) add(en *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.entries[en.name]; !ok {
		e.order = append(e.order, en.name)
	}
	e.entries[en.name] = en
}

// Start runs every available service and blocks until all have stopped.
// Services stop when ctx is canceled or their watch ends; one stopping
// does not affect the others.
func (e *Engine) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, svc := range e.available() {
		wg.Add(1)
		go func(svc service.Service) {
			defer wg.Done()
			log := e.logger.WithField("service", svc.Name())
			log.Info("Starting service")
			if err := svc.Run(ctx); err != nil {
				log.WithError(err).Error("Service watch ended")
				return
			}
			log.Debug("Service stopped")
		}(svc)
	}
	wg.Wait()
}

func (e *Engine) available() []service.Service {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var result []service.Service
	for _, name := range e.order {
		if en := e.entries[name]; en.svc != nil {
			result = append(result, en.svc)
		}
	}
	return result
}

// Service returns a running service by name.
func (e *Engine) Service(name string) (service.Service, error) {
	e.mu.RLock()
	en, ok := e.entries[name]
	e.mu.RUnlock()
	if !ok {
		return nil, errors.ServiceNotFound(name)
	}
	if en.svc == nil {
		return nil, errors.ServiceUnavailable(name, en.err)
	}
	return en.svc, nil
}

// Names returns all registered service names, failed ones included, in
// registration order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.order...)
}

// Statuses reports every registered service.
func (e *Engine) Statuses() []daemon.ServiceStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	result := make([]daemon.ServiceStatus, 0, len(e.order))
	for _, name := range e.order {
		result = append(result, status(e.entries[name]))
	}
	return result
}

type runStats interface {
	Passes() uint64
	LastError() error
}

func status(en *entry) daemon.ServiceStatus {
	st := daemon.ServiceStatus{Name: en.name}
	if en.svc == nil {
		st.State = "unavailable"
		if en.err != nil {
			st.Error = en.err.Error()
			st.ErrorCode = string(errors.GetCode(en.err))
		}
		return st
	}

	st.Available = true
	st.State = en.svc.State().String()
	st.Channels = en.svc.Channels()
	for _, c := range en.svc.Commands() {
		st.Commands = append(st.Commands, daemon.CommandInfo{Name: c.Name, Description: c.Description})
	}
	if rs, ok := en.svc.(runStats); ok {
		st.Passes = rs.Passes()
		if err := rs.LastError(); err != nil {
			st.LastError = err.Error()
		}
	}
	return st
}

// Snapshots returns the current snapshot of every available service,
// keyed by name.
func (e *Engine) Snapshots() map[string]any {
	result := make(map[string]any)
	for _, svc := range e.available() {
		result[svc.Name()] = svc.Snapshot()
	}
	return result
}

// Available returns the names of running services, sorted.
func (e *Engine) Available() []string {
	var names []string
	for _, svc := range e.available() {
		names = append(names, svc.Name())
	}
	sort.Strings(names)
	return names
}
