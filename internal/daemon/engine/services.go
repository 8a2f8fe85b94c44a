package engine

import (
	"context"

	"github.com/grovetools/deskd/command"
	"github.com/grovetools/deskd/config"
	"github.com/grovetools/deskd/pkg/service"
	"github.com/grovetools/deskd/pkg/services/applications"
	"github.com/grovetools/deskd/pkg/services/audio"
	"github.com/grovetools/deskd/pkg/services/battery"
	"github.com/grovetools/deskd/pkg/services/bluetooth"
	"github.com/grovetools/deskd/pkg/services/brightness"
	"github.com/grovetools/deskd/pkg/services/clipboard"
)

// ServiceNames lists every service deskd knows, in construction order.
var ServiceNames = []string{
	battery.Name,
	bluetooth.Name,
	brightness.Name,
	clipboard.Name,
	applications.Name,
	audio.Name,
}

// Factories returns the factories of the services enabled in cfg.
func Factories(cfg *config.Config, runner *command.Runner) []Factory {
	all := []Factory{
		{Name: battery.Name, New: func(ctx context.Context) (service.Service, error) {
			return wrap(battery.New(ctx, cfg.Services.Battery))
		}},
		{Name: bluetooth.Name, New: func(ctx context.Context) (service.Service, error) {
			return wrap(bluetooth.New(ctx))
		}},
		{Name: brightness.Name, New: func(ctx context.Context) (service.Service, error) {
			return wrap(brightness.New(ctx, cfg.Services.Brightness, cfg.Watch, runner))
		}},
		{Name: clipboard.Name, New: func(ctx context.Context) (service.Service, error) {
			return wrap(clipboard.New(cfg.Services.Clipboard, cfg.Watch, runner))
		}},
		{Name: applications.Name, New: func(ctx context.Context) (service.Service, error) {
			return wrap(applications.New(cfg.Services.Applications, cfg.Watch, runner.Executor()))
		}},
		{Name: audio.Name, New: func(ctx context.Context) (service.Service, error) {
			return wrap(audio.New(ctx, runner))
		}},
	}

	var enabled []Factory
	for _, f := range all {
		if cfg.Services.Enabled(f.Name) {
			enabled = append(enabled, f)
		}
	}
	return enabled
}

// wrap converts a concrete constructor result without producing a non-nil
// interface around a nil pointer.
func wrap[T service.Service](svc T, err error) (service.Service, error) {
	if err != nil {
		return nil, err
	}
	return svc, nil
}
