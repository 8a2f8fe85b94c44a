// Package brightness exposes the screen backlight as a deskd service.
package brightness

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/grovetools/deskd/command"
	"github.com/grovetools/deskd/config"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/pkg/service"
	"github.com/grovetools/deskd/pkg/snapshot"
	"github.com/grovetools/deskd/pkg/watch"
)

// Name is the service name.
const Name = "brightness"

// BacklightRoot is where the kernel lists backlight devices.
const BacklightRoot = "/sys/class/backlight"

// Data is the brightness snapshot.
type Data struct {
	// ScreenValue is the current brightness in [0, 1].
	ScreenValue float64 `json:"screen_value"`
	Max         int64   `json:"max"`
}

// Backend reads and sets the raw backlight value.
type Backend interface {
	Max(ctx context.Context) (int64, error)
	Get(ctx context.Context) (int64, error)
	Set(ctx context.Context, percent float64) error
}

// BrightnessCtl is a Backend running the brightnessctl program.
type BrightnessCtl struct {
	runner *command.Runner
}

// NewBrightnessCtl returns a Backend using runner.
func NewBrightnessCtl(runner *command.Runner) *BrightnessCtl {
	return &BrightnessCtl{runner: runner}
}

func (b *BrightnessCtl) Max(ctx context.Context) (int64, error) {
	return b.runner.Int(ctx, "brightnessctl", "max")
}

func (b *BrightnessCtl) Get(ctx context.Context) (int64, error) {
	return b.runner.Int(ctx, "brightnessctl", "get")
}

func (b *BrightnessCtl) Set(ctx context.Context, percent float64) error {
	return b.runner.Run(ctx, "brightnessctl", "set", FormatPercent(percent), "-q")
}

// FormatPercent renders percent as a brightnessctl argument, e.g. "42.5%".
func FormatPercent(percent float64) string {
	return strconv.FormatFloat(percent, 'f', -1, 64) + "%"
}

// FindBacklight returns the brightness file of the first backlight device
// under root.
func FindBacklight(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeConstructionFailed, "backlight not found").
			WithDetail("path", root)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", errors.New(errors.ErrCodeConstructionFailed, "no backlight device").
			WithDetail("path", root)
	}
	sort.Strings(names)
	return filepath.Join(root, names[0], "brightness"), nil
}

var (
	screenValueField = snapshot.NewField("screen_value",
		func(d *Data) float64 { return d.ScreenValue }, func(d *Data, v float64) { d.ScreenValue = v })
	maxField = snapshot.NewField("max",
		func(d *Data) int64 { return d.Max }, func(d *Data, v int64) { d.Max = v })
)

// Service is the brightness service.
type Service struct {
	*service.Base[Data]
	backend Backend
	max     int64
}

// New reads the maximum brightness, locates the backlight and watches it,
// polling as well when cfg sets a poll interval.
func New(ctx context.Context, cfg config.BrightnessConfig, watchCfg config.WatchConfig, runner *command.Runner) (*Service, error) {
	backend := NewBrightnessCtl(runner)
	path, err := FindBacklight(BacklightRoot)
	if err != nil {
		return nil, errors.ConstructionFailed(Name, err)
	}

	fileAdapter, err := watch.NewFileAdapter("backlight", watch.FileOptions{Paths: []string{path}, Debounce: watchCfg.Debounce()})
	if err != nil {
		return nil, errors.ConstructionFailed(Name, err)
	}
	adapters := []watch.Adapter{fileAdapter}
	if every := cfg.PollEvery(); every > 0 {
		adapters = append(adapters, watch.NewTickerAdapter("backlight-poll", every))
	}
	return NewWithBackend(ctx, backend, watch.Merge(adapters...))
}

// NewWithBackend builds the service over any Backend and adapter. The
// maximum is read once here; failure to read it fails construction.
func NewWithBackend(ctx context.Context, backend Backend, adapter watch.Adapter) (*Service, error) {
	max, err := backend.Max(ctx)
	if err != nil {
		return nil, errors.ConstructionFailed(Name, err)
	}
	if max <= 0 {
		return nil, errors.ConstructionFailed(Name, errors.DataInvalid("brightnessctl max", errors.New(errors.ErrCodeDataInvalid, "maximum must be positive")))
	}

	s := &Service{backend: backend, max: max}
	store := snapshot.NewStore(Data{Max: max}, "screen_value", "max")
	s.Base = service.NewBase(Name, store, service.SyncFunc(s.Sync), adapter)
	return s, nil
}

// Sync reads the current brightness.
func (s *Service) Sync(ctx context.Context) error {
	value, err := s.backend.Get(ctx)
	if err != nil {
		return errors.TransportFailed(Name, "get", err)
	}

	pass := s.Store().Begin()
	snapshot.Apply(pass, maxField, s.max)
	snapshot.Apply(pass, screenValueField, float64(value)/float64(s.max))
	pass.Commit()
	return nil
}

// Set sets the brightness, clamped to [0, 1]. The snapshot follows through
// the backlight watch.
func (s *Service) Set(ctx context.Context, value float64) error {
	if value < 0 {
		value = 0
	} else if value > 1 {
		value = 1
	}
	if err := s.backend.Set(ctx, value*100); err != nil {
		return err
	}
	s.Resync()
	return nil
}

type setParams struct {
	Value float64 `json:"value"`
}

// Commands returns the brightness commands.
func (s *Service) Commands() []service.Command {
	return []service.Command{
		{
			Name:        "set",
			Description: "Set the screen brightness (value: 0..1)",
			Run: func(ctx context.Context, params map[string]any) (any, error) {
				var p setParams
				if err := service.DecodeParams(params, &p); err != nil {
					return nil, err
				}
				return nil, s.Set(ctx, p.Value)
			},
		},
	}
}
