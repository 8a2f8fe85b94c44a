// Package battery exposes the UPower display device as a deskd service.
package battery

import (
	"context"
	"fmt"

	"github.com/grovetools/deskd/config"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/pkg/service"
	"github.com/grovetools/deskd/pkg/snapshot"
	"github.com/grovetools/deskd/pkg/sysbus"
	"github.com/grovetools/deskd/pkg/watch"
)

// Name is the service name.
const Name = "battery"

// State is the UPower device state.
type State uint32

const (
	Unknown State = iota
	Charging
	Discharging
	Empty
	FullyCharged
	PendingCharge
	PendingDischarge
)

func (s State) String() string {
	switch s {
	case Charging:
		return "charging"
	case Discharging:
		return "discharging"
	case Empty:
		return "empty"
	case FullyCharged:
		return "fully-charged"
	case PendingCharge:
		return "pending-charge"
	case PendingDischarge:
		return "pending-discharge"
	default:
		return "unknown"
	}
}

// IconMode selects how icon names are produced.
type IconMode string

const (
	// IconsInternal uses the icon name UPower reports.
	IconsInternal IconMode = "internal"
	// IconsAGS builds battery-level-N names from the percentage.
	IconsAGS IconMode = "ags"
)

// Reading is one read of the device properties.
type Reading struct {
	Present     bool
	State       State
	Percentage  float64
	IconName    string
	TimeToEmpty int64
	TimeToFull  int64
	Energy      float64
	EnergyFull  float64
	EnergyRate  float64
}

// Device reads the battery's current properties.
type Device interface {
	Properties(ctx context.Context) (Reading, error)
}

// Data is the battery snapshot.
type Data struct {
	Available     bool    `json:"available"`
	Percent       int64   `json:"percent"`
	Charging      bool    `json:"charging"`
	Charged       bool    `json:"charged"`
	IconName      string  `json:"icon_name"`
	TimeRemaining int64   `json:"time_remaining"`
	Energy        float64 `json:"energy"`
	EnergyFull    float64 `json:"energy_full"`
	EnergyRate    float64 `json:"energy_rate"`
}

// DefaultData is the snapshot before the first successful read.
func DefaultData() Data {
	return Data{Percent: -1, IconName: "battery-missing-symbolic"}
}

var (
	availableField = snapshot.NewField("available",
		func(d *Data) bool { return d.Available }, func(d *Data, v bool) { d.Available = v })
	iconNameField = snapshot.NewField("icon_name",
		func(d *Data) string { return d.IconName }, func(d *Data, v string) { d.IconName = v })
	percentField = snapshot.NewField("percent",
		func(d *Data) int64 { return d.Percent }, func(d *Data, v int64) { d.Percent = v })
	chargingField = snapshot.NewField("charging",
		func(d *Data) bool { return d.Charging }, func(d *Data, v bool) { d.Charging = v })
	chargedField = snapshot.NewField("charged",
		func(d *Data) bool { return d.Charged }, func(d *Data, v bool) { d.Charged = v })
	timeRemainingField = snapshot.NewField("time_remaining",
		func(d *Data) int64 { return d.TimeRemaining }, func(d *Data, v int64) { d.TimeRemaining = v })
	energyField = snapshot.NewField("energy",
		func(d *Data) float64 { return d.Energy }, func(d *Data, v float64) { d.Energy = v })
	energyFullField = snapshot.NewField("energy_full",
		func(d *Data) float64 { return d.EnergyFull }, func(d *Data, v float64) { d.EnergyFull = v })
	energyRateField = snapshot.NewField("energy_rate",
		func(d *Data) float64 { return d.EnergyRate }, func(d *Data, v float64) { d.EnergyRate = v })
)

// Channels lists the per-field channels in snapshot order.
var Channels = []string{
	"available", "icon_name", "percent", "charging", "charged",
	"time_remaining", "energy", "energy_full", "energy_rate",
}

// Compute derives the snapshot from a reading.
func Compute(r Reading, icons IconMode) Data {
	percent := int64(r.Percentage)
	charging := r.State == Charging
	charged := r.State == FullyCharged || (r.State == Charging && percent == 100)

	timeRemaining := r.TimeToEmpty
	if charging {
		timeRemaining = r.TimeToFull
	}

	icon := r.IconName
	if icons == IconsAGS {
		suffix := ""
		if charging {
			suffix = "-charging"
		} else if charged {
			suffix = "-charged"
		}
		icon = fmt.Sprintf("battery-level-%d%s-symbolic", percent/10*10, suffix)
	}

	return Data{
		Available:     r.Present,
		Percent:       percent,
		Charging:      charging,
		Charged:       charged,
		IconName:      icon,
		TimeRemaining: timeRemaining,
		Energy:        r.Energy,
		EnergyFull:    r.EnergyFull,
		EnergyRate:    r.EnergyRate,
	}
}

// Service is the battery service.
type Service struct {
	*service.Base[Data]
	device Device
	icons  IconMode
	bus    *sysbus.Bus
}

// New connects to UPower on the system bus and verifies the display device
// can be read.
func New(ctx context.Context, cfg config.BatteryConfig) (*Service, error) {
	bus, err := sysbus.ConnectSystem()
	if err != nil {
		return nil, errors.ConstructionFailed(Name, err)
	}
	device := NewUPowerDevice(bus)
	if _, err := device.Properties(ctx); err != nil {
		bus.Close()
		return nil, errors.ConstructionFailed(Name, err)
	}

	adapter := watch.NewSignalAdapter("upower", bus.Conn(), upowerSignal, sysbus.PropertiesChanged(upowerDest)...)
	s := NewWithDevice(device, adapter, IconMode(cfg.Icons))
	s.bus = bus
	return s, nil
}

// NewWithDevice builds the service over any Device and adapter.
func NewWithDevice(device Device, adapter watch.Adapter, icons IconMode) *Service {
	if icons == "" {
		icons = IconsInternal
	}
	s := &Service{device: device, icons: icons}
	store := snapshot.NewStore(DefaultData(), Channels...)
	s.Base = service.NewBase(Name, store, service.SyncFunc(s.Sync), adapter)
	return s
}

// Run runs the service and closes the bus connection when it stops.
func (s *Service) Run(ctx context.Context) error {
	if s.bus != nil {
		defer s.bus.Close()
	}
	return s.Base.Run(ctx)
}

// Sync re-reads the device and applies every field in one pass.
func (s *Service) Sync(ctx context.Context) error {
	reading, err := s.device.Properties(ctx)
	if err != nil {
		return errors.TransportFailed(Name, "read", err)
	}
	d := Compute(reading, s.icons)

	pass := s.Store().Begin()
	snapshot.Apply(pass, availableField, d.Available)
	snapshot.Apply(pass, iconNameField, d.IconName)
	snapshot.Apply(pass, percentField, d.Percent)
	snapshot.Apply(pass, chargingField, d.Charging)
	snapshot.Apply(pass, chargedField, d.Charged)
	snapshot.Apply(pass, timeRemainingField, d.TimeRemaining)
	snapshot.Apply(pass, energyField, d.Energy)
	snapshot.Apply(pass, energyFullField, d.EnergyFull)
	snapshot.Apply(pass, energyRateField, d.EnergyRate)
	pass.Commit()
	return nil
}

// Commands returns the battery commands.
func (s *Service) Commands() []service.Command {
	return []service.Command{
		{
			Name:        "refresh",
			Description: "Re-read the display device",
			Run: func(ctx context.Context, params map[string]any) (any, error) {
				s.Resync()
				return nil, nil
			},
		},
	}
}
