// Package bluetooth exposes the default BlueZ adapter and its devices as
// a deskd service.
package bluetooth

import (
	"context"
	"sort"

	"github.com/grovetools/deskd/command"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/pkg/service"
	"github.com/grovetools/deskd/pkg/snapshot"
	"github.com/grovetools/deskd/pkg/sysbus"
	"github.com/grovetools/deskd/pkg/watch"
)

// Name is the service name.
const Name = "bluetooth"

// State is the adapter power state.
type State int

const (
	Absent State = iota
	On
	TurningOn
	TurningOff
	Off
)

func (s State) String() string {
	switch s {
	case On:
		return "on"
	case TurningOn:
		return "turning-on"
	case TurningOff:
		return "turning-off"
	case Off:
		return "off"
	default:
		return "absent"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Enabled reports whether the adapter is on or turning on.
func (s State) Enabled() bool {
	return s == On || s == TurningOn
}

// Device is one known Bluetooth device.
type Device struct {
	Address           string `json:"address"`
	Alias             string `json:"alias"`
	Name              string `json:"name"`
	Icon              string `json:"icon"`
	Paired            bool   `json:"paired"`
	Trusted           bool   `json:"trusted"`
	Connected         bool   `json:"connected"`
	BatteryPercentage int    `json:"battery_percentage"`
}

// Data is the bluetooth snapshot.
type Data struct {
	State   State    `json:"state"`
	Devices []Device `json:"devices"`
}

func (d Data) Clone() Data {
	d.Devices = append([]Device(nil), d.Devices...)
	return d
}

// Reading is one read of the adapter and its devices.
type Reading struct {
	Present    bool
	Powered    bool
	PowerState string
	Devices    []Device
}

// Controller talks to the Bluetooth stack.
type Controller interface {
	Read(ctx context.Context) (Reading, error)
	SetPowered(ctx context.Context, powered bool) error
	Connect(ctx context.Context, address string) error
	Disconnect(ctx context.Context, address string) error
}

var (
	stateField = snapshot.NewField("state",
		func(d *Data) State { return d.State }, func(d *Data, v State) { d.State = v })
	devicesField = snapshot.Field[Data, []Device]{
		Name: "devices",
		Get:  func(d *Data) []Device { return d.Devices },
		Set:  func(d *Data, v []Device) { d.Devices = v },
		Equal: func(a, b []Device) bool {
			return snapshot.EqualKeyed(a, b, func(d Device) string { return d.Address }, snapshot.Comparable[Device])
		},
	}
)

// StateOf maps a reading to the adapter state. BlueZ reports PowerState
// on recent versions; older ones only have Powered.
func StateOf(r Reading) State {
	if !r.Present {
		return Absent
	}
	switch r.PowerState {
	case "on":
		return On
	case "off-enabling":
		return TurningOn
	case "on-disabling":
		return TurningOff
	case "off", "off-blocked":
		return Off
	}
	if r.Powered {
		return On
	}
	return Off
}

// Service is the bluetooth service.
type Service struct {
	*service.Base[Data]
	controller Controller
	bus        *sysbus.Bus
}

// New connects to BlueZ on the system bus.
func New(ctx context.Context) (*Service, error) {
	bus, err := sysbus.ConnectSystem()
	if err != nil {
		return nil, errors.ConstructionFailed(Name, err)
	}
	controller := NewBlueZ(bus)
	if _, err := controller.Read(ctx); err != nil {
		bus.Close()
		return nil, errors.ConstructionFailed(Name, err)
	}

	adapter := watch.Merge(
		watch.NewSignalAdapter("bluez-properties", bus.Conn(), bluezPropertiesSignal, sysbus.PropertiesChanged(bluezDest)...),
		watch.NewSignalAdapter("bluez-objects", bus.Conn(), nil, sysbus.ObjectManagerSignals(bluezDest)...),
	)
	s := NewWithController(controller, adapter)
	s.bus = bus
	return s, nil
}

// NewWithController builds the service over any Controller and adapter.
func NewWithController(controller Controller, adapter watch.Adapter) *Service {
	s := &Service{controller: controller}
	store := snapshot.NewStore(Data{State: Absent}, "state", "devices")
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

// Sync re-reads the adapter. Devices are only listed while powered.
func (s *Service) Sync(ctx context.Context) error {
	r, err := s.controller.Read(ctx)
	if err != nil {
		return errors.TransportFailed(Name, "read", err)
	}

	devices := []Device{}
	if r.Present && r.Powered {
		devices = append(devices, r.Devices...)
		sort.Slice(devices, func(i, j int) bool { return devices[i].Address < devices[j].Address })
	}

	pass := s.Store().Begin()
	snapshot.Apply(pass, stateField, StateOf(r))
	snapshot.Apply(pass, devicesField, devices)
	pass.Commit()
	return nil
}

type powerParams struct {
	On bool `json:"on"`
}

type deviceParams struct {
	Address string `json:"address"`
}

// Commands returns the bluetooth commands.
func (s *Service) Commands() []service.Command {
	return []service.Command{
		{
			Name:        "power",
			Description: "Power the adapter on or off (on: bool)",
			Run: func(ctx context.Context, params map[string]any) (any, error) {
				var p powerParams
				if err := service.DecodeParams(params, &p); err != nil {
					return nil, err
				}
				if err := s.controller.SetPowered(ctx, p.On); err != nil {
					return nil, err
				}
				s.Resync()
				return nil, nil
			},
		},
		{
			Name:        "connect",
			Description: "Connect a device (address: MAC)",
			Run:         s.deviceCommand(s.controller.Connect),
		},
		{
			Name:        "disconnect",
			Description: "Disconnect a device (address: MAC)",
			Run:         s.deviceCommand(s.controller.Disconnect),
		},
	}
}

func (s *Service) deviceCommand(op func(context.Context, string) error) func(context.Context, map[string]any) (any, error) {
	return func(ctx context.Context, params map[string]any) (any, error) {
		var p deviceParams
		if err := service.DecodeParams(params, &p); err != nil {
			return nil, err
		}
		if err := command.Validate("macAddress", p.Address); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid device address")
		}
		if err := op(ctx, p.Address); err != nil {
			return nil, err
		}
		s.Resync()
		return nil, nil
	}
}
