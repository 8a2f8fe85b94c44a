package battery

import (
	"context"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/pkg/sysbus"
)

const (
	upowerDest      = "org.freedesktop.UPower"
	upowerInterface = "org.freedesktop.UPower.Device"
	displayDevice   = dbus.ObjectPath("/org/freedesktop/UPower/devices/DisplayDevice")
)

// UPowerDevice reads the UPower DisplayDevice over D-Bus.
type UPowerDevice struct {
	bus *sysbus.Bus
}

// NewUPowerDevice returns a Device backed by bus.
func NewUPowerDevice(bus *sysbus.Bus) *UPowerDevice {
	return &UPowerDevice{bus: bus}
}

func (d *UPowerDevice) Properties(ctx context.Context) (Reading, error) {
	props, err := d.bus.GetAll(ctx, upowerDest, displayDevice, upowerInterface)
	if err != nil {
		return Reading{}, err
	}
	return readingFrom(props)
}

func readingFrom(props sysbus.Properties) (Reading, error) {
	percentage, ok := props.Float64("Percentage")
	if !ok {
		return Reading{}, errors.DataInvalid("UPower Percentage", errors.New(errors.ErrCodeDataInvalid, "missing or not a number"))
	}
	state, ok := props.Int64("State")
	if !ok {
		return Reading{}, errors.DataInvalid("UPower State", errors.New(errors.ErrCodeDataInvalid, "missing or not a number"))
	}

	r := Reading{
		Present:    props.Bool("IsPresent"),
		State:      State(state),
		Percentage: percentage,
		IconName:   props.String("IconName"),
	}
	r.TimeToEmpty, _ = props.Int64("TimeToEmpty")
	r.TimeToFull, _ = props.Int64("TimeToFull")
	r.Energy, _ = props.Float64("Energy")
	r.EnergyFull, _ = props.Float64("EnergyFull")
	r.EnergyRate, _ = props.Float64("EnergyRate")
	return r, nil
}

// upowerSignal accepts property changes of the display device only.
func upowerSignal(sig *dbus.Signal) bool {
	return sig.Path == displayDevice
}
