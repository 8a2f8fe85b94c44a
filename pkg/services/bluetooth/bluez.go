package bluetooth

import (
	"context"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/pkg/sysbus"
)

const (
	bluezDest        = "org.bluez"
	adapterInterface = "org.bluez.Adapter1"
	deviceInterface  = "org.bluez.Device1"
	batteryInterface = "org.bluez.Battery1"
)

// BlueZ is a Controller backed by the org.bluez system bus service.
type BlueZ struct {
	bus *sysbus.Bus
}

// NewBlueZ returns a Controller using bus.
func NewBlueZ(bus *sysbus.Bus) *BlueZ {
	return &BlueZ{bus: bus}
}

func (b *BlueZ) Read(ctx context.Context) (Reading, error) {
	objects, err := b.bus.ManagedObjects(ctx, bluezDest)
	if err != nil {
		return Reading{}, err
	}
	return readingFrom(objects), nil
}

func (b *BlueZ) SetPowered(ctx context.Context, powered bool) error {
	path, err := b.adapterPath(ctx)
	if err != nil {
		return err
	}
	return b.bus.Set(ctx, bluezDest, path, adapterInterface, "Powered", powered)
}

func (b *BlueZ) Connect(ctx context.Context, address string) error {
	path, err := b.adapterPath(ctx)
	if err != nil {
		return err
	}
	return b.bus.Call(ctx, bluezDest, devicePath(path, address), deviceInterface+".Connect")
}

func (b *BlueZ) Disconnect(ctx context.Context, address string) error {
	path, err := b.adapterPath(ctx)
	if err != nil {
		return err
	}
	return b.bus.Call(ctx, bluezDest, devicePath(path, address), deviceInterface+".Disconnect")
}

func (b *BlueZ) adapterPath(ctx context.Context) (dbus.ObjectPath, error) {
	objects, err := b.bus.ManagedObjects(ctx, bluezDest)
	if err != nil {
		return "", err
	}
	path, ok := defaultAdapter(objects)
	if !ok {
		return "", errors.New(errors.ErrCodeServiceUnavailable, "no bluetooth adapter present")
	}
	return path, nil
}

// defaultAdapter picks the adapter with the lowest object path, which is
// hci0 on a typical system.
func defaultAdapter(objects map[dbus.ObjectPath]map[string]sysbus.Properties) (dbus.ObjectPath, bool) {
	var adapters []string
	for path, ifaces := range objects {
		if _, ok := ifaces[adapterInterface]; ok {
			adapters = append(adapters, string(path))
		}
	}
	if len(adapters) == 0 {
		return "", false
	}
	sort.Strings(adapters)
	return dbus.ObjectPath(adapters[0]), true
}

func readingFrom(objects map[dbus.ObjectPath]map[string]sysbus.Properties) Reading {
	adapterPath, ok := defaultAdapter(objects)
	if !ok {
		return Reading{}
	}
	adapter := objects[adapterPath][adapterInterface]
	r := Reading{
		Present:    true,
		Powered:    adapter.Bool("Powered"),
		PowerState: adapter.String("PowerState"),
	}

	for _, ifaces := range objects {
		props, ok := ifaces[deviceInterface]
		if !ok || dbus.ObjectPath(props.String("Adapter")) != adapterPath {
			continue
		}
		device := Device{
			Address:           props.String("Address"),
			Alias:             props.String("Alias"),
			Name:              props.String("Name"),
			Icon:              props.String("Icon"),
			Paired:            props.Bool("Paired"),
			Trusted:           props.Bool("Trusted"),
			Connected:         props.Bool("Connected"),
			BatteryPercentage: -1,
		}
		if battery, ok := ifaces[batteryInterface]; ok {
			if pct, ok := battery.Int64("Percentage"); ok {
				device.BatteryPercentage = int(pct)
			}
		}
		r.Devices = append(r.Devices, device)
	}
	return r
}

func devicePath(adapter dbus.ObjectPath, address string) dbus.ObjectPath {
	return dbus.ObjectPath(string(adapter) + "/dev_" + strings.ReplaceAll(strings.ToUpper(address), ":", "_"))
}

// bluezPropertiesSignal accepts property changes of adapters, devices and
// device batteries.
func bluezPropertiesSignal(sig *dbus.Signal) bool {
	if !strings.HasPrefix(string(sig.Path), "/org/bluez") || len(sig.Body) == 0 {
		return false
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return false
	}
	switch iface {
	case adapterInterface, deviceInterface, batteryInterface:
		return true
	}
	return false
}
