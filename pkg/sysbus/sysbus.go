// Package sysbus wraps a D-Bus connection with the typed property reads
// deskd services need.
package sysbus

import (
	"context"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/deskd/errors"
)

const (
	propertiesInterface    = "org.freedesktop.DBus.Properties"
	objectManagerInterface = "org.freedesktop.DBus.ObjectManager"
)

// Bus is a connection to the system or session bus.
type Bus struct {
	conn *dbus.Conn
}

// ConnectSystem opens a private connection to the system bus.
func ConnectSystem() (*Bus, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTransportFailed, "failed to connect to system bus")
	}
	return &Bus{conn: conn}, nil
}

// ConnectSession opens a private connection to the session bus.
func ConnectSession() (*Bus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTransportFailed, "failed to connect to session bus")
	}
	return &Bus{conn: conn}, nil
}

// Conn returns the underlying connection, for signal subscriptions.
func (b *Bus) Conn() *dbus.Conn { return b.conn }

// Close closes the connection. Signal channels registered on it close too.
func (b *Bus) Close() error { return b.conn.Close() }

// GetAll reads every property of iface on the object at path.
func (b *Bus) GetAll(ctx context.Context, dest string, path dbus.ObjectPath, iface string) (Properties, error) {
	var props map[string]dbus.Variant
	err := b.conn.Object(dest, path).
		CallWithContext(ctx, propertiesInterface+".GetAll", 0, iface).
		Store(&props)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTransportFailed, "failed to read properties").
			WithDetail("path", string(path)).
			WithDetail("interface", iface)
	}
	return Properties(props), nil
}

// ManagedObjects lists every object exported by dest through the
// ObjectManager interface at its root.
func (b *Bus) ManagedObjects(ctx context.Context, dest string) (map[dbus.ObjectPath]map[string]Properties, error) {
	var raw map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := b.conn.Object(dest, "/").
		CallWithContext(ctx, objectManagerInterface+".GetManagedObjects", 0).
		Store(&raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTransportFailed, "failed to list managed objects").
			WithDetail("destination", dest)
	}

	objects := make(map[dbus.ObjectPath]map[string]Properties, len(raw))
	for path, ifaces := range raw {
		converted := make(map[string]Properties, len(ifaces))
		for name, props := range ifaces {
			converted[name] = Properties(props)
		}
		objects[path] = converted
	}
	return objects, nil
}

// Set writes a single property.
func (b *Bus) Set(ctx context.Context, dest string, path dbus.ObjectPath, iface, prop string, value any) error {
	call := b.conn.Object(dest, path).
		CallWithContext(ctx, propertiesInterface+".Set", 0, iface, prop, dbus.MakeVariant(value))
	if call.Err != nil {
		return errors.Wrap(call.Err, errors.ErrCodeTransportFailed, "failed to set property").
			WithDetail("path", string(path)).
			WithDetail("property", prop)
	}
	return nil
}

// Call invokes method on the object at path and discards any reply.
func (b *Bus) Call(ctx context.Context, dest string, path dbus.ObjectPath, method string, args ...any) error {
	call := b.conn.Object(dest, path).CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return errors.Wrap(call.Err, errors.ErrCodeTransportFailed, "method call failed").
			WithDetail("path", string(path)).
			WithDetail("method", method)
	}
	return nil
}

// PropertiesChanged returns match options for PropertiesChanged signals
// emitted under sender.
func PropertiesChanged(sender string) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchSender(sender),
		dbus.WithMatchInterface(propertiesInterface),
		dbus.WithMatchMember("PropertiesChanged"),
	}
}

// ObjectManagerSignals returns match options for InterfacesAdded and
// InterfacesRemoved emitted by sender.
func ObjectManagerSignals(sender string) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchSender(sender),
		dbus.WithMatchInterface(objectManagerInterface),
	}
}
