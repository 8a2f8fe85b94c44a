package sysbus

import "github.com/godbus/dbus/v5"

// Properties is one interface's property map.
type Properties map[string]dbus.Variant

// String returns a string property, or "" when absent or mistyped.
func (p Properties) String(key string) string {
	if v, ok := p[key]; ok {
		switch s := v.Value().(type) {
		case string:
			return s
		case dbus.ObjectPath:
			return string(s)
		}
	}
	return ""
}

// Bool returns a boolean property, or false.
func (p Properties) Bool(key string) bool {
	if v, ok := p[key]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

// Float64 returns a numeric property as float64.
func (p Properties) Float64(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.Value().(type) {
	case float64:
		return n, true
	case byte:
		return float64(n), true
	case int16:
		return float64(n), true
	case uint16:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Int64 returns an integer property as int64. Floating point values are
// truncated.
func (p Properties) Int64(key string) (int64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.Value().(type) {
	case byte:
		return int64(n), true
	case int16:
		return int64(n), true
	case uint16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// Has reports whether key is present.
func (p Properties) Has(key string) bool {
	_, ok := p[key]
	return ok
}
