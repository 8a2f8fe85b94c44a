package audio

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/grovetools/deskd/errors"
)

const (
	defaultDeviceIcon    = "audio-card-analog-pci"
	defaultRecordingIcon = "record"
	unknownApp           = "unknown"
)

// pactlVolume is one channel of a pactl -f json volume object.
type pactlVolume struct {
	Value uint32 `json:"value"`
}

type pactlDevice struct {
	Index       uint32                 `json:"index"`
	State       string                 `json:"state"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Mute        bool                   `json:"mute"`
	ChannelMap  string                 `json:"channel_map"`
	Volume      map[string]pactlVolume `json:"volume"`
	BaseVolume  pactlVolume            `json:"base_volume"`
	Properties  map[string]string      `json:"properties"`
}

type pactlStream struct {
	Index      uint32                 `json:"index"`
	Mute       bool                   `json:"mute"`
	ChannelMap string                 `json:"channel_map"`
	Volume     map[string]pactlVolume `json:"volume"`
	Properties map[string]string      `json:"properties"`
}

// channelVolumes returns per-channel volumes in channel map order. JSON
// objects are unordered, so channels missing from the map come last in
// name order.
func channelVolumes(channelMap string, volume map[string]pactlVolume) []uint32 {
	result := make([]uint32, 0, len(volume))
	used := make(map[string]bool, len(volume))
	for _, ch := range strings.Split(channelMap, ",") {
		if v, ok := volume[ch]; ok && !used[ch] {
			result = append(result, v.Value)
			used[ch] = true
		}
	}
	var rest []string
	for ch := range volume {
		if !used[ch] {
			rest = append(rest, ch)
		}
	}
	sort.Strings(rest)
	for _, ch := range rest {
		result = append(result, volume[ch].Value)
	}
	return result
}

func prop(props map[string]string, key, fallback string) string {
	if v, ok := props[key]; ok && v != "" {
		return v
	}
	return fallback
}

// ParseSinks parses `pactl -f json list sinks`.
func ParseSinks(out []byte) ([]Stream, error) {
	var devices []pactlDevice
	if err := json.Unmarshal(out, &devices); err != nil {
		return nil, errors.DataInvalid("pactl sinks", err)
	}
	streams := make([]Stream, 0, len(devices))
	for _, d := range devices {
		streams = append(streams, Stream{
			ID:          d.Index,
			Name:        d.Name,
			Description: d.Description,
			Muted:       d.Mute,
			Volume:      channelVolumes(d.ChannelMap, d.Volume),
			IconName:    prop(d.Properties, "device.icon_name", defaultDeviceIcon),
			Kind:        Speaker,
			State:       d.State,
			BaseVolume:  d.BaseVolume.Value,
		})
	}
	return streams, nil
}

// ParseSources parses `pactl -f json list sources`, keeping only sound
// cards. Monitor sources are dropped.
func ParseSources(out []byte) ([]Stream, error) {
	var devices []pactlDevice
	if err := json.Unmarshal(out, &devices); err != nil {
		return nil, errors.DataInvalid("pactl sources", err)
	}
	streams := make([]Stream, 0, len(devices))
	for _, d := range devices {
		if d.Properties["device.class"] != "sound" {
			continue
		}
		streams = append(streams, Stream{
			ID:          d.Index,
			Name:        d.Name,
			Description: d.Description,
			Muted:       d.Mute,
			Volume:      channelVolumes(d.ChannelMap, d.Volume),
			IconName:    prop(d.Properties, "device.icon_name", defaultDeviceIcon),
			Kind:        Microphone,
			State:       d.State,
			BaseVolume:  d.BaseVolume.Value,
		})
	}
	return streams, nil
}

// ParseSinkInputs parses `pactl -f json list sink-inputs`.
func ParseSinkInputs(out []byte) ([]Stream, error) {
	return parseStreams(out, "pactl sink-inputs", App)
}

// ParseSourceOutputs parses `pactl -f json list source-outputs`.
func ParseSourceOutputs(out []byte) ([]Stream, error) {
	return parseStreams(out, "pactl source-outputs", Recording)
}

func parseStreams(out []byte, what string, kind Kind) ([]Stream, error) {
	var raw []pactlStream
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, errors.DataInvalid(what, err)
	}
	streams := make([]Stream, 0, len(raw))
	for _, s := range raw {
		name := prop(s.Properties, "media.name", "")
		stream := Stream{
			ID:       s.Index,
			Name:     name,
			Muted:    s.Mute,
			Volume:   channelVolumes(s.ChannelMap, s.Volume),
			Kind:     kind,
			AppName:  prop(s.Properties, "application.name", unknownApp),
			IconName: prop(s.Properties, "device.icon_name", defaultDeviceIcon),
		}
		if kind == Recording {
			stream.IconName = prop(s.Properties, "device.icon_name", defaultRecordingIcon)
			stream.Description = prop(s.Properties, "device.description", name)
		} else {
			stream.Description = name
		}
		streams = append(streams, stream)
	}
	return streams, nil
}

// ParseName parses `pactl get-default-sink` or `get-default-source`.
func ParseName(out []byte) (string, error) {
	name := strings.TrimSpace(string(out))
	if name == "" {
		return "", errors.New(errors.ErrCodeDataInvalid, "empty default device name")
	}
	return name, nil
}
