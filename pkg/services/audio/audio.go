// Package audio exposes PulseAudio or PipeWire sinks, sources and streams
// through pactl.
package audio

import (
	"context"
	"strconv"
	"strings"

	"github.com/grovetools/deskd/command"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/logging"
	"github.com/grovetools/deskd/pkg/service"
	"github.com/grovetools/deskd/pkg/snapshot"
	"github.com/grovetools/deskd/pkg/watch"
	"github.com/sirupsen/logrus"
)

// Name is the service name.
const Name = "audio"

// Kind says which list a stream belongs to.
type Kind string

const (
	Speaker    Kind = "speaker"
	Microphone Kind = "microphone"
	App        Kind = "app"
	Recording  Kind = "recording"
)

// Stream is a sink, source, sink input or source output.
type Stream struct {
	ID          uint32   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Muted       bool     `json:"muted"`
	Volume      []uint32 `json:"volume"`
	IconName    string   `json:"icon_name"`
	Kind        Kind     `json:"kind"`
	// State and BaseVolume are set for speakers and microphones.
	State      string `json:"state,omitempty"`
	BaseVolume uint32 `json:"base_volume,omitempty"`
	// AppName is set for app and recording streams.
	AppName string `json:"app_name,omitempty"`
}

func (s Stream) equal(o Stream) bool {
	return s.ID == o.ID && s.Name == o.Name && s.Description == o.Description &&
		s.Muted == o.Muted && s.IconName == o.IconName && s.Kind == o.Kind &&
		s.State == o.State && s.BaseVolume == o.BaseVolume && s.AppName == o.AppName &&
		equalVolume(s.Volume, o.Volume)
}

func equalVolume(a, b []uint32) bool {
	return snapshot.EqualOrdered(a, b, snapshot.Comparable[uint32])
}

// Data is the audio snapshot.
type Data struct {
	Speakers      []Stream `json:"speakers"`
	Microphones   []Stream `json:"microphones"`
	Apps          []Stream `json:"apps"`
	Recorders     []Stream `json:"recorders"`
	DefaultSink   string   `json:"default_sink"`
	DefaultSource string   `json:"default_source"`
}

func (d Data) Clone() Data {
	d.Speakers = cloneStreams(d.Speakers)
	d.Microphones = cloneStreams(d.Microphones)
	d.Apps = cloneStreams(d.Apps)
	d.Recorders = cloneStreams(d.Recorders)
	return d
}

func cloneStreams(in []Stream) []Stream {
	if in == nil {
		return nil
	}
	out := make([]Stream, len(in))
	for i, s := range in {
		s.Volume = append([]uint32(nil), s.Volume...)
		out[i] = s
	}
	return out
}

func streamsField(name string, get func(*Data) *[]Stream) snapshot.Field[Data, []Stream] {
	return snapshot.Field[Data, []Stream]{
		Name: name,
		Get:  func(d *Data) []Stream { return *get(d) },
		Set:  func(d *Data, v []Stream) { *get(d) = v },
		Equal: func(a, b []Stream) bool {
			return snapshot.EqualKeyed(a, b, func(s Stream) uint32 { return s.ID }, Stream.equal)
		},
	}
}

var (
	speakersField      = streamsField("speakers", func(d *Data) *[]Stream { return &d.Speakers })
	microphonesField   = streamsField("microphones", func(d *Data) *[]Stream { return &d.Microphones })
	appsField          = streamsField("apps", func(d *Data) *[]Stream { return &d.Apps })
	recordersField     = streamsField("recorders", func(d *Data) *[]Stream { return &d.Recorders })
	defaultSinkField   = snapshot.NewField("default_sink", func(d *Data) string { return d.DefaultSink }, func(d *Data, v string) { d.DefaultSink = v })
	defaultSourceField = snapshot.NewField("default_source", func(d *Data) string { return d.DefaultSource }, func(d *Data, v string) { d.DefaultSource = v })
)

// Pactl runs pactl with args and returns its stdout.
type Pactl interface {
	Output(ctx context.Context, args ...string) ([]byte, error)
}

type pactlRunner struct {
	runner *command.Runner
}

// NewPactl returns a Pactl running the pactl program through runner.
func NewPactl(runner *command.Runner) Pactl {
	return &pactlRunner{runner: runner}
}

func (p *pactlRunner) Output(ctx context.Context, args ...string) ([]byte, error) {
	return p.runner.Output(ctx, "pactl", args...)
}

// Service is the audio service.
type Service struct {
	*service.Base[Data]
	pactl  Pactl
	logger *logrus.Entry
}

// New checks that pactl reaches a sound server and follows `pactl
// subscribe`.
func New(ctx context.Context, runner *command.Runner) (*Service, error) {
	pactl := NewPactl(runner)
	if _, err := pactl.Output(ctx, "info"); err != nil {
		return nil, errors.ConstructionFailed(Name, err)
	}
	adapter := watch.NewLineAdapter("pactl-subscribe", runner.Executor(), RelevantEvent, "pactl", "subscribe")
	return NewWithPactl(pactl, adapter), nil
}

// NewWithPactl builds the service over any Pactl and adapter.
func NewWithPactl(pactl Pactl, adapter watch.Adapter) *Service {
	s := &Service{
		pactl:  pactl,
		logger: logging.NewLogger("deskd").WithField("service", Name),
	}
	initial := Data{Speakers: []Stream{}, Microphones: []Stream{}, Apps: []Stream{}, Recorders: []Stream{}}
	store := snapshot.NewStore(initial, "speakers", "microphones", "apps", "recorders", "default_sink", "default_source")
	s.Base = service.NewBase(Name, store, service.SyncFunc(s.Sync), adapter)
	return s
}

// RelevantEvent filters `pactl subscribe` lines to events that change the
// snapshot, e.g. "Event 'change' on sink #55".
func RelevantEvent(line string) bool {
	if !strings.HasPrefix(line, "Event ") {
		return false
	}
	for _, facility := range []string{" on sink", " on source", " on server"} {
		if strings.Contains(line, facility) {
			return true
		}
	}
	return false
}

// Sync reads every list and both defaults. A list that fails to read or
// parse leaves its field untouched; the others are still applied and the
// first failure is returned.
func (s *Service) Sync(ctx context.Context) error {
	var firstErr error
	fail := func(op string, err error) {
		s.logger.WithError(err).WithField("op", op).Debug("Audio field not updated")
		if firstErr == nil {
			firstErr = errors.TransportFailed(Name, op, err)
		}
	}

	pass := s.Store().Begin()

	lists := []struct {
		what  string
		field snapshot.Field[Data, []Stream]
		parse func([]byte) ([]Stream, error)
	}{
		{"sinks", speakersField, ParseSinks},
		{"sources", microphonesField, ParseSources},
		{"sink-inputs", appsField, ParseSinkInputs},
		{"source-outputs", recordersField, ParseSourceOutputs},
	}
	for _, l := range lists {
		out, err := s.pactl.Output(ctx, "-f", "json", "list", l.what)
		if err != nil {
			fail("list "+l.what, err)
			continue
		}
		streams, err := l.parse(out)
		if err != nil {
			fail("list "+l.what, err)
			continue
		}
		snapshot.Apply(pass, l.field, streams)
	}

	defaults := []struct {
		cmd   string
		field snapshot.Field[Data, string]
	}{
		{"get-default-sink", defaultSinkField},
		{"get-default-source", defaultSourceField},
	}
	for _, d := range defaults {
		out, err := s.pactl.Output(ctx, d.cmd)
		if err != nil {
			fail(d.cmd, err)
			continue
		}
		name, err := ParseName(out)
		if err != nil {
			fail(d.cmd, err)
			continue
		}
		snapshot.Apply(pass, d.field, name)
	}

	pass.Commit()
	return firstErr
}

func (s *Service) run(ctx context.Context, args ...string) error {
	if _, err := s.pactl.Output(ctx, args...); err != nil {
		return err
	}
	s.Resync()
	return nil
}

func muteArg(muted bool) string {
	if muted {
		return "1"
	}
	return "0"
}

// SetDefaultSink makes name the default output.
func (s *Service) SetDefaultSink(ctx context.Context, name string) error {
	if err := command.Validate("sinkName", name); err != nil {
		return err
	}
	return s.run(ctx, "set-default-sink", name)
}

// SetDefaultSource makes name the default input.
func (s *Service) SetDefaultSource(ctx context.Context, name string) error {
	if err := command.Validate("sinkName", name); err != nil {
		return err
	}
	return s.run(ctx, "set-default-source", name)
}

// SetSinkMute mutes or unmutes an output device by name.
func (s *Service) SetSinkMute(ctx context.Context, name string, muted bool) error {
	if err := command.Validate("sinkName", name); err != nil {
		return err
	}
	return s.run(ctx, "set-sink-mute", name, muteArg(muted))
}

// SetSourceMute mutes or unmutes an input device by name.
func (s *Service) SetSourceMute(ctx context.Context, name string, muted bool) error {
	if err := command.Validate("sinkName", name); err != nil {
		return err
	}
	return s.run(ctx, "set-source-mute", name, muteArg(muted))
}

// SetAppMute mutes or unmutes an application playback stream.
func (s *Service) SetAppMute(ctx context.Context, id uint32, muted bool) error {
	return s.run(ctx, "set-sink-input-mute", strconv.FormatUint(uint64(id), 10), muteArg(muted))
}

// SetRecorderMute mutes or unmutes an application recording stream.
func (s *Service) SetRecorderMute(ctx context.Context, id uint32, muted bool) error {
	return s.run(ctx, "set-source-output-mute", strconv.FormatUint(uint64(id), 10), muteArg(muted))
}

type nameParams struct {
	Name string `json:"name"`
}

type nameMuteParams struct {
	Name  string `json:"name"`
	Muted bool   `json:"muted"`
}

type idMuteParams struct {
	ID    uint32 `json:"id"`
	Muted bool   `json:"muted"`
}

// Commands returns the audio commands.
func (s *Service) Commands() []service.Command {
	byName := func(name, desc string, fn func(context.Context, string) error) service.Command {
		return service.Command{Name: name, Description: desc, Run: func(ctx context.Context, params map[string]any) (any, error) {
			var p nameParams
			if err := service.DecodeParams(params, &p); err != nil {
				return nil, err
			}
			return nil, fn(ctx, p.Name)
		}}
	}
	muteByName := func(name, desc string, fn func(context.Context, string, bool) error) service.Command {
		return service.Command{Name: name, Description: desc, Run: func(ctx context.Context, params map[string]any) (any, error) {
			var p nameMuteParams
			if err := service.DecodeParams(params, &p); err != nil {
				return nil, err
			}
			return nil, fn(ctx, p.Name, p.Muted)
		}}
	}
	muteByID := func(name, desc string, fn func(context.Context, uint32, bool) error) service.Command {
		return service.Command{Name: name, Description: desc, Run: func(ctx context.Context, params map[string]any) (any, error) {
			var p idMuteParams
			if err := service.DecodeParams(params, &p); err != nil {
				return nil, err
			}
			return nil, fn(ctx, p.ID, p.Muted)
		}}
	}

	return []service.Command{
		byName("set_default_sink", "Set the default output (name: sink name)", s.SetDefaultSink),
		byName("set_default_source", "Set the default input (name: source name)", s.SetDefaultSource),
		muteByName("set_sink_mute", "Mute an output (name, muted)", s.SetSinkMute),
		muteByName("set_source_mute", "Mute an input (name, muted)", s.SetSourceMute),
		muteByID("set_app_mute", "Mute a playback stream (id, muted)", s.SetAppMute),
		muteByID("set_recorder_mute", "Mute a recording stream (id, muted)", s.SetRecorderMute),
	}
}
