// Package clipboard exposes the cliphist clipboard history as a deskd
// service.
package clipboard

import (
	"bytes"
	"context"
	"os"
	"strconv"

	atotto "github.com/atotto/clipboard"
	"github.com/grovetools/deskd/command"
	"github.com/grovetools/deskd/config"
	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/pkg/paths"
	"github.com/grovetools/deskd/pkg/service"
	"github.com/grovetools/deskd/pkg/snapshot"
	"github.com/grovetools/deskd/pkg/watch"
)

// Name is the service name.
const Name = "clipboard"

// Data is the clipboard snapshot. Entries are newest first, as cliphist
// lists them.
type Data struct {
	Entries []Entry `json:"entries"`
}

func (d Data) Clone() Data {
	d.Entries = append([]Entry(nil), d.Entries...)
	return d
}

// History is the clipboard history store.
type History interface {
	// List returns entry ids, newest first.
	List(ctx context.Context) ([]uint64, error)
	Decode(ctx context.Context, id uint64) ([]byte, error)
	// CopyRaw puts an entry's raw bytes on the clipboard.
	CopyRaw(ctx context.Context, id uint64) error
}

// Cliphist is a History backed by the cliphist and wl-copy programs.
type Cliphist struct {
	runner *command.Runner
}

// NewCliphist returns a History using runner.
func NewCliphist(runner *command.Runner) *Cliphist {
	return &Cliphist{runner: runner}
}

func (c *Cliphist) List(ctx context.Context) ([]uint64, error) {
	ints, err := c.runner.Ints(ctx, "cliphist", "list")
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(ints))
	for _, n := range ints {
		if n < 0 {
			return nil, errors.DataInvalid("cliphist list", errors.New(errors.ErrCodeDataInvalid, "negative id"))
		}
		ids = append(ids, uint64(n))
	}
	return ids, nil
}

func (c *Cliphist) Decode(ctx context.Context, id uint64) ([]byte, error) {
	return c.runner.Output(ctx, "cliphist", "decode", strconv.FormatUint(id, 10))
}

func (c *Cliphist) CopyRaw(ctx context.Context, id uint64) error {
	payload, err := c.Decode(ctx, id)
	if err != nil {
		return err
	}
	_, err = c.runner.OutputWithInput(ctx, bytes.NewReader(payload), "wl-copy")
	return err
}

var entriesField = snapshot.Field[Data, []Entry]{
	Name: "entries",
	Get:  func(d *Data) []Entry { return d.Entries },
	Set:  func(d *Data, v []Entry) { d.Entries = v },
	Equal: func(a, b []Entry) bool {
		return snapshot.EqualOrdered(a, b, Entry.Equal)
	},
}

// Service is the clipboard service.
type Service struct {
	*service.Base[Data]
	history    History
	maxEntries int
	writeText  func(string) error
}

// New watches the cliphist database.
func New(cfg config.ClipboardConfig, watchCfg config.WatchConfig, runner *command.Runner) (*Service, error) {
	db := paths.CliphistDBPath()
	if _, err := os.Stat(db); err != nil {
		return nil, errors.ConstructionFailed(Name, errors.Wrap(err, errors.ErrCodeConstructionFailed, "cliphist database not found").
			WithDetail("path", db))
	}
	adapter, err := watch.NewFileAdapter("cliphist-db", watch.FileOptions{Paths: []string{db}, Debounce: watchCfg.Debounce()})
	if err != nil {
		return nil, errors.ConstructionFailed(Name, err)
	}
	return NewWithHistory(NewCliphist(runner), adapter, cfg.MaxEntries), nil
}

// NewWithHistory builds the service over any History and adapter. A
// non-positive maxEntries keeps every entry.
func NewWithHistory(history History, adapter watch.Adapter, maxEntries int) *Service {
	s := &Service{history: history, maxEntries: maxEntries, writeText: atotto.WriteAll}
	store := snapshot.NewStore(Data{Entries: []Entry{}}, "entries")
	s.Base = service.NewBase(Name, store, service.SyncFunc(s.Sync), adapter)
	return s
}

// Sync lists the history and decodes only ids not already known. Ids are
// never renumbered, so a known id's payload never changes.
func (s *Service) Sync(ctx context.Context) error {
	ids, err := s.history.List(ctx)
	if err != nil {
		return errors.TransportFailed(Name, "list", err)
	}
	if s.maxEntries > 0 && len(ids) > s.maxEntries {
		ids = ids[:s.maxEntries]
	}

	known := make(map[uint64]Entry)
	for _, e := range s.Store().Get().Entries {
		known[e.ID] = e
	}

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := known[id]; ok {
			entries = append(entries, e)
			continue
		}
		payload, err := s.history.Decode(ctx, id)
		if err != nil {
			return errors.TransportFailed(Name, "decode", err)
		}
		entries = append(entries, NewEntry(id, payload))
	}

	pass := s.Store().Begin()
	snapshot.Apply(pass, entriesField, entries)
	pass.Commit()
	return nil
}

// Copy puts entry id back on the clipboard.
func (s *Service) Copy(ctx context.Context, id uint64) error {
	var (
		entry Entry
		found bool
	)
	for _, e := range s.Store().Get().Entries {
		if e.ID == id {
			entry, found = e, true
			break
		}
	}
	if !found {
		return errors.New(errors.ErrCodeInvalidInput, "unknown clipboard entry").WithDetail("id", id)
	}

	switch entry.Kind {
	case Text:
		if err := s.writeText(entry.Text); err != nil {
			return errors.Wrap(err, errors.ErrCodeCommandFailed, "failed to write clipboard")
		}
		return nil
	case RasterImage, VectorImage, Blob:
		return s.history.CopyRaw(ctx, id)
	}
	return errors.New(errors.ErrCodeInternal, "unhandled entry kind").WithDetail("kind", string(entry.Kind))
}

type copyParams struct {
	ID uint64 `json:"id"`
}

// Commands returns the clipboard commands.
func (s *Service) Commands() []service.Command {
	return []service.Command{
		{
			Name:        "copy",
			Description: "Copy a history entry back to the clipboard (id: number)",
			Run: func(ctx context.Context, params map[string]any) (any, error) {
				var p copyParams
				if err := service.DecodeParams(params, &p); err != nil {
					return nil, err
				}
				return nil, s.Copy(ctx, p.ID)
			},
		},
	}
}
