package applications

import (
	"path/filepath"
	"strings"

	"github.com/grovetools/deskd/errors"
	"gopkg.in/ini.v1"
)

// Type is the desktop entry type. Directory entries are not applications.
type Type string

const (
	TypeApplication Type = "Application"
	TypeLink        Type = "Link"
	TypeService     Type = "Service"
)

// Application is one launchable desktop entry.
type Application struct {
	Name           string `json:"name" yaml:"name"`
	Description    string `json:"description,omitempty" yaml:"description,omitempty"`
	Executable     string `json:"executable" yaml:"executable"`
	Desktop        string `json:"desktop" yaml:"desktop"`
	IconName       string `json:"icon_name,omitempty" yaml:"icon_name,omitempty"`
	StartupWMClass string `json:"startup_wm_class,omitempty" yaml:"startup_wm_class,omitempty"`
	Frequency      uint64 `json:"frequency" yaml:"frequency"`
	Type           Type   `json:"type" yaml:"type"`
	Terminal       bool   `json:"terminal" yaml:"terminal"`
	Categories     string `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// ErrHidden marks entries with Hidden or NoDisplay set. It is a skip, not
// a failure.
var ErrHidden = errors.New(errors.ErrCodeDataInvalid, "desktop entry is hidden")

const desktopSection = "Desktop Entry"

// ParseDesktopFile reads a .desktop file.
func ParseDesktopFile(path string) (Application, error) {
	if filepath.Ext(path) != ".desktop" {
		return Application{}, errors.New(errors.ErrCodeInvalidInput, "not a desktop file").WithDetail("path", path)
	}

	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:     true,
		IgnoreContinuation:      true,
		SkipUnrecognizableLines: true,
	}, path)
	if err != nil {
		return Application{}, errors.DataInvalid("desktop file", err).WithDetail("path", path)
	}
	section, err := file.GetSection(desktopSection)
	if err != nil {
		return Application{}, errors.DataInvalid("desktop file", err).WithDetail("path", path).WithDetail("missing", desktopSection)
	}

	attr := func(key string) (string, bool) {
		if !section.HasKey(key) {
			return "", false
		}
		return section.Key(key).String(), true
	}

	app := Application{Desktop: path}
	var execKey string
	switch t, _ := attr("Type"); Type(t) {
	case TypeApplication, TypeService:
		app.Type, execKey = Type(t), "Exec"
	case TypeLink:
		app.Type, execKey = TypeLink, "URL"
	default:
		return Application{}, errors.New(errors.ErrCodeDataInvalid, "unsupported desktop entry type").
			WithDetail("path", path).WithDetail("type", t)
	}
	exec, ok := attr(execKey)
	if !ok {
		return Application{}, errors.New(errors.ErrCodeDataInvalid, "desktop entry has no "+execKey).WithDetail("path", path)
	}
	app.Executable = exec

	if v, _ := attr("Hidden"); v == "true" {
		return Application{}, ErrHidden
	}
	if v, _ := attr("NoDisplay"); v == "true" {
		return Application{}, ErrHidden
	}

	name, ok := attr("Name")
	if !ok {
		return Application{}, errors.New(errors.ErrCodeDataInvalid, "desktop entry has no Name").WithDetail("path", path)
	}
	app.Name = name
	app.Description, _ = attr("GenericName")
	app.IconName, _ = attr("Icon")
	app.StartupWMClass, _ = attr("StartupWMClass")
	app.Categories, _ = attr("Categories")
	if v, _ := attr("Terminal"); v == "true" {
		app.Terminal = true
	}
	return app, nil
}

// Match reports whether term occurs in the name, description, executable
// or desktop path. Matching is case-sensitive.
func (a Application) Match(term string) bool {
	return strings.Contains(a.Name, term) ||
		strings.Contains(a.Description, term) ||
		strings.Contains(a.Executable, term) ||
		strings.Contains(a.Desktop, term)
}

// less orders by frequency, then name, both ascending.
func less(a, b Application) bool {
	if a.Frequency != b.Frequency {
		return a.Frequency < b.Frequency
	}
	return a.Name < b.Name
}
