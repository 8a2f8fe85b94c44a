package applications

import (
	"os"
	"path/filepath"

	"github.com/grovetools/deskd/errors"
	"gopkg.in/yaml.v3"
)

// FrequencyCache persists launch counts keyed by application name.
type FrequencyCache struct {
	path string
}

// NewFrequencyCache returns a cache stored at path.
func NewFrequencyCache(path string) *FrequencyCache {
	return &FrequencyCache{path: path}
}

// Path returns the cache file path.
func (c *FrequencyCache) Path() string { return c.path }

// Exists reports whether the cache file is present.
func (c *FrequencyCache) Exists() bool {
	_, err := os.Stat(c.path)
	return err == nil
}

// Load reads the counts. A file that does not decode is a DATA_INVALID
// error.
func (c *FrequencyCache) Load() (map[string]uint64, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDataInvalid, "failed to read frequency cache").
			WithDetail("path", c.path)
	}
	counts := make(map[string]uint64)
	if err := yaml.Unmarshal(data, &counts); err != nil {
		return nil, errors.DataInvalid("frequency cache", err).WithDetail("path", c.path)
	}
	return counts, nil
}

// Save replaces the file with counts. The write goes through a temporary
// file in the same directory and a rename.
func (c *FrequencyCache) Save(counts map[string]uint64) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create cache directory").WithDetail("path", dir)
	}
	data, err := yaml.Marshal(counts)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode frequency cache")
	}

	tmp, err := os.CreateTemp(dir, ".apps_frequency-*.yml")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write frequency cache").WithDetail("path", c.path)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write frequency cache").WithDetail("path", c.path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to write frequency cache").WithDetail("path", c.path)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to replace frequency cache").WithDetail("path", c.path)
	}
	return nil
}
