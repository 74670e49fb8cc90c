package connect

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape read by LoadFile and WatchFile. The API
// accepts the same shape as JSON.
type FileConfig struct {
	Appearance *Appearance  `json:"appearance" yaml:"appearance"`
	Locale     *string      `json:"locale" yaml:"locale"`
	Fonts      []FontSource `json:"fonts" yaml:"fonts"`
	Overrides  *Overrides   `json:"overrides" yaml:"overrides"`
}

// Update converts the file into a partial; absent sections stay untouched.
func (f FileConfig) Update() Update {
	return Update{
		Appearance: f.Appearance,
		Locale:     f.Locale,
		Fonts:      f.Fonts,
		Overrides:  f.Overrides,
	}
}

// LoadFile parses a YAML appearance file.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read connect file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse connect file %s: %w", path, err)
	}
	return fc, nil
}

// WatchFile applies path to s once and then again on every write, so edits
// reach mounted sessions through the store subscriber. Call stop to end it.
func WatchFile(path string, s *Store, logger *slog.Logger) (stop func(), err error) {
	if err := Check(s); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	fc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if u := fc.Update(); !u.Empty() {
		s.Update(u)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("connect watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("connect watcher add %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				fc, err := LoadFile(path)
				if err != nil {
					logger.Warn("connect file reload skipped", "path", path, "err", err)
					continue
				}
				if u := fc.Update(); !u.Empty() {
					s.Update(u)
					logger.Info("connect file reloaded", "path", path)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Debug("connect watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }, nil
}
