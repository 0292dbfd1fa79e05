// Package monitor watches one file on disk and turns every modification
// into fresh content for the push loop. The whole file is re-read on each
// change; partial reads would push torn content to viewers.
package monitor

import (
	"os"
	"path/filepath"

	"github.com/yanun0323/errors"
)

// Loader reads the monitored file.
type Loader struct {
	path string
}

// NewLoader resolves path to an absolute location so watch events can be
// matched against it reliably.
func NewLoader(path string) (*Loader, error) {
	if path == "" {
		return nil, errors.New("monitor: empty file path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "resolve monitored path")
	}
	return &Loader{path: abs}, nil
}

// Path returns the absolute path of the monitored file.
func (l *Loader) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Name returns the base name of the monitored file.
func (l *Loader) Name() string {
	if l == nil {
		return ""
	}
	return filepath.Base(l.path)
}

// Load reads the full current content.
func (l *Loader) Load() ([]byte, error) {
	if l == nil {
		return nil, errors.New("monitor: nil loader")
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", l.path)
	}
	return data, nil
}
