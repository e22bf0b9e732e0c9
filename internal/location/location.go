// Package location persists the terminal's current configuration fragment
// in a file and reports changes made to it from outside the process.
package location

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/jsarenik/btcpos/internal/logging"
	"github.com/jsarenik/btcpos/internal/posconfig"
)

// File is the location file of one terminal.
type File struct {
	path   string
	logger zerolog.Logger

	mu   sync.Mutex
	last string
}

// New returns a location file at path. Nothing is created until Write.
func New(path string) *File {
	return &File{path: filepath.Clean(path), logger: logging.WithComponent("location")}
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// Read returns the stored fragment, or "" when the file does not exist.
func (f *File) Read() (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Write replaces the stored fragment. Watchers of this File are not told
// about their own writes.
func (f *File) Write(fragment string) error {
	fragment = strings.TrimPrefix(strings.TrimSpace(fragment), "#")
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create location dir: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := renameio.WriteFile(f.path, []byte(fragment+"\n"), 0o600); err != nil {
		return fmt.Errorf("write location: %w", err)
	}
	f.last = fragment
	return nil
}

// Open points the terminal at link, which may be a full link, "#fragment"
// or a bare fragment.
func (f *File) Open(link string) error {
	return f.Write(posconfig.FragmentFromLink(link))
}

// Watch reports fragments written to the file by other processes until ctx
// is cancelled. The returned channel is closed when watching stops.
func (f *File) Watch(ctx context.Context) (<-chan string, error) {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create location dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch directory %s: %w", dir, err)
	}

	if current, err := f.Read(); err == nil {
		f.mu.Lock()
		if f.last == "" {
			f.last = current
		}
		f.mu.Unlock()
	}

	out := make(chan string, 1)
	go func() {
		defer close(out)
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != f.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				fragment, changed := f.observe()
				if !changed {
					continue
				}
				f.logger.Debug().Str("op", event.Op.String()).Msg("location changed")
				select {
				case out <- fragment:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn().Err(err).Msg("fsnotify watcher error")
			}
		}
	}()
	return out, nil
}

// observe reads the file and reports whether it differs from the last
// fragment written or seen.
func (f *File) observe() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fragment, err := f.Read()
	if err != nil {
		f.logger.Warn().Err(err).Msg("read location")
		return "", false
	}
	if fragment == f.last {
		return "", false
	}
	f.last = fragment
	return fragment, true
}
