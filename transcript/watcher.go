package transcript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"
)

// Logger interface for watcher logging.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Warn(msg string, args ...any)  {}

// Watcher reports transcript files that were created or written in a set of
// directories. It does not debounce; the worker coalesces bursts.
type Watcher struct {
	fs     *fsnotify.Watcher
	logger Logger
}

// NewWatcher watches dirs for transcript changes. A nil logger discards logs.
func NewWatcher(logger Logger, dirs ...string) (*Watcher, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fs.Add(dir); err != nil {
			fs.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return &Watcher{fs: fs, logger: logger}, nil
}

// Run calls onChange with the path of every created or written transcript
// until ctx is done or the watcher is closed. onChange runs on the watcher
// goroutine and must not block for long.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !IsTranscript(event.Name) || !(event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create)) {
				continue
			}
			w.logger.Debug("transcript changed", "path", event.Name, "op", event.Op.String())
			onChange(event.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Scan lists the transcript files directly inside dir, sorted by name.
func Scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && IsTranscript(entry.Name()) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
