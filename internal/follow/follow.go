// Package follow tails a verdict log while another process appends to it.
package follow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/advlattice/internal/results"
)

const debounceDefault = 200 * time.Millisecond

// Follower reads verdicts appended to a cache log.
type Follower struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	offset  int64
	partial []byte
	skipped int
}

// Option configures a Follower.
type Option func(*Follower)

// WithDebounce sets how long to wait after the last write before reading.
func WithDebounce(d time.Duration) Option {
	return func(f *Follower) {
		if d > 0 {
			f.debounce = d
		}
	}
}

// WithLogger sets the logger for watcher diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(f *Follower) {
		if l != nil {
			f.logger = l
		}
	}
}

// New returns a follower positioned at the start of the log.
func New(path string, opts ...Option) *Follower {
	f := &Follower{path: path, debounce: debounceDefault, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Skipped returns the number of malformed lines seen so far.
func (f *Follower) Skipped() int { return f.skipped }

// Poll returns the complete records appended since the previous call.
// A trailing line without newline is held back until it is finished.
// If the log shrank it is read again from the start.
func (f *Follower) Poll() ([]results.Entry, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("follow: open log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("follow: stat log: %w", err)
	}
	if info.Size() < f.offset {
		f.logger.Warn("log truncated, rereading", "path", f.path)
		f.offset = 0
		f.partial = nil
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("follow: seek log: %w", err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("follow: read log: %w", err)
	}
	f.offset += int64(len(data))

	buf := append(f.partial, data...)
	last := bytes.LastIndexByte(buf, '\n')
	if last < 0 {
		f.partial = buf
		return nil, nil
	}
	f.partial = append([]byte(nil), buf[last+1:]...)

	var out []results.Entry
	for _, line := range strings.Split(string(buf[:last]), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		e, ok := results.ParseLine(line)
		if !ok {
			f.skipped++
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Run delivers existing and newly appended records to handle until ctx
// is cancelled. The log's directory is watched so the log may be
// created after Run starts.
func (f *Follower) Run(ctx context.Context, handle func([]results.Entry)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("follow: create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("follow: watch %s: %w", dir, err)
	}

	deliver := func() error {
		entries, err := f.Poll()
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			handle(entries)
		}
		return nil
	}
	if err := deliver(); err != nil {
		return err
	}

	timer := time.NewTimer(f.debounce)
	timer.Stop()
	defer timer.Stop()

	name := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			if err := deliver(); err != nil {
				return err
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				timer.Reset(f.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("log watcher error", "error", err)
		}
	}
}
