// Package results stores verifier verdicts per (subject, property, model)
// in a write-once cache backed by an append-only tab-separated log.
package results

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/advlattice/internal/model"
)

// ErrInvalidIdentifier is returned for empty identifiers or identifiers
// containing tabs or newlines.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// ErrClosed is returned by Set after Close on a file-backed cache.
var ErrClosed = errors.New("cache closed")

// Key identifies one verdict.
type Key struct {
	Subject  string `json:"subject"`
	Property string `json:"property"`
	Model    string `json:"model"`
}

// Pair is a (subject, property) investigation target.
type Pair struct {
	Subject  string `json:"subject"`
	Property string `json:"property"`
}

// Entry is one recorded verdict.
type Entry struct {
	Key
	Verdict Verdict `json:"verdict"`
}

// Cache is a write-once verdict store. Every accepted Set is appended to
// the log file and synced before it returns; the first write for a key
// wins, both at runtime and when the log is replayed.
type Cache struct {
	path     string
	file     *os.File
	universe *model.Universe
	logger   *slog.Logger

	entries map[Key]Verdict
	order   []Key
	skipped int
	closed  bool
	mu      sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for replay and closure diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns an in-memory cache with no backing file.
func New(u *model.Universe, opts ...Option) *Cache {
	c := &Cache{
		universe: u.Unrestricted(),
		logger:   slog.Default(),
		entries:  make(map[Key]Verdict),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open replays the log at path into memory and opens it for appending.
// A missing file is an empty cache; malformed lines are skipped.
func Open(path string, u *model.Universe, opts ...Option) (*Cache, error) {
	c := New(u, opts...)
	c.path = path

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("results: create directory: %w", err)
	}

	entries, skipped, err := Load(path)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		c.insert(e.Key, e.Verdict)
	}
	c.skipped = skipped
	if skipped > 0 {
		c.logger.Warn("skipped malformed cache lines", "path", path, "count", skipped)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("results: open file: %w", err)
	}
	if err := terminateLastLine(file); err != nil {
		file.Close()
		return nil, err
	}
	c.file = file

	c.logger.Debug("cache loaded", "path", path, "entries", len(c.order))
	return c, nil
}

// terminateLastLine appends a newline when a previous run died halfway
// through a record, so the next record starts on its own line.
func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("results: stat: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && err != io.EOF {
		return fmt.Errorf("results: read tail: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := f.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("results: terminate tail: %w", err)
	}
	return f.Sync()
}

// Load reads a cache log without opening it for writing. Entries are
// returned in file order with later duplicates removed, together with
// the number of lines that could not be parsed. A missing file yields
// no entries and no error.
func Load(path string) ([]Entry, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("results: open log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	seen := make(map[Key]bool)
	skipped := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		e, ok := ParseLine(line)
		if !ok {
			skipped++
			continue
		}
		if seen[e.Key] {
			continue
		}
		seen[e.Key] = true
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("results: read log: %w", err)
	}
	return entries, skipped, nil
}

// ParseLine parses one log record. Trailing carriage returns must be
// stripped by the caller.
func ParseLine(line string) (Entry, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) != 4 {
		return Entry{}, false
	}
	for _, f := range fields[:3] {
		if f == "" {
			return Entry{}, false
		}
	}
	v, err := ParseVerdict(fields[3])
	if err != nil {
		return Entry{}, false
	}
	return Entry{Key: Key{Subject: fields[0], Property: fields[1], Model: fields[2]}, Verdict: v}, true
}

func checkIdentifier(s string) error {
	if s == "" || strings.ContainsAny(s, "\t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return nil
}

// Get returns the verdict for the key, or false if undecided.
func (c *Cache) Get(subject, property, modelKey string) (Verdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[Key{Subject: subject, Property: property, Model: modelKey}]
	return v, ok
}

// Set records a verdict unless the key is already decided. It reports
// whether the verdict was recorded. Recorded verdicts are durable when
// Set returns.
func (c *Cache) Set(subject, property, modelKey string, v Verdict) (bool, error) {
	for _, id := range []string{subject, property, modelKey} {
		if err := checkIdentifier(id); err != nil {
			return false, fmt.Errorf("results: set: %w", err)
		}
	}
	if !v.Valid() {
		return false, fmt.Errorf("results: set: %w: %d", ErrInvalidVerdict, int(v))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, fmt.Errorf("results: set: %w", ErrClosed)
	}

	k := Key{Subject: subject, Property: property, Model: modelKey}
	if _, ok := c.entries[k]; ok {
		return false, nil
	}

	if c.file != nil {
		line := fmt.Sprintf("%s\t%s\t%s\t%d\n", subject, property, modelKey, int(v))
		if _, err := c.file.WriteString(line); err != nil {
			return false, fmt.Errorf("results: write entry: %w", err)
		}
		if err := c.file.Sync(); err != nil {
			return false, fmt.Errorf("results: sync: %w", err)
		}
	}

	c.insert(k, v)
	return true, nil
}

func (c *Cache) insert(k Key, v Verdict) {
	c.entries[k] = v
	c.order = append(c.order, k)
}

// Len returns the number of recorded verdicts.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Skipped returns the number of malformed lines ignored at load.
func (c *Cache) Skipped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipped
}

// Path returns the backing log path, or "" for an in-memory cache.
func (c *Cache) Path() string { return c.path }

// Universe returns the unrestricted universe used for closure.
func (c *Cache) Universe() *model.Universe { return c.universe }

// Entries returns all verdicts in recording order.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.order))
	for i, k := range c.order {
		out[i] = Entry{Key: k, Verdict: c.entries[k]}
	}
	return out
}

// Pairs returns the distinct (subject, property) pairs with at least one verdict.
func (c *Cache) Pairs() []Pair {
	c.mu.Lock()
	seen := make(map[Pair]bool)
	for _, k := range c.order {
		seen[Pair{Subject: k.Subject, Property: k.Property}] = true
	}
	c.mu.Unlock()

	out := make([]Pair, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		return out[i].Property < out[j].Property
	})
	return out
}

// Close closes the backing file. The in-memory state stays readable.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	c.closed = true
	return err
}
