// Package inbox feeds the step queue from a directory.
//
// Producers drop step files (*.steps) into the inbox. Each file becomes
// one queued step holding all of its lines, so Repeat blocks stay
// intact. A consumed file is moved to the done/ subdirectory.
//
// Producers should write under a dot-prefixed name and rename into place;
// dot files are never picked up.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// Ext is the extension of step files.
const Ext = ".steps"

// DoneDir receives consumed files.
const DoneDir = "done"

// DefaultScanInterval is the period of the fallback directory scan.
const DefaultScanInterval = 10 * time.Second

// Enqueuer accepts steps. *engine.Worker implements it.
type Enqueuer interface {
	Enqueue(text, source string) bool
}

// Watcher moves step files from a directory into an Enqueuer.
type Watcher struct {
	dir          string
	sink         Enqueuer
	scanInterval time.Duration
}

// New returns a watcher for dir. A non-positive scanInterval selects
// DefaultScanInterval.
func New(dir string, sink Enqueuer, scanInterval time.Duration) *Watcher {
	if scanInterval <= 0 {
		scanInterval = DefaultScanInterval
	}
	return &Watcher{dir: dir, sink: sink, scanInterval: scanInterval}
}

// Run watches until ctx is cancelled. Files already present are consumed
// first, in name order. A periodic scan picks up files whose events were
// missed.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(w.dir, DoneDir), 0o755); err != nil {
		return fmt.Errorf("ensure inbox %s: %w", w.dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	slog.Info("inbox watching", "dir", w.dir)

	w.Scan()

	ticker := time.NewTicker(w.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("inbox stopping", "dir", w.dir)
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				slog.Debug("inbox event", "op", event.Op.String(), "file", event.Name)
				w.consume(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("inbox watcher error", "error", err)
		case <-ticker.C:
			w.Scan()
		}
	}
}

// Scan consumes every pending step file in name order and returns how
// many were enqueued.
func (w *Watcher) Scan() int {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		slog.Error("inbox scan failed", "dir", w.dir, "error", err)
		return 0
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && isStepFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	n := 0
	for _, name := range names {
		if w.consume(filepath.Join(w.dir, name)) {
			n++
		}
	}
	return n
}

func isStepFile(name string) bool {
	return !strings.HasPrefix(name, ".") && filepath.Ext(name) == Ext
}

// consume enqueues one file and moves it to done/. Events for files
// already consumed find nothing and are ignored.
func (w *Watcher) consume(path string) bool {
	if filepath.Dir(path) != filepath.Clean(w.dir) || !isStepFile(filepath.Base(path)) {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("inbox read failed", "file", path, "error", err)
		}
		return false
	}
	text := strings.TrimRight(string(data), "\n")
	if strings.TrimSpace(text) == "" {
		slog.Debug("inbox file empty, waiting for content", "file", path)
		return false
	}

	source := "inbox:" + filepath.Base(path)
	if !w.sink.Enqueue(text, source) {
		slog.Warn("inbox step rejected, queue closed", "file", path)
		return false
	}
	done := filepath.Join(w.dir, DoneDir, filepath.Base(path))
	if err := os.MkdirAll(filepath.Dir(done), 0o755); err != nil {
		slog.Error("inbox move failed", "file", path, "error", err)
	} else if err := os.Rename(path, done); err != nil {
		slog.Error("inbox move failed", "file", path, "error", err)
	}
	slog.Info("inbox step queued", "file", path)
	return true
}

// Submit writes text as a new step file in dir and returns its path.
// Names are UUIDv7s, so name order is submission order. The file is
// written under a dot name first and renamed into place.
func Submit(dir, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("submit: empty step")
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	name := id.String() + Ext
	tmp := filepath.Join(dir, "."+name)
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("submit: %w", err)
	}
	return path, nil
}
