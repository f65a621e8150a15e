// Package watch re-runs the pipeline on files as they change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/logfields"
	"git.home.luguber.info/inful/htmlnorm/internal/pipeline"
)

// Target is the work a Watcher triggers. *pipeline.Runner implements it.
type Target interface {
	Matches(rel string) bool
	Run(ctx context.Context) (*pipeline.Report, error)
	RunFiles(ctx context.Context, rels []string) (*pipeline.Report, error)
}

// skippedDirs are not watched.
var skippedDirs = map[string]bool{".git": true, ".htmlnorm": true, "node_modules": true}

// Watcher debounces file events under a root into batched runs and
// sweeps the whole tree on an interval.
type Watcher struct {
	root     string
	target   Target
	debounce time.Duration
	sweep    time.Duration
	logger   *slog.Logger

	fsw     *fsnotify.Watcher
	pending *batch
	kick    chan struct{}
	runMu   sync.Mutex
}

// New creates a Watcher. A zero sweep disables the periodic full run.
func New(root string, target Target, debounce, sweep time.Duration) (*Watcher, error) {
	if target == nil {
		return nil, ferrors.ValidationError("watch target is required").Build()
	}
	if debounce <= 0 {
		return nil, ferrors.ValidationError("debounce must be > 0").Build()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	return &Watcher{
		root:     root,
		target:   target,
		debounce: debounce,
		sweep:    sweep,
		logger:   slog.Default(),
		fsw:      fsw,
		pending:  newBatch(),
		kick:     make(chan struct{}, 1),
	}, nil
}

// Run watches until ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Error("Error closing file watcher", logfields.Error(err))
		}
	}()
	if err := w.addTree(w.root); err != nil {
		return err
	}

	if w.sweep > 0 {
		s, err := gocron.NewScheduler()
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to create scheduler").Build()
		}
		if _, err := s.NewJob(
			gocron.DurationJob(w.sweep),
			gocron.NewTask(func() { w.runSweep(ctx) }),
			gocron.WithName("sweep"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to schedule sweep").Build()
		}
		s.Start()
		defer func() {
			if err := s.Shutdown(); err != nil {
				w.logger.Error("Error stopping scheduler", logfields.Error(err))
			}
		}()
	}

	w.logger.Info("Watching", logfields.Path(w.root), "debounce", w.debounce.String(), "sweep", w.sweep.String())
	go w.flushLoop(ctx)
	return w.eventLoop(ctx)
}

func (w *Watcher) eventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	if ev.Op&fsnotify.Create != 0 {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", logfields.Path(ev.Name), logfields.Error(err))
			}
			return
		}
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if !w.target.Matches(rel) {
		return
	}
	w.logger.Debug("Change detected", logfields.Path(rel), "op", ev.Op.String())
	w.pending.add(rel)
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// flushLoop runs the pending batch once no event arrived for the debounce window.
func (w *Watcher) flushLoop(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-w.kick:
			timer.Reset(w.debounce)
			timerC = timer.C
		case <-timerC:
			timerC = nil
			rels := w.pending.drain()
			if len(rels) == 0 {
				continue
			}
			w.runMu.Lock()
			if _, err := w.target.RunFiles(ctx, rels); err != nil {
				w.logger.Error("Watch run failed", logfields.Count(len(rels)), logfields.Error(err))
			}
			w.runMu.Unlock()
		}
	}
}

func (w *Watcher) runSweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	w.runMu.Lock()
	defer w.runMu.Unlock()
	w.logger.Debug("Starting sweep")
	if _, err := w.target.Run(ctx); err != nil {
		w.logger.Error("Sweep failed", logfields.Error(err))
	}
}

func (w *Watcher) addTree(dir string) error {
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && skippedDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to watch directory").
			WithContext("path", dir).Build()
	}
	return nil
}

// batch is the set of paths changed since the last flush.
type batch struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func newBatch() *batch {
	return &batch{paths: make(map[string]struct{})}
}

func (b *batch) add(rel string) {
	b.mu.Lock()
	b.paths[rel] = struct{}{}
	b.mu.Unlock()
}

// drain returns the collected paths sorted and empties the set.
func (b *batch) drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.paths))
	for p := range b.paths {
		out = append(out, p)
	}
	clear(b.paths)
	sort.Strings(out)
	return out
}
