package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/htmlnorm/internal/pipeline"
)

type fakeTarget struct {
	mu      sync.Mutex
	batches [][]string
	sweeps  int
}

func (f *fakeTarget) Matches(rel string) bool { return strings.HasSuffix(rel, ".html") }

func (f *fakeTarget) Run(context.Context) (*pipeline.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return &pipeline.Report{}, nil
}

func (f *fakeTarget) RunFiles(_ context.Context, rels []string) (*pipeline.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, rels)
	return &pipeline.Report{}, nil
}

func (f *fakeTarget) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := map[string]bool{}
	var all []string
	for _, b := range f.batches {
		for _, rel := range b {
			if !set[rel] {
				set[rel] = true
				all = append(all, rel)
			}
		}
	}
	return all
}

func TestBatch_DrainSortsAndDeduplicates(t *testing.T) {
	b := newBatch()
	b.add("z.html")
	b.add("a.html")
	b.add("z.html")
	assert.Equal(t, []string{"a.html", "z.html"}, b.drain())
	assert.Empty(t, b.drain())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(t.TempDir(), nil, time.Second, 0)
	require.Error(t, err)
	_, err = New(t.TempDir(), &fakeTarget{}, 0, 0)
	require.Error(t, err)
}

func TestWatcher_RunsChangedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "health"), 0o750))

	target := &fakeTarget{}
	w, err := New(root, target, 50*time.Millisecond, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register directories.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "health", "bmi.html"), []byte("<body></body>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o600))

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"health/bmi.html"}, target.seen())
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	target := &fakeTarget{}
	w, err := New(root, target, 50*time.Millisecond, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "finance"), 0o750))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "finance", "loan.html"), []byte("<body></body>"), 0o600))

	require.Eventually(t, func() bool {
		return slices.Contains(target.seen(), "finance/loan.html")
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_Sweeps(t *testing.T) {
	target := &fakeTarget{}
	w, err := New(t.TempDir(), target, time.Second, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		target.mu.Lock()
		defer target.mu.Unlock()
		return target.sweeps > 0
	}, 3*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
