// Package vcs guards in-place runs against clobbering uncommitted work.
package vcs

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"

	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
)

// Status is the worktree state relevant to a run root.
type Status struct {
	// InRepo is false when root is not inside a Git worktree.
	InRepo bool
	// Dirty lists root-relative slash paths with uncommitted changes,
	// untracked files included.
	Dirty []string
}

// Clean reports whether nothing relevant is uncommitted.
func (s Status) Clean() bool {
	return len(s.Dirty) == 0
}

// CheckClean inspects the worktree containing root. relevant filters the
// dirty files (root-relative slash paths); nil keeps all of them.
func CheckClean(root string, relevant func(rel string) bool) (Status, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, ferrors.WrapError(err, ferrors.CategoryVCS, "failed to open git repository").
			WithContext("path", root).Build()
	}
	wt, err := repo.Worktree()
	if err != nil {
		return Status{}, ferrors.WrapError(err, ferrors.CategoryVCS, "failed to get git worktree").Build()
	}
	status, err := wt.Status()
	if err != nil {
		return Status{}, ferrors.WrapError(err, ferrors.CategoryVCS, "failed to get git status").Build()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Status{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve root").Build()
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return Status{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve root").Build()
	}
	wtRoot, err := filepath.EvalSymlinks(wt.Filesystem.Root())
	if err != nil {
		return Status{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve worktree root").Build()
	}
	prefix, err := filepath.Rel(wtRoot, absRoot)
	if err != nil {
		return Status{}, ferrors.WrapError(err, ferrors.CategoryVCS, "root is outside the worktree").Build()
	}
	prefix = filepath.ToSlash(prefix)

	out := Status{InRepo: true}
	for p, fs := range status {
		if fs.Worktree == git.Unmodified && fs.Staging == git.Unmodified {
			continue
		}
		rel := p
		if prefix != "." {
			var ok bool
			rel, ok = strings.CutPrefix(p, prefix+"/")
			if !ok {
				continue
			}
		}
		if relevant == nil || relevant(rel) {
			out.Dirty = append(out.Dirty, rel)
		}
	}
	sort.Strings(out.Dirty)
	return out, nil
}
