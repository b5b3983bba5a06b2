package vcs

import (
	"context"

	"github.com/skaphos/forksync/internal/gitx"
)

// Adapter defines the VCS operations forksync relies on.
// Git is the default adapter; the syncer is written against this
// interface so tests can inject failures at any step.
type Adapter interface {
	Name() string
	IsDirty(ctx context.Context, dir string) (bool, error)
	TagExists(ctx context.Context, dir, tag string) (bool, error)
	CurrentRef(ctx context.Context, dir string) (string, error)
	FetchTags(ctx context.Context, dir string) error
	Checkout(ctx context.Context, dir, ref string) error
	ShortRev(ctx context.Context, dir, rev string) (string, error)
	ChangedPaths(ctx context.Context, dir, pathspec string) []string
	Add(ctx context.Context, dir, path string) error
	Commit(ctx context.Context, dir, message string) error
}

// GitAdapter implements Adapter using the git CLI via gitx.
type GitAdapter struct {
	Runner gitx.Runner
}

func NewGitAdapter(runner gitx.Runner) *GitAdapter {
	if runner == nil {
		runner = &gitx.GitRunner{}
	}
	return &GitAdapter{Runner: runner}
}

func (g *GitAdapter) Name() string { return "git" }

func (g *GitAdapter) IsDirty(ctx context.Context, dir string) (bool, error) {
	return gitx.IsDirty(ctx, g.Runner, dir)
}

func (g *GitAdapter) TagExists(ctx context.Context, dir, tag string) (bool, error) {
	return gitx.TagExists(ctx, g.Runner, dir, tag)
}

func (g *GitAdapter) CurrentRef(ctx context.Context, dir string) (string, error) {
	return gitx.CurrentRef(ctx, g.Runner, dir)
}

func (g *GitAdapter) FetchTags(ctx context.Context, dir string) error {
	return gitx.FetchTags(ctx, g.Runner, dir)
}

func (g *GitAdapter) Checkout(ctx context.Context, dir, ref string) error {
	return gitx.Checkout(ctx, g.Runner, dir, ref)
}

func (g *GitAdapter) ShortRev(ctx context.Context, dir, rev string) (string, error) {
	return gitx.ShortRev(ctx, g.Runner, dir, rev)
}

func (g *GitAdapter) ChangedPaths(ctx context.Context, dir, pathspec string) []string {
	return gitx.ChangedPaths(ctx, g.Runner, dir, pathspec)
}

func (g *GitAdapter) Add(ctx context.Context, dir, path string) error {
	return gitx.Add(ctx, g.Runner, dir, path)
}

func (g *GitAdapter) Commit(ctx context.Context, dir, message string) error {
	return gitx.Commit(ctx, g.Runner, dir, message)
}
