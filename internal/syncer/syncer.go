// Package syncer orchestrates the fork synchronization run: precondition
// validation, the upstream checkout/restore bracket, the hard reset of
// the vendored tree, preserved-file round-trip, patch application, sync
// metadata, and the optional commit.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/skaphos/forksync/internal/config"
	"github.com/skaphos/forksync/internal/fsutil"
	"github.com/skaphos/forksync/internal/model"
	"github.com/skaphos/forksync/internal/patch"
	"github.com/skaphos/forksync/internal/vcs"
)

// Precondition failures. All are raised before any mutation.
var (
	ErrDirtyWorkingTree      = errors.New("working tree is not clean")
	ErrTargetMissing         = errors.New("target directory not found")
	ErrNotARepository        = errors.New("upstream path is not a git repository")
	ErrUpstreamSourceMissing = errors.New("upstream source directory not found")
	ErrTagNotFound           = errors.New("tag not found in upstream")
)

// IsPrecondition reports whether err belongs to the fatal/precondition
// taxonomy (raised before mutation, no rollback needed).
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrDirtyWorkingTree) ||
		errors.Is(err, ErrTargetMissing) ||
		errors.Is(err, ErrNotARepository) ||
		errors.Is(err, ErrUpstreamSourceMissing) ||
		errors.Is(err, ErrTagNotFound)
}

// Events receives progress and warning lines during a run. The engine
// reports, the caller presents.
type Events interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopEvents struct{}

func (nopEvents) Infof(string, ...any) {}
func (nopEvents) Warnf(string, ...any) {}

// NopEvents discards all progress output.
var NopEvents Events = nopEvents{}

// Options configures one sync invocation. The mode (dry-run vs apply) is
// fixed for the duration of the run.
type Options struct {
	// RepoRoot is the managed repository containing the vendored tree.
	RepoRoot string
	// UpstreamRepo is the path to the upstream clone.
	UpstreamRepo string
	// Tag is the upstream tag to sync from.
	Tag string
	// Apply performs the mutation; default is dry-run.
	Apply bool
	// Commit creates a commit after a successful apply.
	Commit bool
	// AllowDirty skips the clean-working-tree check.
	AllowDirty bool
}

// Engine runs fork synchronization against a single vendored directory.
type Engine struct {
	cfg     *config.Config
	adapter vcs.Adapter
	patches patch.Set
	events  Events

	// now is overridable in tests.
	now func() time.Time
}

// New creates an Engine. The patch set's disjointness assertion runs
// here so a bad set fails construction rather than skewing a run.
func New(cfg *config.Config, adapter vcs.Adapter, patches patch.Set, events Events) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if adapter == nil {
		adapter = vcs.NewGitAdapter(nil)
	}
	if patches == nil {
		patches = patch.DefaultSet()
	}
	if err := patches.CheckDisjoint(); err != nil {
		return nil, err
	}
	if events == nil {
		events = NopEvents
	}
	return &Engine{
		cfg:     cfg,
		adapter: adapter,
		patches: patches,
		events:  events,
		now:     time.Now,
	}, nil
}

// Paths holds the absolute locations a validated run operates on.
type Paths struct {
	Target         string
	Upstream       string
	UpstreamSource string
	Backup         string
}

// Validate runs every precondition check. All failures are fatal and
// none are retried; nothing has been mutated when an error returns.
func (e *Engine) Validate(ctx context.Context, opts Options) (Paths, error) {
	var p Paths

	if !opts.AllowDirty {
		dirty, err := e.adapter.IsDirty(ctx, opts.RepoRoot)
		if err != nil {
			return p, fmt.Errorf("check working tree: %w", err)
		}
		if dirty {
			return p, fmt.Errorf("%w: commit/stash changes or pass --allow-dirty", ErrDirtyWorkingTree)
		}
	}

	p.Target = filepath.Join(opts.RepoRoot, e.cfg.TargetDir)
	if !fsutil.IsDir(p.Target) {
		return p, fmt.Errorf("%w: %s", ErrTargetMissing, p.Target)
	}

	upstream, err := filepath.Abs(opts.UpstreamRepo)
	if err != nil {
		return p, err
	}
	p.Upstream = upstream
	if !fsutil.Exists(filepath.Join(upstream, ".git")) {
		return p, fmt.Errorf("%w: %s", ErrNotARepository, upstream)
	}

	p.UpstreamSource = filepath.Join(upstream, e.cfg.UpstreamSourceDir)
	if !fsutil.IsDir(p.UpstreamSource) {
		return p, fmt.Errorf("%w: %s", ErrUpstreamSourceMissing, p.UpstreamSource)
	}

	ok, err := e.adapter.TagExists(ctx, upstream, opts.Tag)
	if err != nil {
		return p, fmt.Errorf("verify tag: %w", err)
	}
	if !ok {
		return p, fmt.Errorf("%w: %s", ErrTagNotFound, opts.Tag)
	}

	p.Backup = filepath.Join(opts.RepoRoot, e.cfg.BackupDir)
	return p, nil
}

// Run performs one sync invocation. Whatever happens after the upstream
// checkout, the captured ref is restored before Run returns.
func (e *Engine) Run(ctx context.Context, opts Options) (report *model.SyncReport, retErr error) {
	p, err := e.Validate(ctx, opts)
	if err != nil {
		return nil, err
	}

	e.events.Infof("repo root: %s", opts.RepoRoot)
	e.events.Infof("target: %s", p.Target)
	e.events.Infof("upstream: %s", p.Upstream)
	if opts.Apply {
		e.events.Infof("mode: APPLY")
	} else {
		e.events.Infof("mode: DRY-RUN")
	}

	originalRef, err := e.captureAndCheckout(ctx, p.Upstream, opts.Tag, opts.Apply)
	if err != nil {
		return nil, err
	}
	defer func() {
		e.events.Infof("restoring upstream ref: %s", originalRef)
		if !opts.Apply {
			return
		}
		if restoreErr := e.adapter.Checkout(ctx, p.Upstream, originalRef); restoreErr != nil {
			if retErr == nil {
				retErr = fmt.Errorf("restore upstream ref %q: %w", originalRef, restoreErr)
				return
			}
			// The primary failure wins; the stranded checkout is still reported.
			e.events.Warnf("failed to restore upstream ref %q: %v", originalRef, restoreErr)
		}
	}()

	rev, err := e.adapter.ShortRev(ctx, p.Upstream, "refs/tags/"+opts.Tag)
	if err != nil {
		return nil, err
	}

	report = &model.SyncReport{
		Tag:         opts.Tag,
		Rev:         rev,
		OriginalRef: originalRef,
		DryRun:      !opts.Apply,
	}

	if !opts.Apply {
		report.Planned = e.plan(opts)
		for _, p := range e.patches {
			report.Patches = append(report.Patches, model.PatchReport{
				Name:   p.Name,
				File:   p.File,
				Status: model.PatchSkipped,
			})
		}
		report.ChangedPaths = e.adapter.ChangedPaths(ctx, opts.RepoRoot, e.cfg.TargetDir)
		return report, nil
	}

	if err := fsutil.RemoveTree(p.Backup); err != nil {
		return report, err
	}
	if err := e.backupPreserved(p.Target, p.Backup); err != nil {
		return report, err
	}

	e.events.Infof("replacing %s with upstream %s at %s", e.cfg.TargetDir, e.cfg.UpstreamSourceDir, opts.Tag)
	if err := fsutil.CopyTree(p.UpstreamSource, p.Target); err != nil {
		return report, err
	}

	if err := e.restorePreserved(p.Target, p.Backup); err != nil {
		return report, err
	}

	report.Patches, err = e.applyPatches(p.Target)
	if err != nil {
		return report, err
	}

	meta := model.SyncMetadata{
		UpstreamTag: opts.Tag,
		UpstreamRev: rev,
		SyncedAt:    e.now().UTC().Truncate(time.Second),
	}
	if err := WriteMetadata(filepath.Join(p.Target, e.cfg.MetadataFile), meta); err != nil {
		return report, err
	}

	report.ChangedPaths = e.adapter.ChangedPaths(ctx, opts.RepoRoot, e.cfg.TargetDir)

	if opts.Commit {
		if err := e.commit(ctx, opts.RepoRoot, opts.Tag, rev); err != nil {
			return report, err
		}
		report.Committed = true
	}

	return report, nil
}

// captureAndCheckout records the upstream's current ref and, in apply
// mode, fetches tags and checks out the requested tag. It runs exactly
// once per invocation, before any target mutation.
func (e *Engine) captureAndCheckout(ctx context.Context, upstream, tag string, apply bool) (string, error) {
	ref, err := e.adapter.CurrentRef(ctx, upstream)
	if err != nil {
		return "", fmt.Errorf("capture upstream ref: %w", err)
	}
	e.events.Infof("upstream current ref: %s", ref)
	e.events.Infof("checking out upstream tag: %s", tag)
	if apply {
		if err := e.adapter.FetchTags(ctx, upstream); err != nil {
			return "", err
		}
		if err := e.adapter.Checkout(ctx, upstream, tag); err != nil {
			return "", err
		}
	}
	return ref, nil
}

// plan describes what an apply run would do, for dry-run display.
func (e *Engine) plan(opts Options) []string {
	out := []string{
		fmt.Sprintf("backup preserved files to %s:", e.cfg.BackupDir),
	}
	for _, rel := range e.cfg.Preserve {
		out = append(out, fmt.Sprintf("  - %s", filepath.Join(e.cfg.TargetDir, rel)))
	}
	out = append(out,
		fmt.Sprintf("replace %s with upstream %s/ at %s", e.cfg.TargetDir, e.cfg.UpstreamSourceDir, opts.Tag),
		"restore preserved files",
	)
	for _, p := range e.patches {
		out = append(out, fmt.Sprintf("apply patch %s (%s)", p.Name, p.File))
	}
	out = append(out, fmt.Sprintf("write %s", filepath.Join(e.cfg.TargetDir, e.cfg.MetadataFile)))
	if opts.Commit {
		out = append(out, "commit result")
	}
	return out
}

// applyPatches runs every patch in declared order. Absent files and
// drifted anchors degrade to warnings; any other I/O failure aborts the
// run (the deferred ref restore still fires).
func (e *Engine) applyPatches(target string) ([]model.PatchReport, error) {
	reports := make([]model.PatchReport, 0, len(e.patches))
	for _, p := range e.patches {
		report, err := e.applyPatch(target, p)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (e *Engine) applyPatch(target string, p patch.Patch) (model.PatchReport, error) {
	report := model.PatchReport{Name: p.Name, File: p.File}
	path := filepath.Join(target, filepath.FromSlash(p.File))

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return report, fmt.Errorf("read %s for %s: %w", p.File, p.Name, err)
		}
		report.Status = model.PatchFileMissing
		if p.OptionalFile {
			e.events.Infof("%s not present in upstream layout; skipping %s", p.File, p.Name)
		} else {
			report.Detail = "target file missing"
			e.events.Warnf("missing %s, skipping %s", p.File, p.Name)
		}
		return report, nil
	}

	out, status := p.Apply(string(data))
	report.Status = status
	switch status {
	case model.PatchAlreadyApplied:
		e.events.Infof("%s already applied to %s", p.Name, p.File)
	case model.PatchAnchorMissing:
		report.Detail = "anchor not found; upstream layout may have changed"
		e.events.Warnf("could not find anchor for %s in %s; upstream layout may have changed", p.Name, p.File)
	case model.PatchApplied:
		if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
			return report, fmt.Errorf("write %s for %s: %w", p.File, p.Name, err)
		}
		e.events.Infof("patched %s (%s)", p.File, p.Name)
	}
	return report, nil
}

func (e *Engine) commit(ctx context.Context, repoRoot, tag, rev string) error {
	if err := e.adapter.Add(ctx, repoRoot, e.cfg.TargetDir); err != nil {
		return err
	}
	name := filepath.Base(e.cfg.TargetDir)
	msg := fmt.Sprintf("%s: hard-reset fork from upstream %s (%s) and reapply fork patches", name, tag, rev)
	if err := e.adapter.Commit(ctx, repoRoot, msg); err != nil {
		return err
	}
	e.events.Infof("committed changes")
	return nil
}
