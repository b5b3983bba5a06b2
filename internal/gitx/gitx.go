// Package gitx provides helpers for executing git commands and parsing
// their output. It shells out to the installed git binary.
package gitx

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// RunResult captures the outcome of one git invocation.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes git commands in a given repo directory.
// This interface allows mocking in tests.
//
// Run reports a non-nil error only when the process could not be spawned;
// a nonzero exit is returned in RunResult. Use the package-level Run for
// the checked variant.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (RunResult, error)
}

// GitRunner is the default Runner implementation that shells out to git.
type GitRunner struct {
	// GitBin is the path to the git binary. Defaults to "git".
	GitBin string
}

// Run executes a git command, capturing stdout and stderr separately.
func (g *GitRunner) Run(ctx context.Context, dir string, args ...string) (RunResult, error) {
	bin := g.GitBin
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// CommandError reports an unexpected nonzero exit from a git command.
// It carries the argv and both output streams for diagnosis.
type CommandError struct {
	Args     []string
	Dir      string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s failed (exit %d)", strings.Join(e.Args, " "), e.ExitCode)
	if out := strings.TrimSpace(e.Stdout); out != "" {
		msg += "\nstdout:\n" + out
	}
	if errOut := strings.TrimSpace(e.Stderr); errOut != "" {
		msg += "\nstderr:\n" + errOut
	}
	return msg
}

// Run executes a git command and fails on nonzero exit.
func Run(ctx context.Context, r Runner, dir string, args ...string) (RunResult, error) {
	res, err := r.Run(ctx, dir, args...)
	if err != nil {
		return res, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	if res.ExitCode != 0 {
		return res, &CommandError{
			Args:     args,
			Dir:      dir,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}
	return res, nil
}

// IsDirty reports whether the working tree has any pending changes.
func IsDirty(ctx context.Context, r Runner, dir string) (bool, error) {
	res, err := Run(ctx, r, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

// TagExists reports whether the named tag resolves in the repository.
func TagExists(ctx context.Context, r Runner, dir, tag string) (bool, error) {
	res, err := r.Run(ctx, dir, "rev-parse", "-q", "--verify", "refs/tags/"+tag)
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// CurrentRef returns the current branch name, or the resolved commit id
// when HEAD is detached.
func CurrentRef(ctx context.Context, r Runner, dir string) (string, error) {
	res, err := r.Run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	ref := strings.TrimSpace(res.Stdout)
	if res.ExitCode != 0 || ref == "" || ref == "HEAD" {
		detached, err := Run(ctx, r, dir, "rev-parse", "HEAD")
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(detached.Stdout), nil
	}
	return ref, nil
}

// FetchTags fetches and prunes tags from all remotes.
func FetchTags(ctx context.Context, r Runner, dir string) error {
	_, err := Run(ctx, r, dir, "fetch", "--tags", "--prune")
	return err
}

// Checkout checks the repository out to the given ref.
func Checkout(ctx context.Context, r Runner, dir, ref string) error {
	_, err := Run(ctx, r, dir, "checkout", ref)
	return err
}

// ShortRev resolves a rev to its abbreviated commit id.
func ShortRev(ctx context.Context, r Runner, dir, rev string) (string, error) {
	res, err := Run(ctx, r, dir, "rev-parse", "--short", rev)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// ChangedPaths returns `git status --short` lines limited to pathspec.
// Failures are tolerated: the summary is informational only.
func ChangedPaths(ctx context.Context, r Runner, dir, pathspec string) []string {
	res, err := r.Run(ctx, dir, "status", "--short", "--", pathspec)
	if err != nil || res.ExitCode != 0 {
		return nil
	}
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// Add stages the given path.
func Add(ctx context.Context, r Runner, dir, path string) error {
	_, err := Run(ctx, r, dir, "add", path)
	return err
}

// Commit creates a commit with the given message.
func Commit(ctx context.Context, r Runner, dir, message string) error {
	_, err := Run(ctx, r, dir, "commit", "-m", message)
	return err
}
