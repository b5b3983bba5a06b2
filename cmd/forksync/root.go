// Package forksync contains the Cobra command tree for the forksync CLI.
package forksync

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/skaphos/forksync/internal/gitx"
	"github.com/skaphos/forksync/internal/syncer"
)

var (
	// Global flags
	flagVerbose int
	flagQuiet   bool
	flagConfig  string
	flagNoColor bool
	// colorOutputEnabled is set per command execution based on output format and TTY detection.
	colorOutputEnabled bool
	// exitCode tracks the highest severity observed during a command run.
	exitCode int
	// isTerminalFD is overridable in tests.
	isTerminalFD = term.IsTerminal
	// exitFunc is overridable in tests.
	exitFunc = os.Exit
)

var rootCmd = &cobra.Command{
	Use:   "forksync",
	Short: "Synchronize a vendored fork with its upstream repository",
	Long: "ForkSync hard-resets a vendored directory from an upstream clone at a chosen tag, " +
		"restores fork-owned files, reapplies the fork's patches, and records what was synced. " +
		"The upstream clone is always returned to the ref it was on.",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// `NO_COLOR` is a standard opt-out and should behave like --no-color.
		if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
			flagNoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "increase output verbosity (repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "override config file path")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() {
	exitFunc(ExecuteWithExitCode())
}

// ExecuteWithExitCode runs the root command and returns a shell-friendly
// exit code: 0 success (patch warnings included), 1 precondition failure,
// 2 dirty working tree, 3 unexpected failure.
func ExecuteWithExitCode() int {
	exitCode = 0
	colorOutputEnabled = false
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code := exitCodeFor(err)
		if code == 3 {
			if class := gitx.ClassifyError(err); class != "unknown" {
				fmt.Fprintf(os.Stderr, "error class: %s\n", class)
			}
		}
		return code
	}
	return exitCode
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, syncer.ErrDirtyWorkingTree):
		return 2
	case syncer.IsPrecondition(err):
		return 1
	default:
		return 3
	}
}

func raiseExitCode(code int) {
	// Keep the highest severity observed during the run.
	if code > exitCode {
		exitCode = code
	}
}

func infof(cmd *cobra.Command, format string, args ...any) {
	if flagQuiet {
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

func debugf(cmd *cobra.Command, format string, args ...any) {
	if flagQuiet || flagVerbose <= 0 {
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

// warnf always prints; warnings are part of the contract even under -q.
func warnf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: "+format+"\n", args...)
}

func setColorOutputMode(cmd *cobra.Command, format string) {
	colorOutputEnabled = shouldUseColorOutput(cmd, format)
}

func shouldUseColorOutput(cmd *cobra.Command, format string) bool {
	if flagNoColor || !isTabularFormat(format) {
		return false
	}
	file, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return isTerminalFD(int(file.Fd()))
}

func isTabularFormat(format string) bool {
	return strings.EqualFold(strings.TrimSpace(format), "table")
}

// cmdEvents bridges engine progress output onto the command's streams.
type cmdEvents struct {
	cmd *cobra.Command
}

func (e cmdEvents) Infof(format string, args ...any) {
	infof(e.cmd, format, args...)
}

func (e cmdEvents) Warnf(format string, args ...any) {
	warnf(e.cmd, format, args...)
}
