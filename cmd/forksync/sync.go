// SPDX-License-Identifier: MIT
package forksync

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skaphos/forksync/internal/cliio"
	"github.com/skaphos/forksync/internal/config"
	"github.com/skaphos/forksync/internal/model"
	"github.com/skaphos/forksync/internal/strutil"
	"github.com/skaphos/forksync/internal/syncer"
	"github.com/skaphos/forksync/internal/termstyle"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Hard-reset the vendored directory from upstream and reapply fork patches",
	RunE: func(cmd *cobra.Command, args []string) error {
		debugf(cmd, "starting sync")
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfgPath, err := config.ResolveConfigPath(flagConfig, cwd)
		if err != nil {
			return err
		}
		cfg, err := config.LoadOrDefault(cfgPath)
		if err != nil {
			return err
		}
		repoRoot := config.ConfigRoot(cfgPath)
		if repoRoot == "" {
			repoRoot = cwd
		}
		debugf(cmd, "using config %s", cfgPath)

		upstream, _ := cmd.Flags().GetString("upstream")
		tag, _ := cmd.Flags().GetString("tag")
		apply, _ := cmd.Flags().GetBool("apply")
		commit, _ := cmd.Flags().GetBool("commit")
		allowDirty, _ := cmd.Flags().GetBool("allow-dirty")
		yes, _ := cmd.Flags().GetBool("yes")
		format, _ := cmd.Flags().GetString("format")
		noHeaders, _ := cmd.Flags().GetBool("no-headers")
		preserveRaw, _ := cmd.Flags().GetString("preserve")
		if commit && !apply {
			return fmt.Errorf("--commit requires --apply")
		}
		if preserve := strutil.SplitCSV(preserveRaw); len(preserve) > 0 {
			cfg.Preserve = preserve
		}

		eng, err := syncer.New(cfg, nil, nil, cmdEvents{cmd})
		if err != nil {
			return err
		}
		opts := syncer.Options{
			RepoRoot:     repoRoot,
			UpstreamRepo: upstream,
			Tag:          tag,
			Apply:        apply,
			Commit:       commit,
			AllowDirty:   allowDirty,
		}

		if apply && !yes {
			prompt := fmt.Sprintf("Hard-reset %s from upstream %s? [y/N]: ", cfg.TargetDir, tag)
			confirmed, err := cliio.PromptYesNo(cmd.ErrOrStderr(), cmd.InOrStdin(), prompt)
			if err != nil {
				return err
			}
			if !confirmed {
				infof(cmd, "sync cancelled")
				return nil
			}
		}

		report, err := eng.Run(cmd.Context(), opts)
		if err != nil {
			return err
		}

		switch strings.ToLower(format) {
		case "json":
			setColorOutputMode(cmd, format)
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		case "table":
			setColorOutputMode(cmd, format)
			if err := writeSyncReport(cmd, report, noHeaders); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported format %q", format)
		}

		// Patch warnings are informational and never raise the exit code.
		if n := len(report.Warnings()); n > 0 {
			infof(cmd, "sync completed with %d warning(s); review the patch table", n)
		} else if report.DryRun {
			infof(cmd, "dry-run completed; rerun with --apply to execute")
		} else {
			infof(cmd, "sync completed: %s at %s", report.Tag, report.Rev)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().String("upstream", "", "path to the upstream clone")
	syncCmd.Flags().String("tag", "", "upstream tag to sync from")
	syncCmd.Flags().Bool("apply", false, "execute the sync; default is dry-run")
	syncCmd.Flags().Bool("commit", false, "commit the result after a successful sync")
	syncCmd.Flags().Bool("allow-dirty", false, "skip the clean-working-tree check")
	syncCmd.Flags().Bool("yes", false, "execute without confirmation")
	syncCmd.Flags().String("preserve", "", "comma-separated glob patterns overriding the configured preserve list")
	addFormatFlag(syncCmd)
	addNoHeadersFlag(syncCmd)
	_ = syncCmd.MarkFlagRequired("upstream")
	_ = syncCmd.MarkFlagRequired("tag")
	rootCmd.AddCommand(syncCmd)
}

func writeSyncReport(cmd *cobra.Command, report *model.SyncReport, noHeaders bool) error {
	if report.DryRun && len(report.Planned) > 0 {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Planned operations:")
		for _, line := range report.Planned {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", line)
		}
	}

	if len(report.Patches) > 0 {
		rows := make([][]string, 0, len(report.Patches))
		for _, p := range report.Patches {
			rows = append(rows, []string{
				p.Name,
				p.File,
				termstyle.Colorize(colorOutputEnabled, patchStatusText(p.Status), patchStatusColor(p)),
				p.Detail,
			})
		}
		headers := []string{"PATCH", "FILE", "STATUS", "DETAIL"}
		if err := cliio.WriteTable(cmd.OutOrStdout(), colorOutputEnabled, noHeaders, headers, rows); err != nil {
			return err
		}
	}

	if len(report.ChangedPaths) > 0 {
		infof(cmd, "changed paths: %d", len(report.ChangedPaths))
		for _, p := range report.ChangedPaths {
			debugf(cmd, "  %s", p)
		}
	}
	if report.Committed {
		infof(cmd, "committed sync result")
	}
	return nil
}

func patchStatusText(status model.PatchStatus) string {
	switch status {
	case model.PatchApplied:
		return "applied"
	case model.PatchAlreadyApplied:
		return "already-applied"
	case model.PatchAnchorMissing:
		return "anchor-missing"
	case model.PatchFileMissing:
		return "file-missing"
	default:
		return "skipped"
	}
}

func patchStatusColor(p model.PatchReport) string {
	switch {
	case p.Warning():
		return termstyle.Warn
	case p.Status == model.PatchApplied:
		return termstyle.Healthy
	case p.Status == model.PatchAlreadyApplied:
		return termstyle.Info
	default:
		return ""
	}
}
