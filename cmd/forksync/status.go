// SPDX-License-Identifier: MIT
package forksync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skaphos/forksync/internal/cliio"
	"github.com/skaphos/forksync/internal/config"
	"github.com/skaphos/forksync/internal/syncer"
	"github.com/skaphos/forksync/internal/termstyle"
	"github.com/skaphos/forksync/internal/vcs"
)

// syncStatus is the status command's output shape.
type syncStatus struct {
	Target       string   `json:"target"`
	Synced       bool     `json:"synced"`
	UpstreamTag  string   `json:"upstream_tag,omitempty"`
	UpstreamRev  string   `json:"upstream_rev,omitempty"`
	SyncedAt     string   `json:"synced_at_utc,omitempty"`
	Dirty        bool     `json:"dirty"`
	ChangedPaths []string `json:"changed_paths,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the vendored directory's last sync and local drift",
	RunE: func(cmd *cobra.Command, args []string) error {
		debugf(cmd, "starting status")
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

		format, _ := cmd.Flags().GetString("format")
		noHeaders, _ := cmd.Flags().GetBool("no-headers")

		st := syncStatus{Target: cfg.TargetDir}
		metaPath := filepath.Join(repoRoot, cfg.TargetDir, cfg.MetadataFile)
		meta, err := syncer.ReadMetadata(metaPath)
		switch {
		case err == nil:
			st.Synced = true
			st.UpstreamTag = meta.UpstreamTag
			st.UpstreamRev = meta.UpstreamRev
			st.SyncedAt = meta.SyncedAt.UTC().Format(time.RFC3339)
		case os.IsNotExist(err):
			// Never synced; still report drift below.
		default:
			return err
		}

		adapter := vcs.NewGitAdapter(nil)
		st.ChangedPaths = adapter.ChangedPaths(cmd.Context(), repoRoot, cfg.TargetDir)
		st.Dirty = len(st.ChangedPaths) > 0

		switch strings.ToLower(format) {
		case "json":
			setColorOutputMode(cmd, format)
			data, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		case "table":
			setColorOutputMode(cmd, format)
			if err := writeStatusTable(cmd, st, noHeaders); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported format %q", format)
		}

		if !st.Synced {
			infof(cmd, "no sync metadata found; run `forksync sync --apply` first")
			raiseExitCode(1)
		}
		return nil
	},
}

func init() {
	addFormatFlag(statusCmd)
	addNoHeadersFlag(statusCmd)
	rootCmd.AddCommand(statusCmd)
}

func writeStatusTable(cmd *cobra.Command, st syncStatus, noHeaders bool) error {
	tag, rev, synced := st.UpstreamTag, st.UpstreamRev, st.SyncedAt
	if !st.Synced {
		tag, rev, synced = "-", "-", "never"
	}
	state := termstyle.Colorize(colorOutputEnabled, "clean", termstyle.Healthy)
	if st.Dirty {
		state = termstyle.Colorize(colorOutputEnabled, "dirty", termstyle.Warn)
	}
	headers := []string{"TARGET", "TAG", "REV", "SYNCED", "STATE"}
	rows := [][]string{{st.Target, tag, rev, synced, state}}
	return cliio.WriteTable(cmd.OutOrStdout(), colorOutputEnabled, noHeaders, headers, rows)
}
