// Package model defines the core data types used throughout forksync.
package model

import "time"

// PatchStatus enumerates how a single patch application ended.
type PatchStatus string

const (
	// PatchApplied means the transform ran and the file was rewritten.
	PatchApplied PatchStatus = "applied"
	// PatchAlreadyApplied means the idempotency marker was found, no-op.
	PatchAlreadyApplied PatchStatus = "already-applied"
	// PatchAnchorMissing means the expected anchor text was absent.
	// Non-fatal: it signals upstream layout drift.
	PatchAnchorMissing PatchStatus = "anchor-missing"
	// PatchFileMissing means the target file does not exist in the
	// freshly synced tree.
	PatchFileMissing PatchStatus = "file-missing"
	// PatchSkipped means the run never reached the patch (dry-run).
	PatchSkipped PatchStatus = "skipped"
)

// PatchReport records the outcome of one patch operation.
type PatchReport struct {
	// Name is the declared patch name.
	Name string `json:"name" yaml:"name"`
	// File is the patch target path relative to the vendored directory.
	File string `json:"file" yaml:"file"`
	// Status is the typed outcome for this patch.
	Status PatchStatus `json:"status" yaml:"status"`
	// Detail carries human-readable context for warnings.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Warning reports whether this outcome should be surfaced as a warning.
// Warnings never change the process exit status.
func (r PatchReport) Warning() bool {
	return r.Status == PatchAnchorMissing || (r.Status == PatchFileMissing && r.Detail != "")
}

// SyncMetadata is the record persisted into the vendored directory after
// a successful apply. Absent before the first run, overwritten on every
// successful run.
type SyncMetadata struct {
	// UpstreamTag is the tag the vendored tree was synced from.
	UpstreamTag string `json:"upstream_tag" yaml:"upstream_tag"`
	// UpstreamRev is the resolved short revision of that tag.
	UpstreamRev string `json:"upstream_rev" yaml:"upstream_rev"`
	// SyncedAt is the UTC timestamp of the sync.
	SyncedAt time.Time `json:"synced_at_utc" yaml:"synced_at_utc"`
}

// SyncReport is the top-level outcome of one sync invocation.
type SyncReport struct {
	// Tag is the requested upstream tag.
	Tag string `json:"tag" yaml:"tag"`
	// Rev is the short revision the tag resolves to.
	Rev string `json:"rev" yaml:"rev"`
	// OriginalRef is the upstream ref captured before checkout and
	// restored when the run ends.
	OriginalRef string `json:"original_ref" yaml:"original_ref"`
	// DryRun reports whether the bracketed apply phase was skipped.
	DryRun bool `json:"dry_run" yaml:"dry_run"`
	// Planned lists the actions a dry-run would perform.
	Planned []string `json:"planned,omitempty" yaml:"planned,omitempty"`
	// Patches holds per-patch outcomes for an apply run.
	Patches []PatchReport `json:"patches,omitempty" yaml:"patches,omitempty"`
	// ChangedPaths is the diff summary under the vendored directory.
	ChangedPaths []string `json:"changed_paths,omitempty" yaml:"changed_paths,omitempty"`
	// Committed reports whether a commit was created.
	Committed bool `json:"committed" yaml:"committed"`
}

// Warnings returns the subset of patch reports that degraded to warnings.
func (r *SyncReport) Warnings() []PatchReport {
	var out []PatchReport
	for _, p := range r.Patches {
		if p.Warning() {
			out = append(out, p)
		}
	}
	return out
}
