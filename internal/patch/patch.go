// Package patch defines the ordered set of idempotent, anchor-based text
// transformations re-applied to the vendored tree after every hard reset.
//
// Every patch follows the same discipline: check an idempotency marker
// (already applied → no-op), locate an anchor substring (absent → no-op
// with a warning, upstream layout drifted), otherwise transform. Patches
// are pure functions over file contents; file I/O belongs to the caller.
package patch

import (
	"fmt"
	"strings"

	"github.com/skaphos/forksync/internal/model"
)

// Patch is one idempotent transformation targeting a single file.
type Patch struct {
	// Name identifies the patch in reports and logs.
	Name string
	// File is the target path relative to the vendored directory.
	File string
	// OptionalFile marks files newer upstreams may legitimately drop;
	// their absence is informational rather than a warning.
	OptionalFile bool
	// Marker is the idempotency marker checked before transforming.
	Marker string
	// Anchor is the substring the transform hangs off.
	Anchor string
	// Transform applies the patch to file contents.
	Transform func(src string) (string, model.PatchStatus)
}

// Apply runs the transform. The returned string is meaningful only when
// the status is PatchApplied.
func (p Patch) Apply(src string) (string, model.PatchStatus) {
	return p.Transform(src)
}

// Set is an ordered collection of patches. Patches are independent and
// idempotent, but the declared order is kept for determinism.
type Set []Patch

// CheckDisjoint verifies that no two patches targeting the same file
// have textually overlapping markers or anchors, so application order
// cannot matter. It is a development-time assertion: DefaultSet must
// always pass.
func (s Set) CheckDisjoint() error {
	for i := range s {
		for j := i + 1; j < len(s); j++ {
			a, b := s[i], s[j]
			if a.File != b.File {
				continue
			}
			for _, pair := range [][2]string{
				{a.Anchor, b.Anchor},
				{a.Marker, b.Marker},
				{a.Anchor, b.Marker},
				{a.Marker, b.Anchor},
			} {
				if overlaps(pair[0], pair[1]) {
					return fmt.Errorf("patches %q and %q overlap in %s", a.Name, b.Name, a.File)
				}
			}
		}
	}
	return nil
}

func overlaps(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// replaceOnce builds the standard marker → anchor → substitute transform.
func replaceOnce(marker, anchor, replacement string) func(string) (string, model.PatchStatus) {
	return func(src string) (string, model.PatchStatus) {
		if strings.Contains(src, marker) {
			return src, model.PatchAlreadyApplied
		}
		if !strings.Contains(src, anchor) {
			return src, model.PatchAnchorMissing
		}
		return strings.Replace(src, anchor, replacement, 1), model.PatchApplied
	}
}
