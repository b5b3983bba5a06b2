package syncer

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/skaphos/forksync/internal/fsutil"
)

// backupPreserved copies every preserve-list match out of targetDir into
// stagingDir at the same relative path. Entries are doublestar patterns;
// paths that match nothing are silently skipped, since not every fork
// customizes every preservable file.
func (e *Engine) backupPreserved(targetDir, stagingDir string) error {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return err
	}
	fsys := os.DirFS(targetDir)
	for _, pattern := range e.cfg.Preserve {
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pattern))
		if err != nil {
			return err
		}
		for _, rel := range matches {
			src := filepath.Join(targetDir, filepath.FromSlash(rel))
			if fsutil.IsDir(src) {
				continue
			}
			dst := filepath.Join(stagingDir, filepath.FromSlash(rel))
			if err := fsutil.CopyFile(src, dst); err != nil {
				return err
			}
			e.events.Infof("preserved %s", rel)
		}
	}
	return nil
}

// restorePreserved copies everything staged during backup back into the
// fresh targetDir, overwriting upstream's version of any path that
// collides.
func (e *Engine) restorePreserved(targetDir, stagingDir string) error {
	if !fsutil.IsDir(stagingDir) {
		return nil
	}
	return filepath.WalkDir(stagingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}
		return fsutil.CopyFile(path, filepath.Join(targetDir, rel))
	})
}
