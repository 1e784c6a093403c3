// Package stage implements atomic promotion from a verified temp file into
// the live mirror/skel tree (SPEC_FULL.md §4.D).
package stage

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/radawson/apt-mirror/apt"
	"github.com/radawson/apt-mirror/verify"
)

// PromoteMetadata renames a verified temp file over destPath, fsync'ing
// the containing directory after the rename so it is durable on crash
// (the same DirSync-around-rename shape the aptutil/mirrorctl
// family uses for its symlink swap, adapted here to a plain per-file
// rename since SPEC_FULL.md's layout promotes individual skel/ files
// rather than swapping a whole-tree symlink).
func PromoteMetadata(tmpPath, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return errors.Wrap(err, "mkdir")
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return errors.Wrapf(err, "promoting %s", destPath)
	}
	return syncDir(filepath.Dir(destPath))
}

// PromoteArchive renames a verified temp file over destPath. If unlink is
// set and destPath already exists, it is unlinked first, whatever its
// content, so that other hardlinks to the same inode (pool files referenced
// from multiple paths) are not corrupted by being overwritten in place
// (§4.D hardlink/unlink policy).
func PromoteArchive(tmpPath, destPath string, unlink bool) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return errors.Wrap(err, "mkdir")
	}
	if unlink {
		if _, err := os.Lstat(destPath); err == nil {
			if err := os.Remove(destPath); err != nil {
				return errors.Wrapf(err, "unlinking %s before promotion", destPath)
			}
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return errors.Wrapf(err, "promoting %s", destPath)
	}
	return syncDir(filepath.Dir(destPath))
}

// AlreadyCurrent reports whether destPath already holds content matching
// both the declared size and every declared hash, re-reading the whole
// file from disk (§4.D: "if the final path already exists and hash already
// matches the declared hash, the download is skipped entirely"). A file
// that merely matches size but not hash (e.g. corrupted in place) is not
// current and must be re-fetched.
func AlreadyCurrent(destPath string, size int64, hashes apt.Hashes) bool {
	if _, err := os.Stat(destPath); err != nil {
		return false
	}
	return verify.VerifyFile(destPath, size, hashes) == nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return errors.Wrapf(err, "opening dir %s for sync", dir)
	}
	defer f.Close()
	if err := f.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return errors.Wrapf(err, "syncing dir %s", dir)
	}
	return nil
}
