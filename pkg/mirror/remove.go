package mirror

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// RemoveTree removes path, recursing into directories (without
// following symlinks) and tolerating ENOENT at every step, including
// the final removal (a race with a concurrent deletion is not an
// error). It mirrors rm_tree from the original exactly, including
// treating an already-absent path as success rather than as a
// not-found error.
func RemoveTree(path string) error {
	entry, err := Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "unable to stat %s", path)
	}

	if entry.Kind != KindDirectory {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "unable to remove %s", path)
		}
		return nil
	}

	children, err := os.ReadDir(path)
	if err != nil {
		return errors.Wrapf(err, "unable to enumerate %s", path)
	}
	for _, child := range children {
		if err := RemoveTree(filepath.Join(path, child.Name())); err != nil {
			return err
		}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "unable to remove directory %s", path)
	}
	return nil
}

// renamePath moves oldPath to newPath, first clearing out anything
// already present at newPath so a rename replaying onto a stale mirror
// entry (e.g. one left by a prior failed move) does not fail with
// ENOTEMPTY/EEXIST.
func renamePath(oldPath, newPath string) error {
	if err := RemoveTree(newPath); err != nil {
		return errors.Wrapf(err, "unable to clear %s before rename", newPath)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return errors.Wrapf(err, "unable to rename %s to %s", oldPath, newPath)
	}
	return nil
}

// mkdirTolerant creates dst as a directory with the given mode,
// tolerating the case where it already exists.
func mkdirTolerant(dst string, mode os.FileMode) error {
	if err := os.Mkdir(dst, mode); err != nil && !os.IsExist(err) {
		return errors.Wrapf(err, "unable to create directory %s", dst)
	}
	return nil
}
