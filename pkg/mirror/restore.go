package mirror

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/spdsslg/backup-automation/pkg/pathutil"
)

// Restore reconstructs src from mirror, writing only entries the live
// source has not modified since createdAt. It is the two-pass
// reconciliation of spec.md §4.7: check_src_against_mirror clears out
// anything in src whose mirror counterpart vanished or changed type,
// then apply_backup recreates/updates from the mirror under the
// timestamp law. It is not cancellable mid-operation; a failure in
// either pass is returned so the shell can report a partial restore.
func Restore(mirrorRoot, srcRoot string, createdAt time.Time) error {
	if err := checkSrcAgainstMirror(srcRoot, mirrorRoot); err != nil {
		return errors.Wrap(err, "restore reconciliation failed")
	}
	if err := applyBackup(mirrorRoot, srcRoot, mirrorRoot, srcRoot, createdAt); err != nil {
		return errors.Wrap(err, "restore apply failed")
	}
	return nil
}

// checkSrcAgainstMirror implements Pass A: it removes anything from s
// whose counterpart in m either vanished or changed type, so that
// applyBackup can safely recreate it. Children present in m but absent
// from s are left for Pass B.
func checkSrcAgainstMirror(s, m string) error {
	mEntry, err := Stat(m)
	if err != nil {
		if os.IsNotExist(err) {
			return RemoveTree(s)
		}
		return errors.Wrapf(err, "unable to stat %s", m)
	}

	sEntry, err := Stat(s)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "unable to stat %s", s)
	}

	if !sameType(sEntry, mEntry) {
		return RemoveTree(s)
	}

	if mEntry.Kind != KindDirectory {
		return nil
	}

	children, err := os.ReadDir(s)
	if err != nil {
		return errors.Wrapf(err, "unable to enumerate %s", s)
	}
	for _, child := range children {
		if err := checkSrcAgainstMirror(filepath.Join(s, child.Name()), filepath.Join(m, child.Name())); err != nil {
			return err
		}
	}
	return nil
}

// applyBackup implements Pass B: it recreates directories unconditionally
// (mkdir_p), and writes files/symlinks only when to_write holds — the
// live source is absent or its mtime predates createdAt, meaning it
// has not been independently modified since the backup was captured.
func applyBackup(m, s, mirrorReal, srcReal string, createdAt time.Time) error {
	mEntry, err := Stat(m)
	if err != nil {
		return errors.Wrapf(err, "unable to stat %s", m)
	}

	if mEntry.Kind == KindDirectory {
		if err := pathutil.EnsureParentDir(s); err != nil {
			return err
		}
		if err := mkdirTolerant(s, mEntry.Mode); err != nil {
			return err
		}
		children, err := os.ReadDir(m)
		if err != nil {
			return errors.Wrapf(err, "unable to enumerate %s", m)
		}
		for _, child := range children {
			if err := applyBackup(filepath.Join(m, child.Name()), filepath.Join(s, child.Name()), mirrorReal, srcReal, createdAt); err != nil {
				return err
			}
		}
		return nil
	}

	sEntry, err := Stat(s)
	srcExists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "unable to stat %s", s)
	}

	toWrite := !srcExists || sEntry.Info.ModTime().After(createdAt)
	if !toWrite {
		return nil
	}

	if srcExists && !sameType(sEntry, mEntry) {
		if err := RemoveTree(s); err != nil {
			return err
		}
	}
	if err := pathutil.EnsureParentDir(s); err != nil {
		return err
	}

	switch mEntry.Kind {
	case KindFile:
		if err := CopyFile(m, s, mEntry.Mode, &StopFlag{}); err != nil {
			return errors.Wrapf(err, "unable to restore %s", s)
		}
	case KindSymlink:
		if err := CopySymlinkRewrite(m, s, mirrorReal, srcReal); err != nil {
			return errors.Wrapf(err, "unable to restore symlink %s", s)
		}
	}
	return nil
}
