// Package pathutil provides the path canonicalization and mapping
// primitives shared by the mirror engine and the restore engine. It
// plays the role of the interactive shell's path-normalization helper:
// every source or target argument that reaches the rest of the system
// has already passed through one of the functions here.
package pathutil

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// HasPrefix reports whether s begins with prefix on a path-component
// boundary: prefix itself, or prefix followed by a slash. It guards
// against false matches such as "/a/bc" against prefix "/a/b".
func HasPrefix(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	if len(s) == len(prefix) {
		return true
	}
	return s[len(prefix)] == '/'
}

// SplitDirBase splits path into its directory and base components,
// using the same rules as filepath.Dir/filepath.Base but returning both
// in one call for callers that need both (mirroring the teacher's
// split_dir_base helper).
func SplitDirBase(path string) (dir, base string) {
	cleaned := filepath.Clean(path)
	return filepath.Dir(cleaned), filepath.Base(cleaned)
}

// NormalizeExistingDir canonicalizes in, which must already exist and
// be a directory, by resolving symlinks and relative components. It is
// used for source arguments, which must exist before a worker can be
// started.
func NormalizeExistingDir(in string) (string, error) {
	real, err := filepath.EvalSymlinks(in)
	if err != nil {
		return "", errors.Wrap(err, "unable to resolve path")
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", errors.Wrap(err, "unable to stat path")
	}
	if !info.IsDir() {
		return "", errors.New("path is not a directory")
	}
	return real, nil
}

// NormalizeTargetPath canonicalizes in for use as a target that may or
// may not exist yet. If the full path resolves, that resolution is
// used directly. Otherwise the parent directory is canonicalized and
// the basename is appended verbatim, per spec: targets that don't yet
// exist still need a stable, symlink-resolved prefix for comparison and
// for rewriting absolute symlinks.
func NormalizeTargetPath(in string) (string, error) {
	if real, err := filepath.EvalSymlinks(in); err == nil {
		return real, nil
	}

	dir, base := SplitDirBase(in)
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", errors.Wrap(err, "unable to resolve parent directory")
	}
	return filepath.Join(realDir, base), nil
}

// Map translates a canonical path under srcReal into its counterpart
// under dstReal. It fails if p is not srcReal itself and does not have
// srcReal as a proper prefix component.
func Map(srcReal, dstReal, p string) (string, error) {
	if p == srcReal {
		return dstReal, nil
	}
	if !HasPrefix(p, srcReal) {
		return "", errors.Errorf("path %q is not under %q", p, srcReal)
	}
	suffix := strings.TrimPrefix(p[len(srcReal):], "/")
	return filepath.Join(dstReal, suffix), nil
}

// EnsureParentDir creates the parent directory of p (and any missing
// ancestors) with mode 0755, tolerating pre-existence. It is a no-op if
// the parent is "." or "/".
func EnsureParentDir(p string) error {
	dir, _ := SplitDirBase(p)
	if dir == "." || dir == "/" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "unable to create parent directory")
	}
	return nil
}

// IsEmptyDir reports whether path is an existing, empty directory.
func IsEmptyDir(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errors.Wrap(err, "unable to open directory")
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, errors.Wrap(err, "unable to read directory")
}

// EnsureEmptyTargetDir validates that dst is usable as a fresh mirror
// target: either it doesn't exist yet, or it exists and is an empty
// directory. It does not create dst.
func EnsureEmptyTargetDir(dst string) error {
	info, err := os.Lstat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "unable to stat target")
	}
	if !info.IsDir() {
		return errors.Errorf("%s exists and is not a directory", dst)
	}
	empty, err := IsEmptyDir(dst)
	if err != nil {
		return err
	}
	if !empty {
		return errors.Errorf("%s exists and is not empty", dst)
	}
	return nil
}

// CreateEmptyDir ensures dst exists as a directory, creating it (and
// any missing ancestors) with mode 0755 if necessary. Callers must have
// already validated emptiness with EnsureEmptyTargetDir.
func CreateEmptyDir(dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return nil
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return errors.Wrap(err, "unable to create target directory")
	}
	return nil
}
