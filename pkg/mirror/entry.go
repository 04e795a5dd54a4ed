package mirror

import (
	"os"

	"github.com/pkg/errors"
)

// Kind identifies the on-disk type of an entry as seen by lstat,
// following the teacher's pattern of computing a single tagged variant
// from a stat result once and then switching on it everywhere (core,
// copy, restore), rather than re-testing file-mode bits at each call
// site (DESIGN NOTES, "Polymorphism over file entries").
type Kind uint8

const (
	// KindOther covers device files, sockets, and anything else that
	// isn't a directory, regular file, or symlink. copy_tree logs and
	// skips these; restore never encounters them as backup content.
	KindOther Kind = iota
	KindDirectory
	KindFile
	KindSymlink
)

// String renders k for logging.
func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// Entry pairs a path's Kind with its lstat permission bits and the
// underlying os.FileInfo, so that copy/restore/delete code can dispatch
// once and reuse the stat result.
type Entry struct {
	Kind Kind
	Mode os.FileMode
	Info os.FileInfo
}

// Stat lstats path and classifies it into an Entry. It does not follow
// symlinks, matching every traversal in this package.
func Stat(path string) (Entry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Entry{}, err
	}
	return classify(info), nil
}

func classify(info os.FileInfo) Entry {
	mode := info.Mode()
	entry := Entry{Mode: mode.Perm(), Info: info}
	switch {
	case mode&os.ModeSymlink != 0:
		entry.Kind = KindSymlink
	case mode.IsDir():
		entry.Kind = KindDirectory
	case mode.IsRegular():
		entry.Kind = KindFile
	default:
		entry.Kind = KindOther
	}
	return entry
}

// sameType reports whether two entries should be considered the same
// type for restore-reconciliation purposes (directory, regular file, or
// symlink; KindOther is never considered to match anything, including
// itself, since restore never treats "other" content as authoritative).
func sameType(a, b Entry) bool {
	if a.Kind == KindOther || b.Kind == KindOther {
		return false
	}
	return a.Kind == b.Kind
}

// ErrCancelled is returned by copy/restore operations that observed a
// stop request mid-operation.
var ErrCancelled = errors.New("operation cancelled")
