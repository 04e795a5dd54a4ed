package mirror

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// AddWatchTree subscribes to base and recurses into every subdirectory
// that is itself a directory and not a symlink, mirroring
// add_watch_tree. A failure partway through recursion leaves whatever
// watches were already registered in place (the returned error wraps
// ErrWatchRecursionFailed, with the underlying cause's message as its
// context); spec.md §4.4/§7 requires
// callers to tolerate this rather than unwind it.
func AddWatchTree(notifier *Notifier, watches *WatchMap, base string) error {
	wd, err := notifier.Watch(base)
	if err != nil {
		return errors.Wrap(ErrWatchRecursionFailed, err.Error())
	}
	watches.Add(wd, base)

	entries, err := os.ReadDir(base)
	if err != nil {
		return errors.Wrap(ErrWatchRecursionFailed, err.Error())
	}

	for _, dirEntry := range entries {
		child := filepath.Join(base, dirEntry.Name())

		entry, err := Stat(child)
		if err != nil {
			return errors.Wrap(ErrWatchRecursionFailed, err.Error())
		}
		if entry.Kind == KindDirectory {
			if err := AddWatchTree(notifier, watches, child); err != nil {
				return err
			}
		}
	}
	return nil
}
