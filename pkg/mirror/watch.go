package mirror

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Watch pairs a kernel watch descriptor with the canonical path it
// watches.
type Watch struct {
	WD   int32
	Path string
}

// WatchMap is the bidirectional registry of {watch descriptor ↔
// watched path} for a single worker. It mirrors watch_map.c's dynamic
// array, including its amortized-doubling growth from a capacity of
// 64 and its swap-with-last removal, rather than reaching for a plain
// map[int32]string: the original's add_watch_tree/update_prefix/
// remove_subtree all need to walk every entry doing prefix tests
// anyway, so there is no lookup-by-path operation to justify a second
// index, and the slice keeps iteration order stable for tests that
// assert on prefix-rewrite results.
//
// A WatchMap is worker-local: only the goroutine that owns the
// worker's mirror engine modifies it. Every method takes the map's
// mutex, so reads such as Find, Len and Snapshot are also safe from
// other goroutines.
type WatchMap struct {
	mu      sync.Mutex
	entries []Watch
}

// NewWatchMap returns an empty WatchMap, pre-sized to the original's
// initial capacity of 64 entries.
func NewWatchMap() *WatchMap {
	return &WatchMap{entries: make([]Watch, 0, 64)}
}

// Add registers a new watch. It takes ownership of path in the sense
// that callers should not mutate the string they passed afterward
// (strings are immutable in Go, so this is purely documentation of
// intent carried over from the C original's strdup-based ownership).
func (m *WatchMap) Add(wd int32, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Watch{WD: wd, Path: path})
}

// Find returns the watch registered for wd, if any.
func (m *WatchMap) Find(wd int32) (Watch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.entries {
		if w.WD == wd {
			return w, true
		}
	}
	return Watch{}, false
}

// Remove deletes the entry for wd via swap-with-last, matching the
// original's watch_remove. It is a no-op if wd is not registered.
func (m *WatchMap) Remove(wd int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.entries {
		if w.WD == wd {
			last := len(m.entries) - 1
			m.entries[i] = m.entries[last]
			m.entries = m.entries[:last]
			return
		}
	}
}

// UpdatePrefix rewrites the prefix of every watched path that has old
// as a path-prefix to new instead, used when a directory is renamed
// within the source tree so that subsequent events under the renamed
// subtree still translate to the correct target paths.
func (m *WatchMap) UpdatePrefix(old, new string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.entries {
		if !hasPrefix(w.Path, old) {
			continue
		}
		suffix := strings.TrimPrefix(w.Path[len(old):], "/")
		if suffix == "" {
			m.entries[i].Path = new
		} else {
			m.entries[i].Path = new + "/" + suffix
		}
	}
}

// RemoveSubtreeFunc is invoked once per watch descriptor being
// detached from the map by RemoveSubtree, so the caller can release
// the underlying kernel resource (inotify_rm_watch).
type RemoveSubtreeFunc func(wd int32)

// RemoveSubtree detaches every watch whose path has prefix as a
// path-prefix, invoking release for each one before dropping it from
// the map.
func (m *WatchMap) RemoveSubtree(prefix string, release RemoveSubtreeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, w := range m.entries {
		if hasPrefix(w.Path, prefix) {
			if release != nil {
				release(w.WD)
			}
			continue
		}
		kept = append(kept, w)
	}
	m.entries = kept
}

// Len reports the number of live watches.
func (m *WatchMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Snapshot returns a copy of the current watch list, for diagnostics
// and tests.
func (m *WatchMap) Snapshot() []Watch {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Watch, len(m.entries))
	copy(out, m.entries)
	return out
}

func hasPrefix(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	return len(s) == len(prefix) || s[len(prefix)] == '/'
}

// ErrWatchRecursionFailed is returned by AddWatchTree when a failure
// partway through recursive registration leaves the tree partially
// watched, per spec.md §4.4 ("Failures mid-recursion leave partial
// registration; callers must tolerate this"). The map still contains
// whatever watches were successfully added before the failure.
var ErrWatchRecursionFailed = errors.New("recursive watch registration failed")
