package mirror

import (
	"time"

	"github.com/pkg/errors"

	"github.com/spdsslg/backup-automation/pkg/logging"
	"github.com/spdsslg/backup-automation/pkg/pathutil"
)

// Engine is the per-pair mirroring worker: it performs the initial
// full tree copy and then drives the event-to-filesystem-action
// translation loop described in spec.md §4.6, on top of the watch
// registry and pending-move correlator. It is the Go analogue of the
// original's monitor_and_mirror plus its call site in child_loop,
// adapted from a forked child process into a goroutine-owned value
// (compare to the teacher's synchronization controller, which plays
// the same "one isolated execution context per managed pair" role).
type Engine struct {
	SrcReal string
	DstReal string

	stop     *StopFlag
	notifier *Notifier
	watches  *WatchMap
	pending  *PendingMoveTable
	logger   *logging.Logger
	tuning   Tuning
}

// NewEngine constructs an Engine for the given canonical source and
// destination, using spec.md's literal tuning defaults. It does not
// touch the filesystem or the kernel; call Run to perform the initial
// copy and enter the event loop.
func NewEngine(srcReal, dstReal string, stop *StopFlag, logger *logging.Logger) *Engine {
	return NewEngineTuned(srcReal, dstReal, stop, logger, DefaultTuning())
}

// NewEngineTuned is NewEngine with an explicit Tuning, as supplied by
// the worker registry from the resolved configuration (pkg/config).
func NewEngineTuned(srcReal, dstReal string, stop *StopFlag, logger *logging.Logger, tuning Tuning) *Engine {
	tuning = tuning.withDefaults()
	return &Engine{
		SrcReal: srcReal,
		DstReal: dstReal,
		stop:    stop,
		watches: NewWatchMap(),
		pending: NewPendingMoveTableTuned(tuning),
		logger:  logger,
		tuning:  tuning,
	}
}

// Run performs the initial mirror (CopyTree) and then the live
// incremental mirror loop, blocking until the stop flag is observed,
// the root is deleted/renamed away, or an unrecoverable error occurs.
// Preconditions per spec.md §4.6: SrcReal exists and is a directory;
// DstReal exists and is empty. Callers (the registry) are responsible
// for enforcing these before calling Run.
func (e *Engine) Run() error {
	if err := CopyTree(e.SrcReal, e.DstReal, e.SrcReal, e.DstReal, e.stop, e.logger.Debugf); err != nil {
		if errors.Is(err, ErrCancelled) {
			return ErrCancelled
		}
		return errors.Wrap(err, "initial copy failed")
	}

	notifier, err := NewNotifierTuned(e.tuning)
	if err != nil {
		return errors.Wrap(err, "unable to start filesystem notifier")
	}
	e.notifier = notifier
	defer e.notifier.Close()

	if err := AddWatchTree(e.notifier, e.watches, e.SrcReal); err != nil {
		return errors.Wrap(err, "unable to register watches")
	}

	return e.loop()
}

// reclaim removes pm.DstOld from the mirror and, if the move concerned
// a directory, detaches its subtree from the watch map. It is the
// shared path used both for 1-second move-timeout expiry and for
// eviction under pending-table overflow (spec.md §4.5/§9): an evicted
// entry gets exactly the same treatment as a timed-out one rather than
// being silently dropped.
func (e *Engine) reclaim(pm PendingMove) {
	if err := RemoveTree(pm.DstOld); err != nil {
		e.logger.Warn(errors.Wrapf(err, "unable to reclaim stale mirror entry %s", pm.DstOld))
	}
	if pm.IsDir {
		e.watches.RemoveSubtree(pm.SrcOld, e.notifier.Unwatch)
	}
}

func (e *Engine) loop() error {
	for !e.stop.Stopped() {
		for _, expired := range e.pending.ExpireOlderThan(time.Now()) {
			e.reclaim(expired)
		}

		ready, err := e.notifier.Poll()
		if err != nil {
			e.logger.Warn(errors.Wrap(err, "poll failed"))
			continue
		}
		if !ready {
			continue
		}

		events, err := e.notifier.ReadBatch()
		if err != nil {
			e.logger.Warn(errors.Wrap(err, "read failed"))
			continue
		}

		for _, event := range events {
			if e.dispatch(event) {
				return nil
			}
		}
	}
	return nil
}

// dispatch handles a single raw event, following the table in
// spec.md §4.6. It returns true if the worker should terminate (the
// watched root itself was deleted or renamed away).
func (e *Engine) dispatch(event RawEvent) bool {
	if event.Mask&MaskIgnored != 0 {
		e.watches.Remove(event.WD)
		return false
	}

	watch, found := e.watches.Find(event.WD)
	if !found {
		return false
	}

	srcPath := watch.Path
	if event.Name != "" {
		srcPath = watch.Path + "/" + event.Name
	}

	dstPath, err := pathutil.Map(e.SrcReal, e.DstReal, srcPath)
	if err != nil {
		return false
	}

	isDir := event.IsDir()

	if event.Mask&(MaskDeleteSelf|MaskMoveSelf) != 0 && srcPath == e.SrcReal {
		e.stop.Set()
		return true
	}

	if event.Mask&MaskMovedFrom != 0 {
		if evicted := e.pending.Insert(event.Cookie, isDir, time.Now(), srcPath, dstPath); evicted != nil {
			e.reclaim(*evicted)
		}
		return false
	}

	if event.Mask&MaskMovedTo != 0 {
		e.handleMovedTo(event.Cookie, srcPath, dstPath, isDir)
		return false
	}

	if event.Mask&MaskCreate != 0 {
		e.handleCreate(srcPath, dstPath, isDir)
		return false
	}

	if event.Mask&MaskCloseWrite != 0 && !isDir {
		e.mirrorCreateOrUpdate(srcPath, dstPath)
		return false
	}

	if event.Mask&MaskDelete != 0 {
		if err := RemoveTree(dstPath); err != nil {
			e.logger.Warn(errors.Wrapf(err, "unable to remove %s", dstPath))
		}
		if isDir {
			e.watches.RemoveSubtree(srcPath, e.notifier.Unwatch)
		}
	}

	return false
}

func (e *Engine) handleMovedTo(cookie uint32, srcPath, dstPath string, isDir bool) {
	if pm, ok := e.pending.Take(cookie); ok {
		if err := pathutil.EnsureParentDir(dstPath); err != nil {
			e.logger.Warn(errors.Wrapf(err, "unable to prepare %s for rename", dstPath))
			return
		}
		if err := renamePath(pm.DstOld, dstPath); err != nil {
			e.logger.Warn(errors.Wrapf(err, "unable to rename %s to %s", pm.DstOld, dstPath))
			return
		}
		if pm.IsDir {
			e.watches.UpdatePrefix(pm.SrcOld, srcPath)
		}
		return
	}

	// No pending MOVED_FROM carries this cookie: the entry was moved in
	// from outside the watched tree. Directories get the full create
	// treatment; anything else is already complete (no CLOSE_WRITE will
	// follow a move), so it is mirrored right away.
	if isDir {
		e.handleCreate(srcPath, dstPath, isDir)
		return
	}
	e.mirrorCreateOrUpdate(srcPath, dstPath)
}

func (e *Engine) handleCreate(srcPath, dstPath string, isDir bool) {
	if isDir {
		e.mirrorCreateOrUpdate(srcPath, dstPath)
		if err := AddWatchTree(e.notifier, e.watches, srcPath); err != nil {
			e.logger.Warn(errors.Wrapf(err, "unable to watch new subtree %s", srcPath))
		}
		// Races: CREATE events for children of srcPath may have
		// predated its watch registration, so enumerate existing
		// children explicitly rather than relying solely on events.
		if err := CopyTree(srcPath, dstPath, e.SrcReal, e.DstReal, e.stop, e.logger.Debugf); err != nil && !errors.Is(err, ErrCancelled) {
			e.logger.Warn(errors.Wrapf(err, "unable to copy new subtree %s", srcPath))
		}
		return
	}

	entry, err := Stat(srcPath)
	if err != nil {
		return
	}
	// Regular files are mirrored on CLOSE_WRITE (the commit point) to
	// avoid copying partial writes; only symlinks are mirrored here.
	if entry.Kind == KindSymlink {
		e.mirrorCreateOrUpdate(srcPath, dstPath)
	}
}

// mirrorCreateOrUpdate lstats srcPath and replicates it at dstPath,
// creating the parent directory first, mirroring
// mirror_create_or_update.
func (e *Engine) mirrorCreateOrUpdate(srcPath, dstPath string) {
	entry, err := Stat(srcPath)
	if err != nil {
		return
	}
	if err := pathutil.EnsureParentDir(dstPath); err != nil {
		e.logger.Warn(errors.Wrapf(err, "unable to prepare %s", dstPath))
		return
	}

	switch entry.Kind {
	case KindDirectory:
		if err := mkdirTolerant(dstPath, entry.Mode); err != nil {
			e.logger.Warn(errors.Wrapf(err, "unable to create directory %s", dstPath))
		}
	case KindFile:
		if err := CopyFile(srcPath, dstPath, entry.Mode, e.stop); err != nil && !errors.Is(err, ErrCancelled) {
			e.logger.Warn(errors.Wrapf(err, "unable to copy %s", srcPath))
		}
	case KindSymlink:
		if err := CopySymlinkRewrite(srcPath, dstPath, e.SrcReal, e.DstReal); err != nil {
			e.logger.Warn(errors.Wrapf(err, "unable to rewrite symlink %s", srcPath))
		}
	}
}
