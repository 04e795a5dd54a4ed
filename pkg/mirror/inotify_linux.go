//go:build linux

package mirror

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// watchMask is the event mask installed on every directory watch,
// matching add_watch_tree's IN_CREATE|IN_DELETE|IN_MOVED_FROM|
// IN_MOVED_TO|IN_CLOSE_WRITE|IN_DELETE_SELF|IN_MOVE_SELF|IN_IGNORED.
const watchMask = unix.IN_CREATE | unix.IN_DELETE | unix.IN_MOVED_FROM |
	unix.IN_MOVED_TO | unix.IN_CLOSE_WRITE | unix.IN_DELETE_SELF |
	unix.IN_MOVE_SELF | unix.IN_IGNORED

// Event mask bits re-exported so that callers outside this file (the
// mirror engine) don't need a build-tagged import of golang.org/x/sys.
const (
	MaskCreate     = unix.IN_CREATE
	MaskDelete     = unix.IN_DELETE
	MaskMovedFrom  = unix.IN_MOVED_FROM
	MaskMovedTo    = unix.IN_MOVED_TO
	MaskCloseWrite = unix.IN_CLOSE_WRITE
	MaskDeleteSelf = unix.IN_DELETE_SELF
	MaskMoveSelf   = unix.IN_MOVE_SELF
	MaskIgnored    = unix.IN_IGNORED
	MaskIsDir      = unix.IN_ISDIR
)

// RawEvent is a single kernel notification, demultiplexed from a raw
// inotify read buffer: the watch descriptor it arrived on, the mask,
// the rename-correlation cookie (0 if not applicable), and the child
// name (empty for events that apply to the watched directory itself,
// such as IN_IGNORED or IN_DELETE_SELF).
type RawEvent struct {
	WD     int32
	Mask   uint32
	Cookie uint32
	Name   string
}

// IsDir reports whether the event subject was a directory.
func (e RawEvent) IsDir() bool { return e.Mask&unix.IN_ISDIR != 0 }

// Notifier wraps a raw inotify file descriptor. It intentionally does
// not wrap fsnotify or the teacher's vendored third_party/notify
// package: both correlate MOVED_FROM/MOVED_TO pairs internally before
// handing events to the caller, which would hide the rename cookie
// that the pending-move correlator (pending.go) needs to do its own
// correlation per spec.md §4.5. See DESIGN.md.
type Notifier struct {
	fd            int
	bufSize       int
	pollTimeoutMS int
}

// NewNotifier opens a new inotify instance using spec.md's literal
// defaults (4096-byte read buffer, 100ms poll timeout).
func NewNotifier() (*Notifier, error) {
	return NewNotifierTuned(DefaultTuning())
}

// NewNotifierTuned opens a new inotify instance sized and timed
// according to tuning (see pkg/config), falling back to spec.md's
// defaults for any unset field.
func NewNotifierTuned(tuning Tuning) (*Notifier, error) {
	tuning = tuning.withDefaults()
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialize inotify")
	}
	return &Notifier{fd: fd, bufSize: tuning.EventBufferSize, pollTimeoutMS: tuning.PollTimeoutMillis}, nil
}

// Watch installs a watch on path with the fixed mask used throughout
// this system, returning the kernel-assigned watch descriptor.
func (n *Notifier) Watch(path string) (int32, error) {
	wd, err := unix.InotifyAddWatch(n.fd, path, watchMask)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to watch %s", path)
	}
	return int32(wd), nil
}

// Unwatch removes a previously installed watch. Errors are tolerated:
// the kernel may have already invalidated the descriptor (e.g. after
// the watched path was removed), which is the expected common case for
// calls driven by DELETE/MOVED_FROM reconciliation.
func (n *Notifier) Unwatch(wd int32) {
	_, _ = unix.InotifyRmWatch(n.fd, uint32(wd))
}

// Poll waits up to the configured poll timeout (100ms by default) for
// events to become available. It returns true if the descriptor is
// ready to read, false on timeout. A poll interrupted by EINTR is
// retried; any other error is returned.
func (n *Notifier) Poll() (ready bool, err error) {
	fds := []unix.PollFd{{Fd: int32(n.fd), Events: unix.POLLIN}}
	for {
		count, err := unix.Poll(fds, n.pollTimeoutMS)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return false, errors.Wrap(err, "poll failed")
		}
		return count > 0, nil
	}
}

// ReadBatch reads one batch of pending events. It must only be called
// after Poll has reported readiness.
func (n *Notifier) ReadBatch() ([]RawEvent, error) {
	buf := make([]byte, n.bufSize)
	for {
		count, err := unix.Read(n.fd, buf)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return nil, errors.Wrap(err, "read failed")
		}
		return parseEvents(buf[:count]), nil
	}
}

// Close shuts down the notifier, implicitly releasing every watch the
// kernel still holds for it.
func (n *Notifier) Close() error {
	return unix.Close(n.fd)
}

const sizeofInotifyEvent = unix.SizeofInotifyEvent

func parseEvents(buf []byte) []RawEvent {
	var events []RawEvent
	offset := 0
	for offset+sizeofInotifyEvent <= len(buf) {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		nameLen := int(raw.Len)
		nameStart := offset + sizeofInotifyEvent
		name := ""
		if nameLen > 0 && nameStart+nameLen <= len(buf) {
			nameBytes := buf[nameStart : nameStart+nameLen]
			if idx := indexNUL(nameBytes); idx >= 0 {
				nameBytes = nameBytes[:idx]
			}
			name = string(nameBytes)
		}
		events = append(events, RawEvent{
			WD:     raw.Wd,
			Mask:   raw.Mask,
			Cookie: raw.Cookie,
			Name:   name,
		})
		offset = nameStart + nameLen
	}
	return events
}

func indexNUL(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}
