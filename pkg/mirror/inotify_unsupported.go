//go:build !linux

package mirror

import "github.com/pkg/errors"

// Event mask bits, mirrored here so that engine.go and its unit tests
// compile on every platform. They are distinct bits that dispatch can
// test against; no kernel produces events carrying them here, since
// Notifier always fails to construct.
const (
	MaskCreate     = 1 << iota
	MaskDelete
	MaskMovedFrom
	MaskMovedTo
	MaskCloseWrite
	MaskDeleteSelf
	MaskMoveSelf
	MaskIgnored
	MaskIsDir
)

// RawEvent mirrors the Linux definition so that engine.go's dispatch
// logic is platform-independent even though only Linux can produce
// instances of it.
type RawEvent struct {
	WD     int32
	Mask   uint32
	Cookie uint32
	Name   string
}

// IsDir reports whether the event subject was a directory.
func (e RawEvent) IsDir() bool { return e.Mask&MaskIsDir != 0 }

// Notifier has no implementation on non-Linux platforms: spec.md §6.3
// explicitly scopes the notification backend to "a Linux-style
// recursive watch primitive" and lists alternative backends as a
// requirement for ports, not something this system provides itself
// (Non-goals: "no windows/macOS notification backends").
type Notifier struct{}

// NewNotifier always fails on this platform.
func NewNotifier() (*Notifier, error) {
	return nil, errors.New("filesystem change notification is only implemented for linux")
}

// NewNotifierTuned always fails on this platform; tuning is accepted
// only so engine.go's call site does not need a build-tagged branch.
func NewNotifierTuned(tuning Tuning) (*Notifier, error) {
	return nil, errors.New("filesystem change notification is only implemented for linux")
}

func (n *Notifier) Watch(path string) (int32, error) {
	return 0, errors.New("unsupported platform")
}

func (n *Notifier) Unwatch(wd int32) {}

func (n *Notifier) Poll() (bool, error) {
	return false, errors.New("unsupported platform")
}

func (n *Notifier) ReadBatch() ([]RawEvent, error) {
	return nil, errors.New("unsupported platform")
}

func (n *Notifier) Close() error {
	return nil
}
