// Package policy defines the policy-application backend capability
// consumed by the device manager: translating a decided target into a
// concrete operation against the device's kernel state.
package policy

import (
	"errors"

	"github.com/usbguard/usbguard/internal/rule"
)

// ErrBackendIO is returned when a backend write fails at the OS level. The
// device manager surfaces it without updating the device's cached target.
var ErrBackendIO = errors.New("policy: backend i/o error")

// ErrInvalidTarget is returned when asked to apply a target the backend
// has no operation for (anything but Allow, Block, Reject).
var ErrInvalidTarget = errors.New("policy: invalid target for backend")

// Backend applies a decided Target to the device located at syspath. Per
// spec §6: ALLOW writes "1" to {syspath}/authorized, BLOCK writes "0" to
// the same file, REJECT writes "1" to {syspath}/remove; any other target
// fails with ErrInvalidTarget.
type Backend interface {
	Apply(syspath string, target rule.Target) error
}

// DefaultController toggles the system-wide authorization default applied
// to newly arriving devices before any rule has been evaluated against
// them. The device manager sets it to blocked at startup and restores the
// previous value at shutdown (spec §4.F).
type DefaultController interface {
	// SetDefault installs allowed as the new default, returning the value
	// that was in effect beforehand.
	SetDefault(allowed bool) (previous bool, err error)
}

