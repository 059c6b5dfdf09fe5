package device

import "errors"

// Device-construction error kinds (spec §7). Each is non-recoverable for
// the device under construction; the caller decides whether to reject or
// merely log depending on whether it is on the insertion or presence path.
var (
	ErrMissingSyspath     = errors.New("device: missing syspath")
	ErrMissingSysname     = errors.New("device: missing sysname")
	ErrMissingAuthorized  = errors.New("device: missing authorized attribute")
	ErrDescriptorTooShort = errors.New("device: descriptor stream shorter than device descriptor")
)
