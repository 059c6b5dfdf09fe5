package udev

import "github.com/usbguard/usbguard/internal/device"

// Action tags a hotplug event the way the kernel reports it; only Add and
// Remove are acted on by the device manager, per spec §4.F.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// HotplugEvent is a single hotplug notification: a tagged action carrying
// the device's opaque handle (for Add) or just its syspath (for Remove,
// where the handle's sysfs attributes may already be gone by the time the
// worker processes it).
type HotplugEvent struct {
	Action  Action
	SysPath string
	Handle  device.Handle // nil for Remove
}
