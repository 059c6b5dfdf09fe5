package manager

import "github.com/usbguard/usbguard/internal/device"

// NotificationKind tags an outbound notification (spec §6).
type NotificationKind int

const (
	DevicePresent NotificationKind = iota
	DeviceInserted
	DeviceRemoved
	DeviceAllowed
	DeviceBlocked
	DeviceRejected
)

func (k NotificationKind) String() string {
	switch k {
	case DevicePresent:
		return "DevicePresent"
	case DeviceInserted:
		return "DeviceInserted"
	case DeviceRemoved:
		return "DeviceRemoved"
	case DeviceAllowed:
		return "DeviceAllowed"
	case DeviceBlocked:
		return "DeviceBlocked"
	case DeviceRejected:
		return "DeviceRejected"
	default:
		return "Unknown"
	}
}

// Notification carries the kind of event alongside the device it concerns.
// Device points at the manager's live record, not a copy: its cached
// target reflects any policy application made after the notification was
// sent.
type Notification struct {
	Kind   NotificationKind
	Device *device.Device
}
