package device

// Handle is the opaque kernel device handle a Hotplug source or the
// enumeration path hands to Construct. Implementations read sysfs (or an
// equivalent) lazily; Construct never retains it past the call.
type Handle interface {
	// SysPath is the backend locator used later for policy application and
	// for the syspath->ID map. Must be non-empty.
	SysPath() string

	// SysName is the kernel device name (e.g. "2-1.4"); used as Device.Port.
	// Must be non-empty.
	SysName() string

	// Attribute reads a single sysfs attribute by name. ok is false if the
	// attribute is absent.
	Attribute(name string) (value string, ok bool)

	// Descriptors returns the raw concatenated USB descriptor byte stream
	// for this device, read from offset 0.
	Descriptors() ([]byte, error)

	// Parent returns the handle's parent device and true, or ok=false at
	// the top of the USB device tree (including non-USB parents).
	Parent() (parent Handle, ok bool)

	// IsUSBDevice reports whether this handle itself refers to a USB device
	// (subsystem "usb", devtype "usb_device"), as opposed to an interface
	// or a non-USB ancestor.
	IsUSBDevice() bool
}

// ParentResolver maps a previously constructed device's syspath to its
// manager-assigned ID. The Device Manager's syspath->ID map implements it.
type ParentResolver interface {
	IDForSysPath(syspath string) (id uint32, ok bool)
}
