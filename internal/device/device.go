// Package device implements the Device Model: construction from a kernel
// device handle, hashing, controller classification, and the per-device
// mutex guarding cached target transitions.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/usbguard/usbguard/internal/descriptor"
	"github.com/usbguard/usbguard/internal/iface"
	"github.com/usbguard/usbguard/internal/rule"
	"github.com/usbguard/usbguard/internal/usbid"
)

// ROOT is the reserved parent_id value for a device whose parent is not
// itself a USB device.
const ROOT uint32 = 0

// Device is a constructed, manager-owned record of a USB device's observed
// state. Every field but target is immutable after construction; target is
// guarded by mu against concurrent policy-application writes.
type Device struct {
	ID       uint32
	ParentID uint32
	SysPath  string

	name           string
	deviceID       usbid.ID
	serial         string
	port           string
	interfaceTypes []iface.Type
	hash           string
	parentHash     string

	mu     sync.Mutex
	target rule.Target
}

// The accessors below implement rule.Observable so a *Device can be
// matched directly against a Ruleset.

func (d *Device) DeviceID() usbid.ID           { return d.deviceID }
func (d *Device) Name() string                 { return d.name }
func (d *Device) Hash() string                 { return d.hash }
func (d *Device) ParentHash() string           { return d.parentHash }
func (d *Device) Serial() string               { return d.serial }
func (d *Device) Port() string                 { return d.port }
func (d *Device) InterfaceTypes() []iface.Type { return d.interfaceTypes }

// Target returns the device's currently cached applied target.
func (d *Device) Target() rule.Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}

// Backend is the subset of policy.Backend that Apply needs; declared here
// rather than imported so that device does not depend on policy (device
// has no use for policy's other exports).
type Backend interface {
	Apply(syspath string, target rule.Target) error
}

// Apply performs the policy-application protocol from spec §4.F/§5 for a
// single device: acquire the device's mutex, perform the backend
// operation, update the cached target only on success, release. This
// keeps the mutex held across the backend call itself so concurrent
// Allow/Block/Reject calls against the same device serialize rather than
// racing on the sysfs write.
func (d *Device) Apply(backend Backend, target rule.Target) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := backend.Apply(d.SysPath, target); err != nil {
		return err
	}
	d.target = target
	return nil
}

// IsController reports whether d is a root hub / host controller device:
// its port begins with "usb" and it declares exactly one interface type,
// which applies to the hub pattern.
func (d *Device) IsController() bool {
	if len(d.port) < 3 || d.port[:3] != "usb" {
		return false
	}
	if len(d.interfaceTypes) != 1 {
		return false
	}
	return iface.Hub().AppliesTo(d.interfaceTypes[0])
}

func authorizedToTarget(raw string) rule.Target {
	switch raw {
	case "1":
		return rule.Allow
	default:
		return rule.Block
	}
}

// Construct builds a Device from a kernel handle, per spec §4.E. resolver
// maps an already-registered parent device's syspath to its ID; if the
// handle's parent is not itself a USB device (or has no registered ID
// yet), ParentID is set to ROOT and the parent hash is derived from the
// parent's own locator.
func Construct(h Handle, resolver ParentResolver) (*Device, error) {
	syspath := h.SysPath()
	if syspath == "" {
		return nil, ErrMissingSyspath
	}
	sysname := h.SysName()
	if sysname == "" {
		return nil, ErrMissingSysname
	}

	d := &Device{SysPath: syspath, port: sysname}

	d.ParentID, d.parentHash = resolveParent(h, resolver)

	name, _ := h.Attribute("product")
	vendor, _ := h.Attribute("idVendor")
	product, _ := h.Attribute("idProduct")
	serial, _ := h.Attribute("serial")

	d.name = name
	d.serial = serial
	if vendor != "" || product != "" {
		if id, err := usbid.New(vendor, product); err == nil {
			d.deviceID = id
		}
	}

	authorized, ok := h.Attribute("authorized")
	if !ok {
		return nil, ErrMissingAuthorized
	}
	d.target = authorizedToTarget(authorized)

	raw, err := h.Descriptors()
	if err != nil {
		return nil, err
	}

	p := newDeviceDescriptorParser(d)
	consumed, err := p.Parse(raw)
	if err != nil {
		return nil, err
	}
	if consumed < descriptor.DeviceDescriptorSize {
		return nil, ErrDescriptorTooShort
	}

	d.hash = hashBytes(raw[:consumed])

	return d, nil
}

// newDeviceDescriptorParser wires a descriptor.Parser with handlers for
// the descriptor types the device model cares about: interface
// descriptors feed interfaceTypes in encounter order, everything else is
// decoded only to validate and advance the stream.
func newDeviceDescriptorParser(d *Device) *descriptor.Parser {
	p := descriptor.New()
	p.SetHandler(descriptor.TypeDevice, descriptor.DeviceDescriptorSize,
		func(raw []byte) (any, error) { return descriptor.DecodeDeviceDescriptor(raw) },
		func([]byte, any) {})
	p.SetHandler(descriptor.TypeConfiguration, descriptor.ConfigurationDescriptorSize,
		func(raw []byte) (any, error) { return descriptor.DecodeConfigurationDescriptor(raw) },
		func([]byte, any) {})
	p.SetHandler(descriptor.TypeInterface, descriptor.InterfaceDescriptorSize,
		func(raw []byte) (any, error) { return descriptor.DecodeInterfaceDescriptor(raw) },
		func(_ []byte, decoded any) {
			ifd := decoded.(descriptor.InterfaceDescriptor)
			d.interfaceTypes = append(d.interfaceTypes, iface.FromBytes(
				ifd.InterfaceClass, ifd.InterfaceSubClass, ifd.InterfaceProtocol))
		})
	p.SetHandler(descriptor.TypeEndpoint, descriptor.EndpointDescriptorSize,
		func(raw []byte) (any, error) { return descriptor.DecodeEndpointDescriptor(raw) },
		func([]byte, any) {})
	p.SetHandler(descriptor.TypeEndpoint, descriptor.AudioEndpointDescriptorSize,
		func(raw []byte) (any, error) { return descriptor.DecodeAudioEndpointDescriptor(raw) },
		func([]byte, any) {})
	return p
}

func resolveParent(h Handle, resolver ParentResolver) (parentID uint32, parentHash string) {
	parent, ok := h.Parent()
	if !ok {
		return ROOT, ""
	}
	if parent.IsUSBDevice() {
		if id, found := resolver.IDForSysPath(parent.SysPath()); found {
			return id, ""
		}
	}
	return ROOT, hashBytes([]byte(parent.SysPath()))
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
