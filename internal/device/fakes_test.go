package device_test

import (
	"errors"

	"github.com/usbguard/usbguard/internal/device"
	"github.com/usbguard/usbguard/internal/rule"
)

// fakeHandle implements device.Handle entirely in memory, standing in for a
// libudev-backed handle in construction tests.
type fakeHandle struct {
	syspath     string
	sysname     string
	attrs       map[string]string
	descriptors []byte
	descErr     error
	parent      *fakeHandle
	isUSB       bool
}

func (h *fakeHandle) SysPath() string { return h.syspath }
func (h *fakeHandle) SysName() string { return h.sysname }

func (h *fakeHandle) Attribute(name string) (string, bool) {
	v, ok := h.attrs[name]
	return v, ok
}

func (h *fakeHandle) Descriptors() ([]byte, error) {
	if h.descErr != nil {
		return nil, h.descErr
	}
	return h.descriptors, nil
}

func (h *fakeHandle) Parent() (device.Handle, bool) {
	if h.parent == nil {
		return nil, false
	}
	return h.parent, true
}

func (h *fakeHandle) IsUSBDevice() bool { return h.isUSB }

// fakeResolver implements device.ParentResolver over an in-memory map.
type fakeResolver struct {
	byPath map[string]uint32
}

func (r *fakeResolver) IDForSysPath(syspath string) (uint32, bool) {
	id, ok := r.byPath[syspath]
	return id, ok
}

// fakeBackend implements device.Backend, recording every Apply call and
// optionally failing.
type fakeBackend struct {
	err   error
	calls []fakeBackendCall
}

type fakeBackendCall struct {
	syspath string
	target  rule.Target
}

func (b *fakeBackend) Apply(syspath string, target rule.Target) error {
	b.calls = append(b.calls, fakeBackendCall{syspath, target})
	if b.err != nil {
		return b.err
	}
	return nil
}

var errBackendFailed = errors.New("backend failed")

func minimalDeviceDescriptorBytes() []byte {
	return []byte{
		18, 0x01, // length 18, TypeDevice
		0x00, 0x02,
		0, 0, 0,
		64,
		0x6b, 0x1d,
		0x02, 0x00,
		0x00, 0x01,
		0, 0, 0,
		1,
	}
}

func interfaceDescriptorBytes(class, subclass, protocol byte) []byte {
	return []byte{9, 0x04, 0, 0, 2, class, subclass, protocol, 0}
}
