package rule_test

import (
	"github.com/usbguard/usbguard/internal/iface"
	"github.com/usbguard/usbguard/internal/rule"
	"github.com/usbguard/usbguard/internal/usbid"
)

// fakeDevice implements rule.Observable for test fixtures, standing in for
// *device.Device without pulling in the device package.
type fakeDevice struct {
	id         usbid.ID
	name       string
	hash       string
	parentHash string
	serial     string
	port       string
	interfaces []iface.Type
}

func (f fakeDevice) DeviceID() usbid.ID           { return f.id }
func (f fakeDevice) Name() string                 { return f.name }
func (f fakeDevice) Hash() string                 { return f.hash }
func (f fakeDevice) ParentHash() string           { return f.parentHash }
func (f fakeDevice) Serial() string               { return f.serial }
func (f fakeDevice) Port() string                 { return f.port }
func (f fakeDevice) InterfaceTypes() []iface.Type { return f.interfaces }

// fakeQuery implements rule.DeviceQuery for allowed-matches tests.
type fakeQuery struct {
	allowed []rule.Observable
}

func (f fakeQuery) AllowedDevices() []rule.Observable { return f.allowed }

func mustID(s string) usbid.ID {
	id, err := usbid.Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func mustIface(s string) iface.Type {
	t, err := iface.Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}
