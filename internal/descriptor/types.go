package descriptor

import "encoding/binary"

// USB descriptor types (USB 2.0 spec table 9-5). Only the types the Device
// Manager's interface-type fingerprinting and hashing care about are
// enumerated here.
const (
	TypeDevice        byte = 0x01
	TypeConfiguration byte = 0x02
	TypeString        byte = 0x03
	TypeInterface     byte = 0x04
	TypeEndpoint      byte = 0x05
)

// DeviceDescriptorSize is the standard USB device descriptor length in
// bytes.
const DeviceDescriptorSize = 18

// DeviceDescriptor is the decoded form of a type-0x01 descriptor.
type DeviceDescriptor struct {
	USBVersion        uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	VendorID          uint16
	ProductID         uint16
	DeviceVersion     uint16
	NumConfigurations uint8
}

// DecodeDeviceDescriptor decodes a standard device descriptor. data must be
// at least DeviceDescriptorSize bytes.
func DecodeDeviceDescriptor(data []byte) (DeviceDescriptor, error) {
	if len(data) < DeviceDescriptorSize {
		return DeviceDescriptor{}, ErrMalformedDescriptor
	}
	return DeviceDescriptor{
		USBVersion:        binary.LittleEndian.Uint16(data[2:4]),
		DeviceClass:       data[4],
		DeviceSubClass:    data[5],
		DeviceProtocol:    data[6],
		VendorID:          binary.LittleEndian.Uint16(data[8:10]),
		ProductID:         binary.LittleEndian.Uint16(data[10:12]),
		DeviceVersion:     binary.LittleEndian.Uint16(data[12:14]),
		NumConfigurations: data[17],
	}, nil
}

// ConfigurationDescriptorSize is the standard USB configuration descriptor
// length in bytes.
const ConfigurationDescriptorSize = 9

// ConfigurationDescriptor is the decoded form of a type-0x02 descriptor.
type ConfigurationDescriptor struct {
	TotalLength        uint16
	NumInterfaces      uint8
	ConfigurationValue uint8
	Attributes         uint8
	MaxPower           uint8
}

// DecodeConfigurationDescriptor decodes a standard configuration
// descriptor. data must be at least ConfigurationDescriptorSize bytes.
func DecodeConfigurationDescriptor(data []byte) (ConfigurationDescriptor, error) {
	if len(data) < ConfigurationDescriptorSize {
		return ConfigurationDescriptor{}, ErrMalformedDescriptor
	}
	return ConfigurationDescriptor{
		TotalLength:        binary.LittleEndian.Uint16(data[2:4]),
		NumInterfaces:      data[4],
		ConfigurationValue: data[5],
		Attributes:         data[7],
		MaxPower:           data[8],
	}, nil
}

// InterfaceDescriptorSize is the standard USB interface descriptor length in
// bytes.
const InterfaceDescriptorSize = 9

// InterfaceDescriptor is the decoded form of a type-0x04 descriptor.
type InterfaceDescriptor struct {
	InterfaceNumber   uint8
	AlternateSetting  uint8
	NumEndpoints      uint8
	InterfaceClass    uint8
	InterfaceSubClass uint8
	InterfaceProtocol uint8
}

// DecodeInterfaceDescriptor decodes a standard interface descriptor. data
// must be at least InterfaceDescriptorSize bytes.
func DecodeInterfaceDescriptor(data []byte) (InterfaceDescriptor, error) {
	if len(data) < InterfaceDescriptorSize {
		return InterfaceDescriptor{}, ErrMalformedDescriptor
	}
	return InterfaceDescriptor{
		InterfaceNumber:   data[2],
		AlternateSetting:  data[3],
		NumEndpoints:      data[4],
		InterfaceClass:    data[5],
		InterfaceSubClass: data[6],
		InterfaceProtocol: data[7],
	}, nil
}

// EndpointDescriptorSize is the standard USB endpoint descriptor length in
// bytes.
const EndpointDescriptorSize = 7

// AudioEndpointDescriptorSize is the USB Audio Class endpoint descriptor
// length in bytes: it extends the standard endpoint descriptor with two
// extra fields (bRefresh, bSynchAddress).
const AudioEndpointDescriptorSize = 9

// EndpointDescriptor is the decoded form of a type-0x05 descriptor, shared
// by both the standard and audio-class variants.
type EndpointDescriptor struct {
	EndpointAddress uint8
	Attributes      uint8
	MaxPacketSize   uint16
	Interval        uint8
	Audio           bool
}

// DecodeEndpointDescriptor decodes a standard endpoint descriptor. data must
// be at least EndpointDescriptorSize bytes.
func DecodeEndpointDescriptor(data []byte) (EndpointDescriptor, error) {
	if len(data) < EndpointDescriptorSize {
		return EndpointDescriptor{}, ErrMalformedDescriptor
	}
	return EndpointDescriptor{
		EndpointAddress: data[2],
		Attributes:      data[3],
		MaxPacketSize:   binary.LittleEndian.Uint16(data[4:6]),
		Interval:        data[6],
	}, nil
}

// DecodeAudioEndpointDescriptor decodes a USB Audio Class endpoint
// descriptor. data must be at least AudioEndpointDescriptorSize bytes.
func DecodeAudioEndpointDescriptor(data []byte) (EndpointDescriptor, error) {
	if len(data) < AudioEndpointDescriptorSize {
		return EndpointDescriptor{}, ErrMalformedDescriptor
	}
	ep, err := DecodeEndpointDescriptor(data)
	if err != nil {
		return EndpointDescriptor{}, err
	}
	ep.Audio = true
	return ep, nil
}
