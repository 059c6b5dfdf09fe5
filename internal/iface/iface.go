// Package iface implements the USB interface-type 3-tuple
// (class, subclass, protocol) matcher used by the "with-interface" rule
// attribute and by device controller classification.
package iface

import (
	"fmt"
	"strconv"
	"strings"
)

// Wildcard is the component value that matches any byte.
const Wildcard = "*"

// HubPattern is the interface-type pattern identifying a USB hub, used to
// classify controller (root hub) devices.
const HubPattern = "09:00:*"

// Type is a (class, subclass, protocol) tuple where each component is
// either a byte value or the wildcard.
type Type struct {
	Class    string
	SubClass string
	Protocol string
}

// Parse parses the strict "CC:SS:PP" textual form: each field is exactly two
// hex digits, or "*".
func Parse(s string) (Type, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return Type{}, fmt.Errorf("iface: malformed interface type %q, expected CC:SS:PP", s)
	}
	for _, f := range fields {
		if f != Wildcard && !isHexByte(f) {
			return Type{}, fmt.Errorf("iface: malformed interface type field %q in %q", f, s)
		}
	}
	return Type{Class: fields[0], SubClass: fields[1], Protocol: fields[2]}, nil
}

func isHexByte(s string) bool {
	if len(s) != 2 {
		return false
	}
	_, err := strconv.ParseUint(s, 16, 8)
	return err == nil
}

// FromBytes builds a concrete Type from raw descriptor byte values.
func FromBytes(class, subClass, protocol byte) Type {
	return Type{
		Class:    fmt.Sprintf("%02x", class),
		SubClass: fmt.Sprintf("%02x", subClass),
		Protocol: fmt.Sprintf("%02x", protocol),
	}
}

// AppliesTo reports whether t, read as a pattern, matches other: every
// non-wildcard component of t must equal the corresponding component of
// other.
func (t Type) AppliesTo(other Type) bool {
	return matchField(t.Class, other.Class) &&
		matchField(t.SubClass, other.SubClass) &&
		matchField(t.Protocol, other.Protocol)
}

func matchField(pattern, value string) bool {
	return pattern == Wildcard || pattern == value
}

// Equal reports whether a and b are equal treating wildcards on either side
// symmetrically, i.e. a.AppliesTo(b) && b.AppliesTo(a).
func Equal(a, b Type) bool {
	return a.AppliesTo(b) && b.AppliesTo(a)
}

// String renders the canonical "CC:SS:PP" textual form.
func (t Type) String() string {
	return t.Class + ":" + t.SubClass + ":" + t.Protocol
}

// Hub returns the parsed hub interface-type pattern (09:00:*).
func Hub() Type {
	t, err := Parse(HubPattern)
	if err != nil {
		panic("iface: invalid built-in hub pattern: " + err.Error())
	}
	return t
}
