// Package rule implements the device-matching rule language's data model
// and evaluation semantics: a Rule's target and seven attributes, and the
// Ruleset that evaluates an ordered sequence of them against a device.
package rule

import (
	"strings"
	"time"

	"github.com/usbguard/usbguard/internal/attrset"
	"github.com/usbguard/usbguard/internal/iface"
	"github.com/usbguard/usbguard/internal/usbid"
)

// Observable is the subset of device state a Rule can match against. The
// device model implements it; the rule package never imports the device
// package, avoiding a cycle.
type Observable interface {
	DeviceID() usbid.ID
	Name() string
	Hash() string
	ParentHash() string
	Serial() string
	Port() string
	InterfaceTypes() []iface.Type
}

// Rule is a single entry in a Ruleset: a target plus seven independently
// optional attributes, each tracking "set or not", operator, and values.
type Rule struct {
	// ID is the rule's stable position within its Ruleset, assigned by the
	// loader. Zero for a rule not yet attached to a Ruleset.
	ID uint32

	Target Target

	// HasDeviceID and DeviceIDValue hold the bare "VID:PID" sugar that may
	// follow the target directly; distinct from the ID attribute below.
	HasDeviceID   bool
	DeviceIDValue usbid.ID

	Name          attrset.Set[string]
	Hash          attrset.Set[string]
	ParentHash    attrset.Set[string]
	Serial        attrset.Set[string]
	ViaPort       attrset.Set[string]
	WithInterface attrset.Set[iface.Type]
	IDAttr        attrset.Set[usbid.ID]

	// Conditions is the root of the "if" condition expression tree, or nil
	// if the rule carries no conditions (treated as always-true).
	Conditions ConditionNode
}

func equalStrings(a, b string) bool { return a == b }

// equalIDs treats a as a pattern (possibly wildcarded) matched against the
// concrete observed id b, mirroring device_id_attr's own Matches semantics.
func equalIDs(a, b usbid.ID) bool { return a.Matches(b) }

// Matches reports whether every set attribute of r matches dev's
// corresponding observed field, and every condition in r.Conditions
// evaluates true. It does not consider r.Target.
func (r *Rule) Matches(ctx EvalContext) bool {
	dev := ctx.Device

	if r.HasDeviceID && !r.DeviceIDValue.Matches(dev.DeviceID()) {
		return false
	}
	if !r.Name.MatchScalar(equalStrings, dev.Name()) {
		return false
	}
	if !r.Hash.MatchScalar(equalStrings, dev.Hash()) {
		return false
	}
	if !r.ParentHash.MatchScalar(equalStrings, dev.ParentHash()) {
		return false
	}
	if !r.Serial.MatchScalar(equalStrings, dev.Serial()) {
		return false
	}
	if !r.ViaPort.MatchScalar(equalStrings, dev.Port()) {
		return false
	}
	if !r.WithInterface.MatchSequence(iface.Type.AppliesTo, iface.Equal, dev.InterfaceTypes()) {
		return false
	}
	if !r.IDAttr.MatchScalar(equalIDs, dev.DeviceID()) {
		return false
	}
	if r.Conditions != nil && !r.Conditions.Evaluate(ctx) {
		return false
	}
	return true
}

// EvalContext carries everything a Rule or Condition needs to evaluate
// against a device at a point in time.
type EvalContext struct {
	Device Observable
	Now    time.Time
	Query  DeviceQuery
}

// DeviceQuery lets conditions (notably allowed-matches) inspect the
// manager's other device state without the rule package depending on the
// device manager.
type DeviceQuery interface {
	AllowedDevices() []Observable
}

// String renders r back into the textual rule-language form, sufficient
// for the parser round-trip property: parse(serialize(r)) == r under
// attribute-wise equality.
func (r *Rule) String() string {
	var b strings.Builder
	b.WriteString(r.Target.String())
	if r.HasDeviceID {
		b.WriteByte(' ')
		b.WriteString(r.DeviceIDValue.String())
	}
	writeStringAttr(&b, "name", &r.Name)
	writeStringAttr(&b, "hash", &r.Hash)
	writeStringAttr(&b, "parent-hash", &r.ParentHash)
	writeStringAttr(&b, "serial", &r.Serial)
	writeStringAttr(&b, "via-port", &r.ViaPort)
	writeInterfaceAttr(&b, "with-interface", &r.WithInterface)
	writeIDAttr(&b, "id", &r.IDAttr)
	if r.Conditions != nil {
		b.WriteString(" if ")
		b.WriteString(r.Conditions.String())
	}
	return b.String()
}

func writeStringAttr(b *strings.Builder, name string, set *attrset.Set[string]) {
	if !set.IsSet() {
		return
	}
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteByte(' ')
	writeValues(b, set.Operator(), len(set.Values()), func(i int) string {
		return quoteString(set.Values()[i])
	})
}

func writeInterfaceAttr(b *strings.Builder, name string, set *attrset.Set[iface.Type]) {
	if !set.IsSet() {
		return
	}
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteByte(' ')
	writeValues(b, set.Operator(), len(set.Values()), func(i int) string {
		return set.Values()[i].String()
	})
}

func writeIDAttr(b *strings.Builder, name string, set *attrset.Set[usbid.ID]) {
	if !set.IsSet() {
		return
	}
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteByte(' ')
	writeValues(b, set.Operator(), len(set.Values()), func(i int) string {
		return set.Values()[i].String()
	})
}

func writeValues(b *strings.Builder, op attrset.Operator, n int, render func(int) string) {
	if op == attrset.Equals && n == 1 {
		b.WriteString(render(0))
		return
	}
	b.WriteString(op.String())
	b.WriteString(" { ")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(render(i))
	}
	b.WriteString(" }")
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
