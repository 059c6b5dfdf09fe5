// Package usbid implements the (vendor_id, product_id) device identifier
// used throughout the rule language and device model.
package usbid

import (
	"fmt"
	"regexp"
	"strings"
)

// Wildcard is the string that matches any concrete vendor or product value.
const Wildcard = "*"

var hexQuad = regexp.MustCompile(`^[0-9a-f]{4}$`)

// ID is a pair of 4-hex-digit lowercase identifiers, either of which may be
// the wildcard "*". At least one of Vendor/Product must be non-empty, and a
// wildcard Vendor requires a wildcard Product.
type ID struct {
	Vendor  string
	Product string
}

// New validates and constructs an ID from raw vendor/product strings.
func New(vendor, product string) (ID, error) {
	id := ID{Vendor: vendor, Product: product}
	if err := id.Validate(); err != nil {
		return ID{}, err
	}
	return id, nil
}

// Validate checks the invariants: each component is either empty, "*", or a
// 4-hex-digit lowercase string; if Vendor is "*" then Product must be "*".
func (id ID) Validate() error {
	if id.Vendor == "" && id.Product == "" {
		return fmt.Errorf("usbid: at least one of vendor/product must be set")
	}
	for _, v := range []string{id.Vendor, id.Product} {
		if v != "" && v != Wildcard && !hexQuad.MatchString(v) {
			return fmt.Errorf("usbid: %q is not a wildcard or 4-hex-digit value", v)
		}
	}
	if id.Vendor == Wildcard && id.Product != Wildcard {
		return fmt.Errorf("usbid: vendor is wildcard but product %q is not", id.Product)
	}
	return nil
}

// Matches reports whether id (possibly containing wildcards) matches the
// concrete observed identifier other. Equality is exact string match;
// wildcard components in id apply to any corresponding component in other.
func (id ID) Matches(other ID) bool {
	if id.Vendor != Wildcard && id.Vendor != other.Vendor {
		return false
	}
	if id.Product != Wildcard && id.Product != other.Product {
		return false
	}
	return true
}

// String renders the canonical "vendor:product" textual form.
func (id ID) String() string {
	return id.Vendor + ":" + id.Product
}

// IsZero reports whether id is the unset value.
func (id ID) IsZero() bool {
	return id.Vendor == "" && id.Product == ""
}

// Parse parses the canonical "vendor:product" textual form, e.g. "1d6b:0002"
// or "1d6b:*".
func Parse(s string) (ID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return ID{}, fmt.Errorf("usbid: malformed device id %q, expected VID:PID", s)
	}
	return New(parts[0], parts[1])
}
