// Package sysfs implements the Linux policy-application backend: target
// decisions are applied by writing to a device's sysfs "authorized" or
// "remove" attribute file. Grounded on the original implementation's
// sysioApplyTarget.
package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/usbguard/usbguard/internal/policy"
	"github.com/usbguard/usbguard/internal/rule"
	"k8s.io/klog/v2"
)

// Backend applies targets by writing to sysfs attribute files beneath a
// device's syspath.
type Backend struct{}

// New returns a sysfs-backed policy.Backend.
func New() *Backend {
	return &Backend{}
}

// Apply implements policy.Backend.
func (b *Backend) Apply(syspath string, target rule.Target) error {
	var file string
	var value string

	switch target {
	case rule.Allow:
		file, value = "authorized", "1"
	case rule.Block:
		file, value = "authorized", "0"
	case rule.Reject:
		file, value = "remove", "1"
	default:
		return fmt.Errorf("%w: %s", policy.ErrInvalidTarget, target)
	}

	path := filepath.Join(syspath, file)
	klog.V(2).Infof("sysfs: writing %q to %s", value, path)
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		return fmt.Errorf("%w: %s: %v", policy.ErrBackendIO, path, err)
	}
	return nil
}

// authorizedDefaultPath is the kernel knob controlling whether newly
// enumerated USB devices start out authorized.
const authorizedDefaultPath = "/sys/module/usbcore/parameters/authorized_default"

// DefaultController toggles authorizedDefaultPath.
type DefaultController struct{}

// NewDefaultController returns a sysfs-backed policy.DefaultController.
func NewDefaultController() *DefaultController {
	return &DefaultController{}
}

// SetDefault implements policy.DefaultController.
func (c *DefaultController) SetDefault(allowed bool) (bool, error) {
	raw, err := os.ReadFile(authorizedDefaultPath)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", policy.ErrBackendIO, authorizedDefaultPath, err)
	}
	previous := strings.TrimSpace(string(raw)) == "1"

	value := "0"
	if allowed {
		value = "1"
	}
	klog.V(2).Infof("sysfs: writing %q to %s", value, authorizedDefaultPath)
	if err := os.WriteFile(authorizedDefaultPath, []byte(value), 0644); err != nil {
		return previous, fmt.Errorf("%w: %s: %v", policy.ErrBackendIO, authorizedDefaultPath, err)
	}
	return previous, nil
}
