// Package manager implements the Device Manager (spec §4.F): it owns the
// ID space and syspath->ID map, runs the hotplug worker loop, evaluates
// the ruleset against newly observed devices, applies policy decisions
// through a backend, and raises outbound notifications. Grounded on the
// original implementation's LinuxDeviceManager, generalized from its
// single backend onto the policy.Backend/policy.DefaultController
// capabilities.
package manager

import (
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/usbguard/usbguard/internal/device"
	"github.com/usbguard/usbguard/internal/mux"
	"github.com/usbguard/usbguard/internal/policy"
	"github.com/usbguard/usbguard/internal/rule"
	"github.com/usbguard/usbguard/internal/udev"
)

// HotplugSource is the capability the manager drives its worker loop from:
// an initial enumeration plus a live feed of subsequent events.
type HotplugSource interface {
	Enumerate() ([]device.Handle, error)
	Subscribe(sink mux.Sink[udev.HotplugEvent]) mux.CancelFunc
}

// Manager is the Device Manager. Its syspath->ID map and device table are
// mutated only by the worker goroutine; Device() and the other query methods take
// mu for readers racing with the worker, per spec §5.
type Manager struct {
	source  HotplugSource
	backend policy.Backend
	def     policy.DefaultController
	ruleset *rule.Ruleset

	notifications *mux.Mux[Notification]

	mu          sync.RWMutex
	devices     map[uint32]*device.Device
	syspathToID map[string]uint32
	nextID      uint32

	stopCh chan struct{}
	wakeCh chan struct{}
	wg     sync.WaitGroup

	prevDefault bool
}

// New constructs a Manager. Call Start to begin processing hotplug events.
func New(source HotplugSource, backend policy.Backend, def policy.DefaultController, ruleset *rule.Ruleset) *Manager {
	return &Manager{
		source:        source,
		backend:       backend,
		def:           def,
		ruleset:       ruleset,
		notifications: mux.Make[Notification](),
		devices:       make(map[uint32]*device.Device),
		syspathToID:   make(map[string]uint32),
		nextID:        1,
		stopCh:        make(chan struct{}),
		wakeCh:        make(chan struct{}, 1),
	}
}

// Subscribe registers sink to receive outbound notifications.
func (m *Manager) Subscribe(sink mux.Sink[Notification]) mux.CancelFunc {
	return m.notifications.Subscribe(sink)
}

// Device looks up a currently known device by ID.
func (m *Manager) Device(id uint32) (*device.Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	return d, ok
}

// AllowedDevices implements rule.DeviceQuery for the allowed-matches
// condition.
func (m *Manager) AllowedDevices() []rule.Observable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rule.Observable, 0, len(m.devices))
	for _, d := range m.devices {
		if d.Target() == rule.Allow {
			out = append(out, d)
		}
	}
	return out
}

// IDForSysPath implements device.ParentResolver.
func (m *Manager) IDForSysPath(syspath string) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.syspathToID[syspath]
	return id, ok
}

// Start sets the system-wide default to blocked and launches the worker,
// which first enumerates present devices and then handles hotplug events.
// Per spec §4.F, presence-path construction failures are logged, not
// rejected.
func (m *Manager) Start() error {
	prev, err := m.def.SetDefault(false)
	if err != nil {
		return err
	}
	m.prevDefault = prev

	events := make(chan udev.HotplugEvent, 16)
	cancel := m.source.Subscribe(mux.SinkFromChan(events))

	m.wg.Add(1)
	go m.run(events, cancel)
	return nil
}

// Stop restores the prior system-wide default, signals the worker to
// exit, wakes it, and waits for it to finish. Per spec §4.F, this order
// (restore-default happens before the worker is told to stop) ensures no
// device arriving during shutdown is left unauthorized by our own policy.
func (m *Manager) Stop() {
	if _, err := m.def.SetDefault(m.prevDefault); err != nil {
		klog.Errorf("manager: failed to restore default authorization state: %v", err)
	}
	close(m.stopCh)
	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
	m.wg.Wait()
}

func (m *Manager) run(events <-chan udev.HotplugEvent, cancel mux.CancelFunc) {
	defer m.wg.Done()
	defer cancel()
	defer m.notifications.Close()

	handles, err := m.source.Enumerate()
	if err != nil {
		klog.Errorf("manager: enumeration failed: %v", err)
	}
	for _, h := range handles {
		m.processDevicePresence(h)
	}

	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()

	for {
		timer.Reset(5 * time.Second)
		select {
		case <-m.stopCh:
			return
		case <-m.wakeCh:
			select {
			case <-m.stopCh:
				return
			default:
			}
		case ev := <-events:
			switch ev.Action {
			case udev.ActionAdd:
				m.processDeviceInsertion(ev.Handle)
			case udev.ActionRemove:
				m.processDeviceRemoval(ev.SysPath)
			default:
				klog.V(5).Infof("manager: ignoring hotplug action %q", ev.Action)
			}
		case <-timer.C:
			select {
			case <-m.stopCh:
				return
			default:
			}
		}
	}
}

// processDevicePresence handles a device observed during the initial
// enumeration. Unlike insertion, construction failure is only logged: the
// device was already connected before the manager started.
func (m *Manager) processDevicePresence(h device.Handle) {
	d, err := device.Construct(h, m)
	if err != nil {
		klog.Errorf("manager: presence processing failed for %s: %v", h.SysPath(), err)
		return
	}
	m.registerDevice(d)
	m.evaluateAndApply(d)
	m.notify(DevicePresent, d)
}

// processDeviceInsertion handles a hotplug "add" event. Construction
// failure falls back to rejecting the device at its syspath directly,
// since no Device exists yet to apply policy against.
func (m *Manager) processDeviceInsertion(h device.Handle) {
	d, err := device.Construct(h, m)
	if err != nil {
		klog.Errorf("manager: insertion processing failed for %s: %v", h.SysPath(), err)
		if applyErr := m.backend.Apply(h.SysPath(), rule.Reject); applyErr != nil {
			klog.Errorf("manager: failed to reject unconstructible device %s: %v", h.SysPath(), applyErr)
		}
		return
	}
	m.registerDevice(d)
	m.evaluateAndApply(d)
	m.notify(DeviceInserted, d)
}

// processDeviceRemoval handles a hotplug "remove" event. An unknown
// syspath is ignored.
func (m *Manager) processDeviceRemoval(syspath string) {
	m.mu.Lock()
	id, ok := m.syspathToID[syspath]
	if !ok {
		m.mu.Unlock()
		return
	}
	d := m.devices[id]
	delete(m.syspathToID, syspath)
	delete(m.devices, id)
	m.mu.Unlock()

	m.notify(DeviceRemoved, d)
}

func (m *Manager) registerDevice(d *device.Device) {
	m.mu.Lock()
	d.ID = m.nextID
	m.nextID++
	m.devices[d.ID] = d
	m.syspathToID[d.SysPath] = d.ID
	m.mu.Unlock()
}

// evaluateAndApply runs the ruleset against d and applies the resulting
// target through the backend, emitting the target-specific notification.
func (m *Manager) evaluateAndApply(d *device.Device) {
	target, matched := m.ruleset.Evaluate(d, time.Now(), m)
	if matched != nil {
		klog.V(2).Infof("manager: device %d matched rule %d -> %s", d.ID, matched.ID, target)
	} else {
		klog.V(2).Infof("manager: device %d fell through to default -> %s", d.ID, target)
	}

	if err := m.ApplyTarget(d, target); err != nil {
		klog.Errorf("manager: failed to apply target %s to device %d: %v", target, d.ID, err)
		return
	}

	switch target {
	case rule.Allow:
		m.notify(DeviceAllowed, d)
	case rule.Block:
		m.notify(DeviceBlocked, d)
	case rule.Reject:
		m.notify(DeviceRejected, d)
	}
}

// ApplyTarget performs the policy-application protocol from spec §4.F/§5,
// delegated to the device's own Apply so the per-device mutex spans the
// backend call and the cached-target update together. Safe to call
// concurrently for different devices; calls for the same device serialize
// through its mutex.
func (m *Manager) ApplyTarget(d *device.Device, target rule.Target) error {
	return d.Apply(m.backend, target)
}

func (m *Manager) notify(kind NotificationKind, d *device.Device) {
	if err := m.notifications.Submit(Notification{Kind: kind, Device: d}); err != nil {
		klog.Errorf("manager: failed to submit %s notification: %v", kind, err)
	}
}
