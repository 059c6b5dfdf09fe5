// Package udev implements the Linux hotplug source and kernel-attribute
// reader (spec §6) on top of libudev, filtered to subsystem=usb,
// devtype=usb_device exactly as the original implementation's
// udev_monitor_filter_add_match_subsystem_devtype("usb", "usb_device").
// The monitor goroutine's shape (netlink channel plus a control-request
// channel, reconnect-on-error) is grounded on the teacher's generic udev
// discovery monitor.
package udev

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	libudev "github.com/jochenvg/go-udev"

	"k8s.io/klog/v2"

	"github.com/usbguard/usbguard/internal/device"
	"github.com/usbguard/usbguard/internal/mux"
)

const (
	usbSubsystem = "usb"
	usbDevtype   = "usb_device"
)

// handle adapts a *libudev.Device into device.Handle.
type handle struct {
	dev *libudev.Device
}

func (h *handle) SysPath() string { return h.dev.Syspath() }
func (h *handle) SysName() string { return h.dev.Sysname() }

func (h *handle) Attribute(name string) (string, bool) {
	v := strings.TrimSpace(h.dev.SysattrValue(name))
	if v == "" {
		if _, ok := h.dev.Sysattrs()[name]; !ok {
			return "", false
		}
	}
	return v, true
}

func (h *handle) Descriptors() ([]byte, error) {
	// descriptors is a binary sysfs attribute; read it directly rather than
	// through SysattrValue, which assumes text and trims whitespace.
	return os.ReadFile(filepath.Join(h.dev.Syspath(), "descriptors"))
}

func (h *handle) Parent() (device.Handle, bool) {
	p := h.dev.Parent()
	if p == nil {
		return nil, false
	}
	return &handle{dev: p}, true
}

func (h *handle) IsUSBDevice() bool {
	return h.dev.Subsystem() == usbSubsystem && h.dev.Devtype() == usbDevtype
}

type monitorRequest interface {
	requestSealed()
}

type subscribeRequest struct {
	sink mux.Sink[HotplugEvent]
}

func (subscribeRequest) requestSealed() {}

type stopRequest struct{}

func (stopRequest) requestSealed() {}

// Source is the Linux implementation of the hotplug source: it enumerates
// currently present USB devices and fans out subsequent add/remove events.
type Source struct {
	udev     libudev.Udev
	mux      *mux.Mux[HotplugEvent]
	requests chan mux.AwaitReply[monitorRequest, any]
	wg       *sync.WaitGroup
}

// NewSource starts the udev monitor goroutine and returns a Source. wg is
// used the way the teacher's discovery does: the caller waits on it for
// clean monitor shutdown.
func NewSource(wg *sync.WaitGroup) *Source {
	s := &Source{
		mux:      mux.Make[HotplugEvent](),
		requests: make(chan mux.AwaitReply[monitorRequest, any]),
		wg:       wg,
	}
	wg.Add(1)
	go s.monitor(wg)
	return s
}

// Enumerate returns a Handle for every currently present USB device, for
// the device-presence path at startup.
func (s *Source) Enumerate() ([]device.Handle, error) {
	enum := s.udev.NewEnumerate()
	if err := enum.AddMatchSubsystem(usbSubsystem); err != nil {
		return nil, err
	}
	devs, err := enum.Devices()
	if err != nil {
		return nil, err
	}
	out := make([]device.Handle, 0, len(devs))
	for _, dev := range devs {
		if dev == nil || dev.Devtype() != usbDevtype {
			continue
		}
		out = append(out, &handle{dev: dev})
	}
	return out, nil
}

// Subscribe registers sink to receive subsequent hotplug events.
func (s *Source) Subscribe(sink mux.Sink[HotplugEvent]) mux.CancelFunc {
	await := mux.NewAwaitReply[monitorRequest, any](subscribeRequest{sink})
	s.requests <- await
	return await.Await().(mux.CancelFunc)
}

// Close stops the monitor goroutine.
func (s *Source) Close() {
	await := mux.NewAwaitReply[monitorRequest, any](stopRequest{})
	defer await.Await()
	s.requests <- await
}

func (s *Source) monitor(wg *sync.WaitGroup) {
	defer wg.Done()
	defer s.mux.Close()
	defer close(s.requests)

	mon := s.udev.NewMonitorFromNetlink("udev")
	if err := mon.FilterAddMatchSubsystemDevtype(usbSubsystem, usbDevtype); err != nil {
		klog.Errorf("udev: failed to install subsystem filter: %v", err)
	}
	devChan, errChan, err := mon.DeviceChan(context.Background())
	if err != nil {
		klog.Errorf("udev: failed to create device channel: %v", err)
		return
	}

	for {
		select {
		case dev := <-devChan:
			klog.V(5).Infof("udev: event action=%s syspath=%s", dev.Action(), dev.Syspath())
			switch dev.Action() {
			case string(ActionAdd):
				s.mux.Submit(HotplugEvent{Action: ActionAdd, SysPath: dev.Syspath(), Handle: &handle{dev: dev}})
			case string(ActionRemove):
				s.mux.Submit(HotplugEvent{Action: ActionRemove, SysPath: dev.Syspath()})
			default:
				klog.V(5).Infof("udev: ignoring action %q", dev.Action())
			}

		case req := <-s.requests:
			switch r := req.Value().(type) {
			case subscribeRequest:
				cancel := s.mux.Subscribe(r.sink)
				req.Reply(cancel)
			case stopRequest:
				req.Reply(nil)
				return
			}

		case err := <-errChan:
			klog.Errorf("udev: monitor error, reconnecting: %v", err)
		retry:
			mon = s.udev.NewMonitorFromNetlink("udev")
			if ferr := mon.FilterAddMatchSubsystemDevtype(usbSubsystem, usbDevtype); ferr != nil {
				klog.Errorf("udev: failed to install subsystem filter: %v", ferr)
			}
			devChan, errChan, err = mon.DeviceChan(context.Background())
			if err != nil {
				klog.Errorf("udev: failed to reconnect, retrying: %v", err)
				time.Sleep(1 * time.Second)
				goto retry
			}
			klog.Infof("udev: reconnected to netlink monitor")
		}
	}
}
