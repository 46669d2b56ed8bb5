package adapter

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/gousb"

	"github.com/nixxel-company-limited/zpl-print-server/config"
)

// USBAdapter delivers payloads to a locally attached device as a single
// bulk transfer. The device is discovered, claimed, written to and
// released within each Send; the release runs on every exit path so a
// failed transfer never leaves the interface claimed.
type USBAdapter struct {
	vendor  uint16
	product uint16
	port    usbPort
}

// usbPort discovers and claims a device, yielding a link ready for one
// bulk write. Split from gousb so the claim/release discipline is
// testable without hardware.
type usbPort interface {
	open(vendor, product uint16) (usbLink, error)
}

type usbLink interface {
	write(data []byte) (int, error)
	close() error
}

// NewUSB builds the adapter. A vendor identifier is required; a zero
// product identifier matches the first attached device of the vendor.
func NewUSB(cfg config.USB) (*USBAdapter, error) {
	if cfg.VendorID == 0 {
		return nil, fmt.Errorf("%w: usb backend requires a vendor id", ErrConfiguration)
	}
	return &USBAdapter{
		vendor:  cfg.VendorID,
		product: cfg.ProductID,
		port:    gousbPort{},
	}, nil
}

// Kind implements Adapter.
func (a *USBAdapter) Kind() string { return "usb" }

// Close implements Adapter. The device is claimed per send, never held.
func (a *USBAdapter) Close() error { return nil }

// Send claims the device, writes the payload as one bulk transfer and
// releases the device whether or not the transfer succeeded.
func (a *USBAdapter) Send(ctx context.Context, payload []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	link, err := a.port.open(a.vendor, a.product)
	if err != nil {
		return nil, err
	}
	defer link.close()

	if _, err := link.write(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	return &Result{}, nil
}

// matchDevice reports whether a device descriptor satisfies the
// configured identifiers: exact vendor+product when a product is set,
// first vendor match otherwise.
func matchDevice(desc *gousb.DeviceDesc, vendor, product uint16) bool {
	if desc.Vendor != gousb.ID(vendor) {
		return false
	}
	return product == 0 || desc.Product == gousb.ID(product)
}

// gousbPort is the hardware-backed usbPort.
type gousbPort struct{}

func (gousbPort) open(vendor, product uint16) (usbLink, error) {
	usbctx := gousb.NewContext()

	devices, err := usbctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return matchDevice(desc, vendor, product)
	})
	if len(devices) == 0 {
		usbctx.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: vendor %04x product %04x: %v", ErrDeviceNotFound, vendor, product, err)
		}
		return nil, fmt.Errorf("%w: vendor %04x product %04x", ErrDeviceNotFound, vendor, product)
	}

	dev := devices[0]
	for _, d := range devices[1:] {
		d.Close()
	}

	cleanup := func() {
		dev.Close()
		usbctx.Close()
	}

	if runtime.GOOS == "linux" {
		// Kernel usblp driver claims printers by default.
		if err := dev.SetAutoDetach(true); err != nil {
			cleanup()
			return nil, fmt.Errorf("%w: set auto detach: %v", ErrTransfer, err)
		}
	}

	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: get active config: %v", ErrTransfer, err)
	}

	devcfg, err := dev.Config(cfgNum)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: get config: %v", ErrTransfer, err)
	}

	if len(devcfg.Desc.Interfaces) == 0 {
		devcfg.Close()
		cleanup()
		return nil, fmt.Errorf("%w: device has no interfaces", ErrNoOutputEndpoint)
	}

	iface, err := devcfg.Interface(devcfg.Desc.Interfaces[0].Number, 0)
	if err != nil {
		devcfg.Close()
		cleanup()
		return nil, fmt.Errorf("%w: claim interface: %v", ErrTransfer, err)
	}

	var out *gousb.OutEndpoint
	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.Direction == gousb.EndpointDirectionOut {
			if ep, err := iface.OutEndpoint(epDesc.Number); err == nil {
				out = ep
				break
			}
		}
	}
	if out == nil {
		iface.Close()
		devcfg.Close()
		cleanup()
		return nil, ErrNoOutputEndpoint
	}

	return &gousbLink{usbctx: usbctx, dev: dev, cfg: devcfg, iface: iface, out: out}, nil
}

type gousbLink struct {
	usbctx *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	iface  *gousb.Interface
	out    *gousb.OutEndpoint
}

func (l *gousbLink) write(data []byte) (int, error) {
	return l.out.Write(data)
}

func (l *gousbLink) close() error {
	var errs []error
	l.iface.Close()
	if err := l.cfg.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := l.dev.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := l.usbctx.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
