// Package hid provides access to Human Interface Devices through the
// operating system's native HID stack: hidraw and sysfs on Linux, hid.dll
// and overlapped I/O on Windows. Devices are discovered with Enumerate and
// opened by path or by vendor/product identity; open handles support
// report-oriented reads and writes with optional timeouts as well as
// feature report exchange.
package hid

import (
	"errors"
	"sync"
)

// Version returns the version of the go-hid library
func Version() string {
	return "1.0.0"
}

// Error types
var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrDeviceClosed     = errors.New("device closed")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrIO               = errors.New("I/O error")
	ErrTimeout          = errors.New("timeout")
	ErrNotSupported     = errors.New("not supported")
)

// BusType identifies the transport a HID device is attached over.
type BusType int

const (
	BusUnknown BusType = iota
	BusUSB
	BusBluetooth
	BusI2C
)

func (b BusType) String() string {
	switch b {
	case BusUSB:
		return "USB"
	case BusBluetooth:
		return "Bluetooth"
	case BusI2C:
		return "I2C"
	default:
		return "Unknown"
	}
}

// DeviceInfo describes one HID interface discovered during enumeration.
// A physical device exposing several top-level usages produces one
// DeviceInfo per usage pair, all sharing the same identity fields.
type DeviceInfo struct {
	// Path is the platform-specific path that OpenPath accepts.
	Path string

	VendorID  uint16
	ProductID uint16

	// SerialNumber, ManufacturerString and ProductString may be empty when
	// the device or transport does not provide them.
	SerialNumber       string
	ManufacturerString string
	ProductString      string

	// ReleaseNumber is the device version as binary-coded decimal.
	ReleaseNumber uint16

	UsagePage uint16
	Usage     uint16

	// InterfaceNumber is the USB interface number, or -1 when the device
	// is not USB or the number could not be determined.
	InterfaceNumber int

	BusType BusType
}

// Enumerate returns the HID devices currently attached. A non-zero
// vendorID or productID restricts the result to matching devices; zero
// matches any. The order of the result follows OS traversal order and is
// not stable across calls. Devices that cannot be fully inspected are
// skipped rather than failing the whole scan.
func Enumerate(vendorID, productID uint16) ([]*DeviceInfo, error) {
	return enumerate(vendorID, productID)
}

// Open opens the first attached device matching vendorID and productID.
// A non-empty serial additionally requires an exact serial number match.
func Open(vendorID, productID uint16, serial string) (*Device, error) {
	devices, err := Enumerate(vendorID, productID)
	if err != nil {
		return nil, err
	}

	for _, info := range devices {
		if info.VendorID != vendorID || info.ProductID != productID {
			continue
		}
		if serial != "" && info.SerialNumber != serial {
			continue
		}
		return OpenPath(info.Path)
	}

	return nil, ErrDeviceNotFound
}

// OpenPath opens the device at the given enumeration path.
func OpenPath(path string) (*Device, error) {
	return openPath(path)
}

// Read reads an input report into data, honoring the handle's blocking
// mode. See ReadTimeout.
func (d *Device) Read(data []byte) (int, error) {
	if d.nonblocking() {
		return d.ReadTimeout(data, 0)
	}
	return d.ReadTimeout(data, -1)
}

// successText is the value reported by LastError when the most recent
// operation on the handle completed without error.
const successText = "Success"

// lastError records the outcome of the most recent operation on a handle
// for the LastError accessor. Every operation sets it, success included,
// so stale failure text never outlives a successful call.
type lastError struct {
	mu   sync.Mutex
	text string
}

func (e *lastError) set(err error) error {
	e.mu.Lock()
	if err != nil {
		e.text = err.Error()
	} else {
		e.text = ""
	}
	e.mu.Unlock()
	return err
}

func (e *lastError) String() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.text == "" {
		return successText
	}
	return e.text
}
