package hid

import (
	"errors"
	"testing"
)

func TestVersion(t *testing.T) {
	version := Version()
	if version == "" {
		t.Error("Version string is empty")
	}

	expected := "1.0.0"
	if version != expected {
		t.Errorf("Version mismatch: got %s, expected %s", version, expected)
	}
}

func TestEnumerate(t *testing.T) {
	devices, err := Enumerate(0, 0)
	if err != nil {
		t.Fatalf("Failed to enumerate devices: %v", err)
	}

	t.Logf("Found %d HID interfaces", len(devices))

	for _, info := range devices {
		if info.Path == "" {
			t.Errorf("Device %04x:%04x has empty path", info.VendorID, info.ProductID)
		}
	}
}

func TestEnumerateFilter(t *testing.T) {
	// An ID nothing legitimately uses: the scan must come back empty, not
	// fail.
	devices, err := Enumerate(0xdead, 0xbeef)
	if err != nil {
		t.Fatalf("Filtered enumeration failed: %v", err)
	}
	for _, info := range devices {
		if info.VendorID != 0xdead || info.ProductID != 0xbeef {
			t.Errorf("Filter leaked device %04x:%04x", info.VendorID, info.ProductID)
		}
	}
}

func TestOpenMissingDevice(t *testing.T) {
	dev, err := Open(0xdead, 0xbeef, "")
	if dev != nil {
		dev.Close()
		t.Fatal("Open returned a handle for a device that cannot exist")
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Open error = %v, want ErrDeviceNotFound", err)
	}
}

func TestOpenPathMissing(t *testing.T) {
	dev, err := OpenPath(missingDevicePath)
	if err == nil {
		dev.Close()
		t.Fatal("OpenPath succeeded on a nonexistent path")
	}
}

func TestCloseNilDevice(t *testing.T) {
	var dev *Device
	if err := dev.Close(); err != nil {
		t.Errorf("Close on nil device returned %v", err)
	}
}

func TestBusTypeString(t *testing.T) {
	tests := []struct {
		bus  BusType
		want string
	}{
		{BusUSB, "USB"},
		{BusBluetooth, "Bluetooth"},
		{BusI2C, "I2C"},
		{BusUnknown, "Unknown"},
		{BusType(42), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.bus.String(); got != tt.want {
			t.Errorf("BusType(%d).String() = %q, want %q", tt.bus, got, tt.want)
		}
	}
}

func TestLastErrorText(t *testing.T) {
	var e lastError

	if e.String() != "Success" {
		t.Fatalf("fresh lastError = %q, want Success", e.String())
	}

	e.set(ErrInvalidParameter)
	if e.String() != ErrInvalidParameter.Error() {
		t.Errorf("after failure lastError = %q", e.String())
	}

	// A subsequent success must clear the stale failure text.
	e.set(nil)
	if e.String() != "Success" {
		t.Errorf("after success lastError = %q, want Success", e.String())
	}
}

// TestOpenFirstDevice exercises an open handle end to end when the test
// host has an accessible device; otherwise it skips.
func TestOpenFirstDevice(t *testing.T) {
	devices, err := Enumerate(0, 0)
	if err != nil {
		t.Fatalf("Failed to enumerate devices: %v", err)
	}
	if len(devices) == 0 {
		t.Skip("No HID devices attached")
	}

	var dev *Device
	for _, info := range devices {
		if dev, err = OpenPath(info.Path); err == nil {
			break
		}
	}
	if dev == nil {
		t.Skipf("No HID device could be opened: %v", err)
	}

	if got := dev.LastError(); got != "Success" {
		t.Errorf("LastError on fresh handle = %q, want Success", got)
	}

	info, err := dev.Info()
	if err != nil {
		t.Errorf("Info failed: %v", err)
	} else if info.Path == "" {
		t.Error("Info returned empty path")
	}

	if _, err := dev.ManufacturerString(); err != nil {
		t.Errorf("ManufacturerString failed: %v", err)
	}

	if err := dev.SetNonblocking(true); err != nil {
		t.Errorf("SetNonblocking failed: %v", err)
	}

	// A nonblocking read against an idle device returns zero bytes.
	buf := make([]byte, 256)
	if n, err := dev.Read(buf); err != nil && n != 0 {
		t.Logf("nonblocking read: n=%d err=%v", n, err)
	}

	if err := dev.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}

	if _, err := dev.Write([]byte{0x00}); !errors.Is(err, ErrDeviceClosed) {
		t.Errorf("Write after close = %v, want ErrDeviceClosed", err)
	}
}

func TestInvalidParameterErrors(t *testing.T) {
	devices, err := Enumerate(0, 0)
	if err != nil || len(devices) == 0 {
		t.Skip("No HID devices attached")
	}

	dev, err := OpenPath(devices[0].Path)
	if err != nil {
		t.Skipf("Cannot open device: %v", err)
	}
	defer dev.Close()

	if _, err := dev.Write(nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Write(nil) = %v, want ErrInvalidParameter", err)
	}
	if dev.LastError() == "Success" {
		t.Error("LastError reports Success after a failed write")
	}

	if _, err := dev.SendFeatureReport(nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("SendFeatureReport(nil) = %v, want ErrInvalidParameter", err)
	}
}
