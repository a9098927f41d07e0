package hid

import (
	"errors"
	"testing"
	"time"
)

const missingDevicePath = "/dev/hidraw-nonexistent"

func TestParseUeventInfo(t *testing.T) {
	tests := []struct {
		name    string
		uevent  string
		busType uint32
		vid     uint16
		pid     uint16
		serial  string
		devName string
		ok      bool
	}{
		{
			name: "usb keyboard",
			uevent: "DRIVER=hid-generic\n" +
				"HID_ID=0003:000005AC:00008242\n" +
				"HID_NAME=Apple Keyboard\n" +
				"HID_PHYS=usb-0000:00:14.0-2/input0\n" +
				"HID_UNIQ=ABC123\n" +
				"MODALIAS=hid:b0003g0001v000005ACp00008242\n",
			busType: 0x03,
			vid:     0x05ac,
			pid:     0x8242,
			serial:  "ABC123",
			devName: "Apple Keyboard",
			ok:      true,
		},
		{
			name: "bluetooth device with empty uniq",
			uevent: "HID_ID=0005:0000054C:00000268\n" +
				"HID_NAME=Wireless Controller\n" +
				"HID_UNIQ=\n",
			busType: 0x05,
			vid:     0x054c,
			pid:     0x0268,
			serial:  "",
			devName: "Wireless Controller",
			ok:      true,
		},
		{
			name:   "missing HID_ID",
			uevent: "HID_NAME=Some Device\nHID_UNIQ=XYZ\n",
			ok:     false,
		},
		{
			name:   "malformed HID_ID",
			uevent: "HID_ID=bogus\nHID_NAME=Some Device\nHID_UNIQ=XYZ\n",
			ok:     false,
		},
		{
			name:   "empty",
			uevent: "",
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			busType, vid, pid, serial, name, ok := parseUeventInfo(tt.uevent)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if busType != tt.busType || vid != tt.vid || pid != tt.pid {
				t.Errorf("id = %x:%04x:%04x, want %x:%04x:%04x",
					busType, vid, pid, tt.busType, tt.vid, tt.pid)
			}
			if serial != tt.serial {
				t.Errorf("serial = %q, want %q", serial, tt.serial)
			}
			if name != tt.devName {
				t.Errorf("name = %q, want %q", name, tt.devName)
			}
		})
	}
}

func TestHidrawIoctlNumbers(t *testing.T) {
	// Reference values computed from linux/hidraw.h.
	if hidIOCGRDescSize != 0x80044801 {
		t.Errorf("HIDIOCGRDESCSIZE = %#x, want 0x80044801", hidIOCGRDescSize)
	}
	if hidIOCGRDesc != 0x90044802 {
		t.Errorf("HIDIOCGRDESC = %#x, want 0x90044802", hidIOCGRDesc)
	}
	if got := hidIOCSFeature(8); got != 0xc0084806 {
		t.Errorf("HIDIOCSFEATURE(8) = %#x, want 0xc0084806", got)
	}
	if got := hidIOCGFeature(8); got != 0xc0084807 {
		t.Errorf("HIDIOCGFEATURE(8) = %#x, want 0xc0084807", got)
	}
}

func TestEnumerateSysfs(t *testing.T) {
	nodes, err := enumerateSysfsHID()
	if err != nil {
		t.Fatalf("sysfs enumeration failed: %v", err)
	}

	for _, node := range nodes {
		if node.DevPath == "" || node.SysfsPath == "" {
			t.Errorf("node with empty paths: %+v", node)
		}
		if node.BusType == BusUnknown {
			t.Errorf("node %s has unknown bus type", node.DevPath)
		}
	}
}

func TestGetInputReportUnsupported(t *testing.T) {
	devices, err := Enumerate(0, 0)
	if err != nil || len(devices) == 0 {
		t.Skip("No HID devices attached")
	}

	dev, err := OpenPath(devices[0].Path)
	if err != nil {
		t.Skipf("Cannot open device: %v", err)
	}
	defer dev.Close()

	buf := make([]byte, 64)
	if _, err := dev.GetInputReport(buf); !errors.Is(err, ErrNotSupported) {
		t.Errorf("GetInputReport = %v, want ErrNotSupported", err)
	}
}

func TestReadTimeoutExpires(t *testing.T) {
	devices, err := Enumerate(0, 0)
	if err != nil || len(devices) == 0 {
		t.Skip("No HID devices attached")
	}

	dev, err := OpenPath(devices[0].Path)
	if err != nil {
		t.Skipf("Cannot open device: %v", err)
	}
	defer dev.Close()

	// Nothing generates input; a short timeout must expire with zero
	// bytes and no error.
	buf := make([]byte, 256)
	start := time.Now()
	n, err := dev.ReadTimeout(buf, 50*time.Millisecond)
	if err != nil {
		t.Skipf("read failed, device may produce input: %v", err)
	}
	if n != 0 {
		t.Skipf("device produced %d bytes of input", n)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("ReadTimeout took %v for a 50ms timeout", elapsed)
	}
}
