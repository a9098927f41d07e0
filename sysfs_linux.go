package hid

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// sysfs discovery for hidraw devices. Each entry under /sys/class/hidraw
// links to its HID parent through the device symlink; identity comes from
// the HID uevent and, for USB devices, from the usb_device and
// usb_interface ancestors further up the tree. The report descriptor is
// exposed at <node>/device/report_descriptor and needs no privileges.

const sysfsHidrawDir = "/sys/class/hidraw"

// Bus types from linux/input.h as they appear in HID_ID.
const (
	busUSB       = 0x03
	busBluetooth = 0x05
	busI2C       = 0x18
)

// SysfsHIDDevice represents a hidraw node as seen in sysfs
type SysfsHIDDevice struct {
	SysfsPath string // /sys/class/hidraw/hidrawN
	DevPath   string // /dev/hidrawN
	BusType   BusType
	VendorID  uint16
	ProductID uint16
	Serial    string // HID_UNIQ
	Name      string // HID_NAME
}

// enumerateSysfsHID returns the hidraw nodes found in sysfs. Nodes whose
// uevent cannot be parsed or whose bus type is not handled are skipped.
func enumerateSysfsHID() ([]*SysfsHIDDevice, error) {
	entries, err := os.ReadDir(sysfsHidrawDir)
	if err != nil {
		if os.IsNotExist(err) {
			// hidraw not configured in this kernel, nothing attached.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read hidraw sysfs directory: %w", err)
	}

	var devices []*SysfsHIDDevice

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "hidraw") {
			continue
		}

		device, err := loadHIDFromSysfs(filepath.Join(sysfsHidrawDir, name), name)
		if err == nil {
			devices = append(devices, device)
		}
	}

	return devices, nil
}

// loadHIDFromSysfs builds a SysfsHIDDevice from one hidraw class node.
func loadHIDFromSysfs(sysfsPath, name string) (*SysfsHIDDevice, error) {
	uevent, err := os.ReadFile(filepath.Join(sysfsPath, "device", "uevent"))
	if err != nil {
		return nil, err
	}

	busType, vid, pid, serial, hidName, ok := parseUeventInfo(string(uevent))
	if !ok {
		return nil, fmt.Errorf("incomplete uevent for %s", name)
	}

	device := &SysfsHIDDevice{
		SysfsPath: sysfsPath,
		DevPath:   "/dev/" + name,
		VendorID:  vid,
		ProductID: pid,
		Serial:    serial,
		Name:      hidName,
	}

	switch busType {
	case busUSB:
		device.BusType = BusUSB
	case busBluetooth:
		device.BusType = BusBluetooth
	case busI2C:
		device.BusType = BusI2C
	default:
		return nil, fmt.Errorf("unhandled bus type 0x%02x for %s", busType, name)
	}

	return device, nil
}

// parseUeventInfo extracts the HID identity from a HID uevent blob. All
// three of HID_ID, HID_NAME and HID_UNIQ must be present for the node to
// be usable; HID_ID carries "bustype:vendor:product" in hex.
func parseUeventInfo(uevent string) (busType uint32, vid, pid uint16, serial, name string, ok bool) {
	var foundID, foundName, foundSerial bool

	for _, line := range strings.Split(uevent, "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		switch key {
		case "HID_ID":
			parts := strings.Split(value, ":")
			if len(parts) != 3 {
				continue
			}
			bus, err1 := strconv.ParseUint(parts[0], 16, 32)
			v, err2 := strconv.ParseUint(parts[1], 16, 16)
			p, err3 := strconv.ParseUint(parts[2], 16, 16)
			if err1 != nil || err2 != nil || err3 != nil {
				continue
			}
			busType = uint32(bus)
			vid = uint16(v)
			pid = uint16(p)
			foundID = true
		case "HID_NAME":
			name = value
			foundName = true
		case "HID_UNIQ":
			serial = value
			foundSerial = true
		}
	}

	return busType, vid, pid, serial, name, foundID && foundName && foundSerial
}

// readSysfsString reads a sysfs attribute, returning "" when absent.
func readSysfsString(dir, attr string) string {
	data, err := os.ReadFile(filepath.Join(dir, attr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// readSysfsHex16 reads a hex-encoded sysfs attribute such as bcdDevice.
func readSysfsHex16(dir, attr string) uint16 {
	val, err := strconv.ParseUint(readSysfsString(dir, attr), 16, 16)
	if err != nil {
		return 0
	}
	return uint16(val)
}

// findParentWithDevtype walks up the sysfs device tree from start looking
// for an ancestor whose uevent declares the given DEVTYPE. The USB device
// node is several levels above the HID node, the interface node sits in
// between.
func findParentWithDevtype(start, devtype string) (string, bool) {
	dir, err := filepath.EvalSymlinks(start)
	if err != nil {
		return "", false
	}

	want := "DEVTYPE=" + devtype
	for dir != "/" && dir != "/sys/devices" && dir != "." {
		data, err := os.ReadFile(filepath.Join(dir, "uevent"))
		if err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				if line == want {
					return dir, true
				}
			}
		}
		dir = filepath.Dir(dir)
	}

	return "", false
}

// deviceInfos expands one hidraw node into enumeration records, one per
// top-level usage pair in its report descriptor. Records share the
// identity fields and differ only in UsagePage and Usage.
func (s *SysfsHIDDevice) deviceInfos() []*DeviceInfo {
	base := &DeviceInfo{
		Path:            s.DevPath,
		VendorID:        s.VendorID,
		ProductID:       s.ProductID,
		SerialNumber:    s.Serial,
		InterfaceNumber: -1,
		BusType:         s.BusType,
	}

	switch s.BusType {
	case BusUSB:
		hidNode := filepath.Join(s.SysfsPath, "device")
		if usbDev, found := findParentWithDevtype(hidNode, "usb_device"); found {
			base.ManufacturerString = readSysfsString(usbDev, "manufacturer")
			base.ProductString = readSysfsString(usbDev, "product")
			base.ReleaseNumber = readSysfsHex16(usbDev, "bcdDevice")
		} else {
			// Virtual (uhid) devices carry no USB ancestry; fall back to
			// the HID name.
			base.ProductString = s.Name
		}
		if intfDev, found := findParentWithDevtype(hidNode, "usb_interface"); found {
			if num := readSysfsString(intfDev, "bInterfaceNumber"); num != "" {
				if val, err := strconv.ParseInt(num, 16, 32); err == nil {
					base.InterfaceNumber = int(val)
				}
			}
		}
	case BusBluetooth, BusI2C:
		base.ProductString = s.Name
	}

	desc, err := os.ReadFile(filepath.Join(s.SysfsPath, "device", "report_descriptor"))
	if err != nil {
		// Report descriptor unavailable; keep the record with zeroed
		// usage fields rather than dropping the device.
		return []*DeviceInfo{base}
	}

	pairs := usagePairs(desc)
	if len(pairs) == 0 {
		return []*DeviceInfo{base}
	}

	infos := make([]*DeviceInfo, 0, len(pairs))
	for _, pair := range pairs {
		info := *base
		info.UsagePage = pair.UsagePage
		info.Usage = pair.Usage
		infos = append(infos, &info)
	}
	return infos
}
