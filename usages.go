package hid

import "fmt"

// Human-readable names for the well-known usage pages and a few of the
// usages that matter when eyeballing enumeration output. From the HID
// Usage Tables, not exhaustive.

var usagePageNames = map[uint16]string{
	0x0001: "Generic Desktop",
	0x0002: "Simulation Controls",
	0x0003: "VR Controls",
	0x0004: "Sport Controls",
	0x0005: "Game Controls",
	0x0006: "Generic Device Controls",
	0x0007: "Keyboard/Keypad",
	0x0008: "LED",
	0x0009: "Button",
	0x000c: "Consumer",
	0x000d: "Digitizer",
	0x000f: "Physical Interface",
	0x0014: "Auxiliary Display",
	0x0020: "Sensors",
	0x0040: "Medical Instrument",
	0x0084: "Power Device",
	0x008c: "Bar Code Scanner",
	0x008d: "Scale",
	0x008e: "Magnetic Stripe Reader",
	0x0090: "Camera Control",
	0xf1d0: "FIDO Alliance",
}

var genericDesktopUsageNames = map[uint16]string{
	0x01: "Pointer",
	0x02: "Mouse",
	0x04: "Joystick",
	0x05: "Gamepad",
	0x06: "Keyboard",
	0x07: "Keypad",
	0x08: "Multi-axis Controller",
	0x80: "System Control",
}

// UsagePageName returns a human-readable name for a usage page. The
// vendor-defined range reads as "Vendor Defined"; anything else unknown
// is rendered numerically.
func UsagePageName(page uint16) string {
	if name, ok := usagePageNames[page]; ok {
		return name
	}
	if page >= 0xff00 {
		return "Vendor Defined"
	}
	return fmt.Sprintf("0x%04x", page)
}

// UsageName returns a human-readable name for a usage within a page, or
// the numeric form when the usage has no well-known name.
func UsageName(page, usage uint16) string {
	if page == 0x0001 {
		if name, ok := genericDesktopUsageNames[usage]; ok {
			return name
		}
	}
	return fmt.Sprintf("0x%04x", usage)
}
