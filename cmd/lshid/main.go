// lshid lists the HID devices attached to the system, in the spirit of
// lsusb. With -d it restricts the listing to one vendor/product pair,
// with -v it prints every field of each record.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	hid "github.com/kevmo314/go-hid"
)

var (
	verbose = flag.Bool("v", false, "Verbose output")
	device  = flag.String("d", "", "Show only devices with specified VID:PID (e.g., 046d:c52b)")
	version = flag.Bool("V", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("lshid (go-hid) %s\n", hid.Version())
		return
	}

	var vid, pid uint16
	if *device != "" {
		var err error
		vid, pid, err = parseVidPid(*device)
		if err != nil {
			log.Fatalf("Invalid -d argument: %v", err)
		}
	}

	devices, err := hid.Enumerate(vid, pid)
	if err != nil {
		log.Fatalf("Failed to enumerate HID devices: %v", err)
	}

	for _, info := range devices {
		if *verbose {
			displayVerbose(info)
		} else {
			displaySimple(info)
		}
	}

	if *verbose {
		fmt.Printf("%d devices found\n", len(devices))
	}
}

func parseVidPid(s string) (uint16, uint16, error) {
	vidStr, pidStr, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, fmt.Errorf("expected VID:PID, got %q", s)
	}

	var vid, pid uint64
	var err error
	if vidStr != "" {
		vid, err = strconv.ParseUint(vidStr, 16, 16)
		if err != nil {
			return 0, 0, fmt.Errorf("bad vendor ID %q: %v", vidStr, err)
		}
	}
	if pidStr != "" {
		pid, err = strconv.ParseUint(pidStr, 16, 16)
		if err != nil {
			return 0, 0, fmt.Errorf("bad product ID %q: %v", pidStr, err)
		}
	}
	return uint16(vid), uint16(pid), nil
}

func displaySimple(info *hid.DeviceInfo) {
	name := strings.TrimSpace(info.ManufacturerString + " " + info.ProductString)
	if name == "" {
		name = "(unnamed device)"
	}
	fmt.Printf("%s ID %04x:%04x %s\n", info.BusType, info.VendorID, info.ProductID, name)
}

func displayVerbose(info *hid.DeviceInfo) {
	displaySimple(info)
	fmt.Printf("  Path:             %s\n", info.Path)
	fmt.Printf("  Serial Number:    %s\n", info.SerialNumber)
	fmt.Printf("  Release Number:   %x.%02x\n", info.ReleaseNumber>>8, info.ReleaseNumber&0xff)
	fmt.Printf("  Usage Page:       0x%04x (%s)\n", info.UsagePage, hid.UsagePageName(info.UsagePage))
	fmt.Printf("  Usage:            0x%04x (%s)\n", info.Usage, hid.UsageName(info.UsagePage, info.Usage))
	fmt.Printf("  Interface Number: %d\n", info.InterfaceNumber)
	fmt.Println()
}
