package main

import (
	"fmt"
	"log"
	"time"

	hid "github.com/kevmo314/go-hid"
)

func main() {
	devices, err := hid.Enumerate(0, 0)
	if err != nil {
		log.Fatalf("Failed to enumerate HID devices: %v", err)
	}

	fmt.Printf("Found %d HID interfaces:\n\n", len(devices))

	for i, info := range devices {
		fmt.Printf("Device #%d:\n", i+1)
		fmt.Printf("  Path:         %s\n", info.Path)
		fmt.Printf("  VID:PID:      %04x:%04x\n", info.VendorID, info.ProductID)
		fmt.Printf("  Bus:          %s\n", info.BusType)
		fmt.Printf("  Manufacturer: %s\n", info.ManufacturerString)
		fmt.Printf("  Product:      %s\n", info.ProductString)
		fmt.Printf("  Serial:       %s\n", info.SerialNumber)
		fmt.Printf("  Usage:        %s / %s\n",
			hid.UsagePageName(info.UsagePage), hid.UsageName(info.UsagePage, info.Usage))

		// Open the device and poll briefly for an input report.
		dev, err := hid.OpenPath(info.Path)
		if err != nil {
			fmt.Printf("  (could not open: %v)\n\n", err)
			continue
		}

		buf := make([]byte, 256)
		n, err := dev.ReadTimeout(buf, 100*time.Millisecond)
		switch {
		case err != nil:
			fmt.Printf("  Read error:   %v\n", err)
		case n == 0:
			fmt.Printf("  No input within 100ms\n")
		default:
			fmt.Printf("  Input report: % x\n", buf[:n])
		}

		dev.Close()
		fmt.Println()
	}
}
