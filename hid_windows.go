package hid

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// writeTimeout bounds how long an overlapped output report write may
// stay in flight before it is reported as timed out.
const writeTimeout = 1000 // milliseconds

// Device is an open HID device handle backed by overlapped I/O.
type Device struct {
	handle   windows.Handle
	path     string
	blocking bool
	readonly bool

	outputReportLength  uint16
	inputReportLength   uint16
	featureReportLength uint16

	// At most one overlapped read is in flight per handle; it survives a
	// timed-out ReadTimeout call and is picked up by the next one.
	readMu      sync.Mutex
	readOl      windows.Overlapped
	readPending bool
	readBuf     []byte

	writeOl    windows.Overlapped
	writeBuf   []byte
	featureBuf []byte

	mu      sync.RWMutex
	closed  bool
	info    *DeviceInfo
	lastErr lastError
}

func enumerate(vendorID, productID uint16) ([]*DeviceInfo, error) {
	guid := hidGetHidGuid()

	devInfoSet, err := setupDiGetClassDevs(&guid, nil, 0, DIGCF_PRESENT|DIGCF_DEVICEINTERFACE)
	if err != nil {
		return nil, fmt.Errorf("SetupDiGetClassDevs failed: %w", err)
	}
	defer setupDiDestroyDeviceInfoList(devInfoSet)

	var devices []*DeviceInfo

	for index := uint32(0); ; index++ {
		var interfaceData spDeviceInterfaceData
		interfaceData.cbSize = uint32(unsafe.Sizeof(interfaceData))

		if err := setupDiEnumDeviceInterfaces(devInfoSet, nil, &guid, index, &interfaceData); err != nil {
			if errno, ok := err.(syscall.Errno); ok && errno == ERROR_NO_MORE_ITEMS {
				break
			}
			continue
		}

		path, err := devicePathForInterface(devInfoSet, &interfaceData, nil)
		if err != nil {
			continue
		}

		var devInfoData spDevinfoData
		devInfoData.cbSize = uint32(unsafe.Sizeof(devInfoData))
		if err := setupDiEnumDeviceInfo(devInfoSet, index, &devInfoData); err != nil {
			continue
		}

		// Skip devices without a driver bound; they cannot be opened.
		var driverName [256]byte
		if err := setupDiGetDeviceRegistryProperty(devInfoSet, &devInfoData, SPDRP_DRIVER, driverName[:]); err != nil {
			continue
		}

		// A read-only handle is enough for identity and capabilities.
		handle, err := openDeviceHandle(path, false)
		if err != nil {
			continue
		}

		attrib, ok := hidGetAttributes(handle)
		if ok &&
			(vendorID == 0 || attrib.VendorID == vendorID) &&
			(productID == 0 || attrib.ProductID == productID) {
			devices = append(devices, getDeviceInfo(path, handle))
		}

		windows.CloseHandle(handle)
	}

	return devices, nil
}

// openDeviceHandle opens an interface path for overlapped I/O. With rw
// unset the handle carries no read/write access but still supports the
// HidD_* and DeviceIoControl paths.
func openDeviceHandle(path string, rw bool) (windows.Handle, error) {
	pathp, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return windows.InvalidHandle, err
	}

	var access uint32
	if rw {
		access = windows.GENERIC_READ | windows.GENERIC_WRITE
	}

	return windows.CreateFile(
		pathp,
		access,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OVERLAPPED,
		0,
	)
}

// getDeviceInfo builds the enumeration record for an open handle.
func getDeviceInfo(path string, handle windows.Handle) *DeviceInfo {
	info := &DeviceInfo{
		Path:            path,
		InterfaceNumber: -1,
	}

	if attrib, ok := hidGetAttributes(handle); ok {
		info.VendorID = attrib.VendorID
		info.ProductID = attrib.ProductID
		info.ReleaseNumber = attrib.VersionNumber
	}

	if caps, ok := hidGetCaps(handle); ok {
		info.UsagePage = caps.UsagePage
		info.Usage = caps.Usage
	}

	info.SerialNumber = hidGetDeviceString(procHidD_GetSerialNumberString, handle)
	info.ManufacturerString = hidGetDeviceString(procHidD_GetManufacturerString, handle)
	info.ProductString = hidGetDeviceString(procHidD_GetProductString, handle)

	info.InterfaceNumber = interfaceNumberFromPath(path)

	resolveBusInfo(info)

	return info
}

// interfaceNumberFromPath extracts the USB interface number that
// multi-interface devices encode in the path as "&mi_xx" (HIDClass
// Hardware IDs for Top-Level Collections), or -1 when absent.
func interfaceNumberFromPath(path string) int {
	lower := strings.ToLower(path)
	pos := strings.Index(lower, "&mi_")
	if pos < 0 {
		return -1
	}

	hex := lower[pos+4:]
	end := 0
	for end < len(hex) && isHexDigit(hex[end]) {
		end++
	}
	if end == 0 {
		return -1
	}

	val, err := strconv.ParseInt(hex[:end], 16, 32)
	if err != nil {
		return -1
	}
	return int(val)
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f'
}

// resolveBusInfo classifies the transport from the parent device node's
// compatible IDs and, for Bluetooth LE devices, replaces the strings
// hid.dll cannot deliver with device node properties.
func resolveBusInfo(info *DeviceInfo) {
	if !cfgmgrAvailable() {
		return
	}

	interfacePath, err := windows.UTF16PtrFromString(info.Path)
	if err != nil {
		return
	}

	deviceID, ok := cmGetDeviceInterfaceProperty(interfacePath, &devpkeyDeviceInstanceID, devpropTypeString)
	if !ok {
		return
	}

	devNode, ok := cmLocateDevNode(&deviceID[0])
	if !ok {
		return
	}

	parent, ok := cmGetParent(devNode)
	if !ok {
		return
	}

	compatibleIDs, ok := cmGetDevNodeProperty(parent, &devpkeyDeviceCompatibleIDs, devpropTypeStringList)
	if !ok {
		return
	}

	for _, id := range splitStringList(compatibleIDs) {
		id = strings.ToUpper(id)
		switch {
		case strings.Contains(id, "BTHLEDEVICE"):
			info.BusType = BusBluetooth
			fillBLEInfo(info, parent)
			return
		case strings.HasPrefix(id, "USB"):
			info.BusType = BusUSB
		case strings.HasPrefix(id, "BTHENUM"):
			info.BusType = BusBluetooth
		}
	}
}

// fillBLEInfo reads name, manufacturer and address of a Bluetooth LE
// device from its device node, where hid.dll's string functions return
// nothing.
func fillBLEInfo(info *DeviceInfo, devNode uint32) {
	if s, ok := cmGetDevNodeProperty(devNode, &devpkeyBluetoothManufacturer, devpropTypeString); ok {
		info.ManufacturerString = windows.UTF16ToString(s)
	}
	// The device address stands in for a serial number.
	if s, ok := cmGetDevNodeProperty(devNode, &devpkeyBluetoothDeviceAddress, devpropTypeString); ok {
		info.SerialNumber = windows.UTF16ToString(s)
	}

	// The product name lives one more level up, on the BLE device node.
	grandparent, ok := cmGetParent(devNode)
	if !ok {
		return
	}
	if s, ok := cmGetDevNodeProperty(grandparent, &devpkeyName, devpropTypeString); ok {
		info.ProductString = windows.UTF16ToString(s)
	}
}

// splitStringList splits a REG_MULTI_SZ style UTF-16 buffer into its
// member strings.
func splitStringList(buf []uint16) []string {
	var out []string
	start := 0
	for i, c := range buf {
		if c == 0 {
			if i > start {
				out = append(out, windows.UTF16ToString(buf[start:i]))
			}
			start = i + 1
		}
	}
	return out
}

func openPath(path string) (*Device, error) {
	handle, err := openDeviceHandle(path, true)
	readonly := false
	if err != nil {
		// System devices such as keyboards and mice cannot be opened
		// read-write because the system claims them exclusively. Feature
		// reports still work on a handle without read/write access.
		handle, err = openDeviceHandle(path, false)
		readonly = true
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if !hidSetNumInputBuffers(handle, 64) {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("HidD_SetNumInputBuffers failed: %w", windows.GetLastError())
	}

	caps, ok := hidGetCaps(handle)
	if !ok {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("failed to read device capabilities")
	}

	readEvent, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("CreateEvent failed: %w", err)
	}
	writeEvent, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		windows.CloseHandle(readEvent)
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("CreateEvent failed: %w", err)
	}

	dev := &Device{
		handle:              handle,
		path:                path,
		blocking:            true,
		readonly:            readonly,
		outputReportLength:  caps.OutputReportByteLength,
		inputReportLength:   caps.InputReportByteLength,
		featureReportLength: caps.FeatureReportByteLength,
		readBuf:             make([]byte, caps.InputReportByteLength),
		info:                getDeviceInfo(path, handle),
	}
	dev.readOl.HEvent = readEvent
	dev.writeOl.HEvent = writeEvent

	return dev, nil
}

// Write sends an output report. data[0] must hold the report ID, zero
// when the device does not use numbered reports. Windows requires the
// full OutputReportByteLength bytes per write, so shorter reports are
// zero-padded into a scratch buffer first; the returned count reflects
// the padded length actually handed to the device.
func (d *Device) Write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, d.lastErr.set(ErrInvalidParameter)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, d.lastErr.set(ErrDeviceClosed)
	}

	if d.writeBuf == nil {
		d.writeBuf = make([]byte, d.outputReportLength)
	}
	buf := padReport(data, d.writeBuf)

	err := windows.WriteFile(d.handle, buf, nil, &d.writeOl)
	if err != nil && err != windows.ERROR_IO_PENDING {
		return 0, d.lastErr.set(fmt.Errorf("WriteFile failed: %w", err))
	}

	// The wait makes the write synchronous; an expired wait leaves the
	// operation running and reports a timeout.
	event, err := windows.WaitForSingleObject(d.writeOl.HEvent, writeTimeout)
	if err != nil {
		return 0, d.lastErr.set(fmt.Errorf("WaitForSingleObject failed: %w", err))
	}
	if event != windows.WAIT_OBJECT_0 {
		return 0, d.lastErr.set(ErrTimeout)
	}

	var written uint32
	if err := windows.GetOverlappedResult(d.handle, &d.writeOl, &written, false); err != nil {
		return 0, d.lastErr.set(fmt.Errorf("WriteFile failed: %w", err))
	}
	d.lastErr.set(nil)
	return int(written), nil
}

// ReadTimeout reads an input report into data. A negative timeout blocks
// until a report arrives, zero polls, and a positive value waits at most
// that long. Expiry is not an error: the call returns 0 bytes, a nil
// error, and leaves the overlapped read pending for the next call. If
// the device uses numbered reports the first byte of data is the report
// ID; the report ID byte Windows prepends for unnumbered devices is
// stripped.
func (d *Device) ReadTimeout(data []byte, timeout time.Duration) (int, error) {
	d.readMu.Lock()
	defer d.readMu.Unlock()

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return 0, d.lastErr.set(ErrDeviceClosed)
	}
	handle := d.handle
	d.mu.RUnlock()

	if !d.readPending {
		d.readPending = true
		clear(d.readBuf)
		windows.ResetEvent(d.readOl.HEvent)
		err := windows.ReadFile(handle, d.readBuf, nil, &d.readOl)
		if err != nil && err != windows.ERROR_IO_PENDING {
			windows.CancelIo(handle)
			d.readPending = false
			return 0, d.lastErr.set(fmt.Errorf("ReadFile failed: %w", err))
		}
	}

	if timeout >= 0 {
		ms := uint32(timeout.Milliseconds())
		if timeout > 0 && ms == 0 {
			ms = 1
		}
		event, err := windows.WaitForSingleObject(d.readOl.HEvent, ms)
		if err != nil {
			// The overlapped read is still in flight; cancel and drain it
			// so the next call can issue a fresh one.
			windows.CancelIo(handle)
			var discard uint32
			windows.GetOverlappedResult(handle, &d.readOl, &discard, true)
			d.readPending = false
			return 0, d.lastErr.set(fmt.Errorf("WaitForSingleObject failed: %w", err))
		}
		if event != windows.WAIT_OBJECT_0 {
			// No data yet; keep the overlapped read running.
			d.lastErr.set(nil)
			return 0, nil
		}
	}

	var bytesRead uint32
	err := windows.GetOverlappedResult(handle, &d.readOl, &bytesRead, true)
	d.readPending = false
	if err != nil {
		return 0, d.lastErr.set(fmt.Errorf("GetOverlappedResult failed: %w", err))
	}

	n := stripReportID(data, d.readBuf[:bytesRead])
	d.lastErr.set(nil)
	return n, nil
}

// padReport zero-pads a report shorter than the scratch buffer into it.
// Windows rejects output and feature reports shorter than the length in
// the device capabilities. data is never modified; reports already long
// enough pass through as-is.
func padReport(data, scratch []byte) []byte {
	if len(data) >= len(scratch) {
		return data
	}
	copy(scratch, data)
	clear(scratch[len(data):])
	return scratch
}

// stripReportID copies a received input report from src into dst,
// dropping the zero report ID byte Windows prepends for devices that do
// not use numbered reports, and returns the number of bytes stored. The
// result is clamped to the capacity of dst.
func stripReportID(dst, src []byte) int {
	if len(src) > 0 && src[0] == 0x00 {
		src = src[1:]
	}
	n := len(src)
	if n > len(dst) {
		n = len(dst)
	}
	copy(dst, src[:n])
	return n
}

// SetNonblocking selects the blocking mode used by Read.
func (d *Device) SetNonblocking(nonblock bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return d.lastErr.set(ErrDeviceClosed)
	}
	d.blocking = !nonblock
	return d.lastErr.set(nil)
}

func (d *Device) nonblocking() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return !d.blocking
}

// SendFeatureReport sends a feature report. data[0] holds the report ID.
// HidD_SetFeature insists on at least FeatureReportByteLength bytes, so
// shorter reports are zero-padded; the returned count is the caller's
// length.
func (d *Device) SendFeatureReport(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, d.lastErr.set(ErrInvalidParameter)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, d.lastErr.set(ErrDeviceClosed)
	}

	if d.featureBuf == nil {
		d.featureBuf = make([]byte, d.featureReportLength)
	}
	buf := padReport(data, d.featureBuf)

	if err := hidSetFeature(d.handle, buf); err != nil {
		return 0, d.lastErr.set(fmt.Errorf("HidD_SetFeature failed: %w", err))
	}
	d.lastErr.set(nil)
	return len(data), nil
}

// GetFeatureReport reads a feature report. data[0] must be set to the
// report ID before the call.
func (d *Device) GetFeatureReport(data []byte) (int, error) {
	return d.getReport(ioctlHidGetFeature, data)
}

// GetInputReport reads an input report directly from the device control
// pipe, bypassing the interrupt channel.
func (d *Device) GetInputReport(data []byte) (int, error) {
	return d.getReport(ioctlHidGetInputReport, data)
}

// getReport runs one of the report-fetch IOCTLs synchronously. The IOCTL
// is preferred over the corresponding HidD_* call because it reports the
// actual transfer length.
func (d *Device) getReport(code uint32, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, d.lastErr.set(ErrInvalidParameter)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, d.lastErr.set(ErrDeviceClosed)
	}

	ol := new(windows.Overlapped)
	var returned uint32
	err := windows.DeviceIoControl(d.handle, code,
		&data[0], uint32(len(data)),
		&data[0], uint32(len(data)),
		&returned, ol)
	if err != nil && err != windows.ERROR_IO_PENDING {
		return 0, d.lastErr.set(fmt.Errorf("DeviceIoControl failed: %w", err))
	}

	if err := windows.GetOverlappedResult(d.handle, ol, &returned, true); err != nil {
		return 0, d.lastErr.set(fmt.Errorf("GetOverlappedResult failed: %w", err))
	}

	// For unnumbered reports the driver's count excludes the leading
	// zero byte it filled in; account for it.
	if data[0] == 0x00 {
		returned++
	}
	d.lastErr.set(nil)
	return int(returned), nil
}

// Info returns the enumeration record cached when the device was opened.
func (d *Device) Info() (*DeviceInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, d.lastErr.set(ErrDeviceClosed)
	}
	return d.info, nil
}

// ManufacturerString returns the manufacturer reported by the device, or
// "" when it does not provide one.
func (d *Device) ManufacturerString() (string, error) {
	info, err := d.Info()
	if err != nil {
		return "", err
	}
	return info.ManufacturerString, nil
}

// ProductString returns the product name reported by the device.
func (d *Device) ProductString() (string, error) {
	info, err := d.Info()
	if err != nil {
		return "", err
	}
	return info.ProductString, nil
}

// SerialNumberString returns the serial number reported by the device.
func (d *Device) SerialNumberString() (string, error) {
	info, err := d.Info()
	if err != nil {
		return "", err
	}
	return info.SerialNumber, nil
}

// LastError returns the text of the most recent failure on this handle,
// or "Success" when the last operation completed cleanly.
func (d *Device) LastError() string {
	return d.lastErr.String()
}

// Close cancels any pending overlapped I/O and releases the handle. It
// is safe to call more than once and on a nil handle.
func (d *Device) Close() error {
	if d == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	windows.CancelIo(d.handle)
	windows.CloseHandle(d.readOl.HEvent)
	windows.CloseHandle(d.writeOl.HEvent)

	if err := windows.CloseHandle(d.handle); err != nil {
		return fmt.Errorf("CloseHandle failed: %w", err)
	}
	return nil
}
