package hid

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// enumerateConcurrency bounds the parallel sysfs walks during Enumerate.
const enumerateConcurrency = 8

// Device is an open hidraw device.
type Device struct {
	fd       int
	path     string
	numbered bool // descriptor contains Report ID items
	blocking bool
	readonly bool

	mu      sync.RWMutex
	closed  bool
	info    *DeviceInfo
	lastErr lastError
}

func enumerate(vendorID, productID uint16) ([]*DeviceInfo, error) {
	nodes, err := enumerateSysfsHID()
	if err != nil {
		return nil, err
	}

	candidates := nodes[:0]
	for _, node := range nodes {
		if vendorID != 0 && vendorID != node.VendorID {
			continue
		}
		if productID != 0 && productID != node.ProductID {
			continue
		}
		candidates = append(candidates, node)
	}

	// Resolving metadata touches several sysfs files per node; do the
	// candidates in parallel but keep traversal order in the result.
	results := make([][]*DeviceInfo, len(candidates))
	var g errgroup.Group
	g.SetLimit(enumerateConcurrency)
	for i, node := range candidates {
		i, node := i, node
		g.Go(func() error {
			results[i] = node.deviceInfos()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var devices []*DeviceInfo
	for _, infos := range results {
		devices = append(devices, infos...)
	}
	return devices, nil
}

func openPath(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	readonly := false
	if err == unix.EACCES || err == unix.EPERM {
		// Feature reports still work without write access.
		fd, err = unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
		readonly = true
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	dev := &Device{
		fd:       fd,
		path:     path,
		blocking: true,
		readonly: readonly,
	}

	// Fetch the report descriptor to learn whether reports carry IDs.
	// Failure here leaves the device usable with unnumbered semantics.
	var descSize uint32
	if _, err := ioctl(fd, hidIOCGRDescSize, unsafe.Pointer(&descSize)); err == nil {
		var desc hidrawReportDescriptor
		if descSize > hidMaxDescriptorSize {
			descSize = hidMaxDescriptorSize
		}
		desc.size = descSize
		if _, err := ioctl(fd, hidIOCGRDesc, unsafe.Pointer(&desc)); err == nil {
			dev.numbered = usesNumberedReports(desc.value[:desc.size])
		}
	}

	return dev, nil
}

// Write sends an output report. data[0] must hold the report ID, zero
// when the device does not use numbered reports; the ID byte counts
// toward the returned length.
func (d *Device) Write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, d.lastErr.set(ErrInvalidParameter)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return 0, d.lastErr.set(ErrDeviceClosed)
	}

	n, err := unix.Write(d.fd, data)
	if err != nil {
		return 0, d.lastErr.set(fmt.Errorf("write failed: %w", err))
	}
	d.lastErr.set(nil)
	return n, nil
}

// ReadTimeout reads an input report into data. A negative timeout blocks
// until a report arrives, zero polls, and a positive value waits at most
// that long. Expiry is not an error: the call returns 0 bytes and a nil
// error. If the device uses numbered reports the first byte of data is
// the report ID.
func (d *Device) ReadTimeout(data []byte, timeout time.Duration) (int, error) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return 0, d.lastErr.set(ErrDeviceClosed)
	}
	fd := d.fd
	d.mu.RUnlock()

	// Always go through poll() rather than O_NONBLOCK: some kernels do
	// not report disconnection through read() in non-blocking mode.
	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
		if timeout > 0 && ms == 0 {
			ms = 1
		}
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, d.lastErr.set(fmt.Errorf("poll failed: %w", err))
		}
		if n == 0 {
			// Timeout.
			d.lastErr.set(nil)
			return 0, nil
		}
		break
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return 0, d.lastErr.set(fmt.Errorf("%w: device disconnected", ErrIO))
	}

	n, err := unix.Read(fd, data)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINPROGRESS {
			d.lastErr.set(nil)
			return 0, nil
		}
		if err == unix.EBADF {
			return 0, d.lastErr.set(ErrDeviceClosed)
		}
		return 0, d.lastErr.set(fmt.Errorf("read failed: %w", err))
	}
	d.lastErr.set(nil)
	return n, nil
}

// SetNonblocking selects the blocking mode used by Read. Blocking is
// implemented in userspace with poll() on top of the ReadTimeout path.
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

// SendFeatureReport sends a feature report. data[0] holds the report ID,
// zero for devices without numbered reports.
func (d *Device) SendFeatureReport(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, d.lastErr.set(ErrInvalidParameter)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return 0, d.lastErr.set(ErrDeviceClosed)
	}

	n, err := ioctl(d.fd, hidIOCSFeature(len(data)), unsafe.Pointer(&data[0]))
	if err != nil {
		return 0, d.lastErr.set(fmt.Errorf("ioctl (SFEATURE) failed: %w", err))
	}
	d.lastErr.set(nil)
	return n, nil
}

// GetFeatureReport reads a feature report. data[0] must be set to the
// report ID before the call; the kernel fills the rest.
func (d *Device) GetFeatureReport(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, d.lastErr.set(ErrInvalidParameter)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return 0, d.lastErr.set(ErrDeviceClosed)
	}

	n, err := ioctl(d.fd, hidIOCGFeature(len(data)), unsafe.Pointer(&data[0]))
	if err != nil {
		return 0, d.lastErr.set(fmt.Errorf("ioctl (GFEATURE) failed: %w", err))
	}
	d.lastErr.set(nil)
	return n, nil
}

// GetInputReport is not supported by the hidraw driver.
func (d *Device) GetInputReport(data []byte) (int, error) {
	return 0, d.lastErr.set(ErrNotSupported)
}

// Info returns the enumeration record for the open device, resolved from
// its sysfs node.
func (d *Device) Info() (*DeviceInfo, error) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return nil, d.lastErr.set(ErrDeviceClosed)
	}
	if d.info != nil {
		info := d.info
		d.mu.RUnlock()
		return info, nil
	}
	fd := d.fd
	d.mu.RUnlock()

	info, err := sysfsInfoForFd(fd)
	if err != nil {
		return nil, d.lastErr.set(err)
	}

	d.mu.Lock()
	d.info = info
	d.mu.Unlock()
	d.lastErr.set(nil)
	return info, nil
}

// sysfsInfoForFd locates the hidraw sysfs node backing fd through its
// character device number and builds the device record from it.
func sysfsInfoForFd(fd int) (*DeviceInfo, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("fstat failed: %w", err)
	}

	rdev := uint64(st.Rdev)
	node := fmt.Sprintf("/sys/dev/char/%d:%d", unix.Major(rdev), unix.Minor(rdev))
	resolved, err := filepath.EvalSymlinks(node)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sysfs node: %w", err)
	}

	sysfsDev, err := loadHIDFromSysfs(resolved, filepath.Base(resolved))
	if err != nil {
		return nil, err
	}

	infos := sysfsDev.deviceInfos()
	if len(infos) == 0 {
		return nil, ErrDeviceNotFound
	}
	return infos[0], nil
}

// ManufacturerString returns the manufacturer reported by the device, or
// "" when the transport does not provide one.
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

// Close releases the device. It is safe to call more than once and on a
// nil handle.
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

	if err := unix.Close(d.fd); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	return nil
}
