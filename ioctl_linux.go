package hid

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux _IOC encoding (asm-generic/ioctl.h) and the hidraw requests from
// linux/hidraw.h. The arch-specific layouts differ only for legacy
// architectures Go does not target.
const (
	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNrShift | size<<iocSizeShift
}

// hidMaxDescriptorSize is HID_MAX_DESCRIPTOR_SIZE from linux/hid.h.
const hidMaxDescriptorSize = 4096

// hidrawReportDescriptor mirrors struct hidraw_report_descriptor.
type hidrawReportDescriptor struct {
	size  uint32
	value [hidMaxDescriptorSize]byte
}

var (
	hidIOCGRDescSize = ioc(iocRead, 'H', 0x01, unsafe.Sizeof(uint32(0)))
	hidIOCGRDesc     = ioc(iocRead, 'H', 0x02, unsafe.Sizeof(hidrawReportDescriptor{}))
)

func hidIOCSFeature(length int) uintptr {
	return ioc(iocRead|iocWrite, 'H', 0x06, uintptr(length))
}

func hidIOCGFeature(length int) uintptr {
	return ioc(iocRead|iocWrite, 'H', 0x07, uintptr(length))
}

// ioctl issues a hidraw request against fd. The feature report requests
// return the number of bytes transferred.
func ioctl(fd int, req uintptr, arg unsafe.Pointer) (int, error) {
	r0, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return 0, errno
	}
	return int(r0), nil
}
