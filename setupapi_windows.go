package hid

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	DIGCF_PRESENT         = 0x00000002
	DIGCF_DEVICEINTERFACE = 0x00000010

	ERROR_NO_MORE_ITEMS = 259

	// SPDRP_DRIVER of SetupDiGetDeviceRegistryProperty; present only for
	// devices with a driver bound.
	SPDRP_DRIVER = 0x00000009
)

var (
	modsetupapi = windows.NewLazySystemDLL("setupapi.dll")

	procSetupDiGetClassDevsW              = modsetupapi.NewProc("SetupDiGetClassDevsW")
	procSetupDiEnumDeviceInterfaces       = modsetupapi.NewProc("SetupDiEnumDeviceInterfaces")
	procSetupDiGetDeviceInterfaceDetailW  = modsetupapi.NewProc("SetupDiGetDeviceInterfaceDetailW")
	procSetupDiDestroyDeviceInfoList      = modsetupapi.NewProc("SetupDiDestroyDeviceInfoList")
	procSetupDiGetDeviceRegistryPropertyW = modsetupapi.NewProc("SetupDiGetDeviceRegistryPropertyW")
	procSetupDiEnumDeviceInfo             = modsetupapi.NewProc("SetupDiEnumDeviceInfo")
)

// SP_DEVINFO_DATA structure
type spDevinfoData struct {
	cbSize    uint32
	ClassGUID windows.GUID
	DevInst   uint32
	Reserved  uintptr
}

// SP_DEVICE_INTERFACE_DATA structure
type spDeviceInterfaceData struct {
	cbSize             uint32
	InterfaceClassGUID windows.GUID
	Flags              uint32
	Reserved           uintptr
}

// SP_DEVICE_INTERFACE_DETAIL_DATA structure (variable size)
type spDeviceInterfaceDetailData struct {
	cbSize     uint32
	DevicePath [1]uint16 // Variable length
}

// SetupDiGetClassDevs returns a device information set
func setupDiGetClassDevs(classGUID *windows.GUID, enumerator *uint16, hwndParent uintptr, flags uint32) (windows.Handle, error) {
	r0, _, e1 := syscall.SyscallN(
		procSetupDiGetClassDevsW.Addr(),
		uintptr(unsafe.Pointer(classGUID)),
		uintptr(unsafe.Pointer(enumerator)),
		hwndParent,
		uintptr(flags),
	)
	handle := windows.Handle(r0)
	if handle == windows.InvalidHandle {
		return handle, e1
	}
	return handle, nil
}

// SetupDiEnumDeviceInterfaces enumerates device interfaces
func setupDiEnumDeviceInterfaces(devInfoSet windows.Handle, devInfoData *spDevinfoData, interfaceClassGUID *windows.GUID, memberIndex uint32, deviceInterfaceData *spDeviceInterfaceData) error {
	r0, _, e1 := syscall.SyscallN(
		procSetupDiEnumDeviceInterfaces.Addr(),
		uintptr(devInfoSet),
		uintptr(unsafe.Pointer(devInfoData)),
		uintptr(unsafe.Pointer(interfaceClassGUID)),
		uintptr(memberIndex),
		uintptr(unsafe.Pointer(deviceInterfaceData)),
	)
	if r0 == 0 {
		return e1
	}
	return nil
}

// SetupDiGetDeviceInterfaceDetail gets device interface detail
func setupDiGetDeviceInterfaceDetail(devInfoSet windows.Handle, deviceInterfaceData *spDeviceInterfaceData, deviceInterfaceDetailData *spDeviceInterfaceDetailData, deviceInterfaceDetailDataSize uint32, requiredSize *uint32, deviceInfoData *spDevinfoData) error {
	r0, _, e1 := syscall.SyscallN(
		procSetupDiGetDeviceInterfaceDetailW.Addr(),
		uintptr(devInfoSet),
		uintptr(unsafe.Pointer(deviceInterfaceData)),
		uintptr(unsafe.Pointer(deviceInterfaceDetailData)),
		uintptr(deviceInterfaceDetailDataSize),
		uintptr(unsafe.Pointer(requiredSize)),
		uintptr(unsafe.Pointer(deviceInfoData)),
	)
	if r0 == 0 {
		return e1
	}
	return nil
}

// SetupDiDestroyDeviceInfoList destroys a device information set
func setupDiDestroyDeviceInfoList(devInfoSet windows.Handle) error {
	r0, _, e1 := syscall.SyscallN(
		procSetupDiDestroyDeviceInfoList.Addr(),
		uintptr(devInfoSet),
	)
	if r0 == 0 {
		return e1
	}
	return nil
}

// SetupDiEnumDeviceInfo returns the device info element at memberIndex
func setupDiEnumDeviceInfo(devInfoSet windows.Handle, memberIndex uint32, devInfoData *spDevinfoData) error {
	r0, _, e1 := syscall.SyscallN(
		procSetupDiEnumDeviceInfo.Addr(),
		uintptr(devInfoSet),
		uintptr(memberIndex),
		uintptr(unsafe.Pointer(devInfoData)),
	)
	if r0 == 0 {
		return e1
	}
	return nil
}

// SetupDiGetDeviceRegistryProperty reads a registry property of a device
func setupDiGetDeviceRegistryProperty(devInfoSet windows.Handle, devInfoData *spDevinfoData, property uint32, buf []byte) error {
	r0, _, e1 := syscall.SyscallN(
		procSetupDiGetDeviceRegistryPropertyW.Addr(),
		uintptr(devInfoSet),
		uintptr(unsafe.Pointer(devInfoData)),
		uintptr(property),
		0,
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		0,
	)
	if r0 == 0 {
		return e1
	}
	return nil
}

// devicePathForInterface resolves the device path of an interface using
// the usual call-twice pattern: ask for the required size, then fetch the
// detail structure into a buffer of that size.
func devicePathForInterface(devInfoSet windows.Handle, interfaceData *spDeviceInterfaceData, devInfoData *spDevinfoData) (string, error) {
	var requiredSize uint32
	setupDiGetDeviceInterfaceDetail(devInfoSet, interfaceData, nil, 0, &requiredSize, nil)
	if requiredSize == 0 {
		return "", fmt.Errorf("SetupDiGetDeviceInterfaceDetail returned no size")
	}

	detailBuf := make([]byte, requiredSize)
	detailData := (*spDeviceInterfaceDetailData)(unsafe.Pointer(&detailBuf[0]))
	// cbSize covers only the fixed portion of the structure: 8 bytes on
	// 64-bit Windows (4 for cbSize plus padding), 6 bytes on 32-bit.
	if unsafe.Sizeof(uintptr(0)) == 8 {
		detailData.cbSize = 8
	} else {
		detailData.cbSize = 6
	}

	if err := setupDiGetDeviceInterfaceDetail(devInfoSet, interfaceData, detailData, requiredSize, nil, devInfoData); err != nil {
		return "", err
	}

	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(&detailData.DevicePath[0]))), nil
}
