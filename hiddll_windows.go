package hid

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// hid.dll bindings. The DLL ships with every supported Windows version;
// cfgmgr32.dll entry points used for Bluetooth LE metadata are probed at
// call time and skipped when absent.
var (
	modhid = windows.NewLazySystemDLL("hid.dll")

	procHidD_GetHidGuid            = modhid.NewProc("HidD_GetHidGuid")
	procHidD_GetAttributes         = modhid.NewProc("HidD_GetAttributes")
	procHidD_GetSerialNumberString = modhid.NewProc("HidD_GetSerialNumberString")
	procHidD_GetManufacturerString = modhid.NewProc("HidD_GetManufacturerString")
	procHidD_GetProductString      = modhid.NewProc("HidD_GetProductString")
	procHidD_SetFeature            = modhid.NewProc("HidD_SetFeature")
	procHidD_GetPreparsedData      = modhid.NewProc("HidD_GetPreparsedData")
	procHidD_FreePreparsedData     = modhid.NewProc("HidD_FreePreparsedData")
	procHidD_SetNumInputBuffers    = modhid.NewProc("HidD_SetNumInputBuffers")
	procHidP_GetCaps               = modhid.NewProc("HidP_GetCaps")
)

var (
	modcfgmgr32 = windows.NewLazySystemDLL("cfgmgr32.dll")

	procCM_Locate_DevNodeW                = modcfgmgr32.NewProc("CM_Locate_DevNodeW")
	procCM_Get_Parent                     = modcfgmgr32.NewProc("CM_Get_Parent")
	procCM_Get_DevNode_PropertyW          = modcfgmgr32.NewProc("CM_Get_DevNode_PropertyW")
	procCM_Get_Device_Interface_PropertyW = modcfgmgr32.NewProc("CM_Get_Device_Interface_PropertyW")
)

const (
	hidpStatusSuccess = 0x00110000

	// Control codes from hidclass.h: HID_OUT_CTL_CODE(code) expands to
	// CTL_CODE(FILE_DEVICE_KEYBOARD, code, METHOD_OUT_DIRECT,
	// FILE_ANY_ACCESS).
	ioctlHidGetFeature     = 0x0b0192 // HID_OUT_CTL_CODE(100)
	ioctlHidGetInputReport = 0x0b01a2 // HID_OUT_CTL_CODE(104)
)

// HIDD_ATTRIBUTES structure
type hiddAttributes struct {
	Size          uint32
	VendorID      uint16
	ProductID     uint16
	VersionNumber uint16
}

// HIDP_CAPS structure
type hidpCaps struct {
	Usage                     uint16
	UsagePage                 uint16
	InputReportByteLength     uint16
	OutputReportByteLength    uint16
	FeatureReportByteLength   uint16
	Reserved                  [17]uint16
	NumberLinkCollectionNodes uint16
	NumberInputButtonCaps     uint16
	NumberInputValueCaps      uint16
	NumberInputDataIndices    uint16
	NumberOutputButtonCaps    uint16
	NumberOutputValueCaps     uint16
	NumberOutputDataIndices   uint16
	NumberFeatureButtonCaps   uint16
	NumberFeatureValueCaps    uint16
	NumberFeatureDataIndices  uint16
}

func hidGetHidGuid() windows.GUID {
	var guid windows.GUID
	syscall.SyscallN(procHidD_GetHidGuid.Addr(), uintptr(unsafe.Pointer(&guid)))
	return guid
}

func hidGetAttributes(handle windows.Handle) (hiddAttributes, bool) {
	attrib := hiddAttributes{Size: uint32(unsafe.Sizeof(hiddAttributes{}))}
	r0, _, _ := syscall.SyscallN(
		procHidD_GetAttributes.Addr(),
		uintptr(handle),
		uintptr(unsafe.Pointer(&attrib)),
	)
	return attrib, r0 != 0
}

// hidGetDeviceString calls one of the HidD_Get*String functions into a
// fixed-size buffer. The device may legitimately not implement a string,
// in which case "" is returned.
func hidGetDeviceString(proc *windows.LazyProc, handle windows.Handle) string {
	var buf [512]uint16
	r0, _, _ := syscall.SyscallN(
		proc.Addr(),
		uintptr(handle),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)*2),
	)
	if r0 == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:])
}

func hidGetCaps(handle windows.Handle) (hidpCaps, bool) {
	var preparsed uintptr
	r0, _, _ := syscall.SyscallN(
		procHidD_GetPreparsedData.Addr(),
		uintptr(handle),
		uintptr(unsafe.Pointer(&preparsed)),
	)
	if r0 == 0 {
		return hidpCaps{}, false
	}
	defer syscall.SyscallN(procHidD_FreePreparsedData.Addr(), preparsed)

	var caps hidpCaps
	status, _, _ := syscall.SyscallN(
		procHidP_GetCaps.Addr(),
		preparsed,
		uintptr(unsafe.Pointer(&caps)),
	)
	return caps, status == hidpStatusSuccess
}

func hidSetNumInputBuffers(handle windows.Handle, count uint32) bool {
	r0, _, _ := syscall.SyscallN(
		procHidD_SetNumInputBuffers.Addr(),
		uintptr(handle),
		uintptr(count),
	)
	return r0 != 0
}

func hidSetFeature(handle windows.Handle, buf []byte) error {
	r0, _, e1 := syscall.SyscallN(
		procHidD_SetFeature.Addr(),
		uintptr(handle),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
	)
	if r0 == 0 {
		return e1
	}
	return nil
}

// Configuration manager pieces for resolving the device node behind an
// interface path. Only used to detect Bluetooth LE devices and pull their
// name and address, which hid.dll cannot report.
// https://docs.microsoft.com/answers/questions/401236/hidd-getproductstring-with-ble-hid-device.html

const (
	crSuccess     = 0x00
	crBufferSmall = 0x1a

	devpropTypeString     = 0x12
	devpropTypeStringList = 0x2012

	cmLocateDevnodeNormal = 0
)

// DEVPROPKEY structure
type devpropkey struct {
	fmtid windows.GUID
	pid   uint32
}

var (
	devpkeyDeviceInstanceID = devpropkey{
		fmtid: windows.GUID{Data1: 0x78c34fc8, Data2: 0x104a, Data3: 0x4aca,
			Data4: [8]byte{0x9e, 0xa4, 0x52, 0x4d, 0x52, 0x99, 0x6e, 0x57}},
		pid: 256,
	}
	devpkeyDeviceCompatibleIDs = devpropkey{
		fmtid: windows.GUID{Data1: 0xa45c254e, Data2: 0xdf1c, Data3: 0x4efd,
			Data4: [8]byte{0x80, 0x20, 0x67, 0xd1, 0x46, 0xa8, 0x50, 0xe0}},
		pid: 4,
	}
	devpkeyName = devpropkey{
		fmtid: windows.GUID{Data1: 0xb725f130, Data2: 0x47ef, Data3: 0x101a,
			Data4: [8]byte{0xa5, 0xf1, 0x02, 0x60, 0x8c, 0x9e, 0xeb, 0xac}},
		pid: 10,
	}
	devpkeyBluetoothDeviceAddress = devpropkey{
		fmtid: windows.GUID{Data1: 0x2bd67d8b, Data2: 0x8beb, Data3: 0x48d5,
			Data4: [8]byte{0x87, 0xe0, 0x6c, 0xda, 0x34, 0x28, 0x04, 0x0a}},
		pid: 1,
	}
	devpkeyBluetoothManufacturer = devpropkey{
		fmtid: windows.GUID{Data1: 0x2bd67d8b, Data2: 0x8beb, Data3: 0x48d5,
			Data4: [8]byte{0x87, 0xe0, 0x6c, 0xda, 0x34, 0x28, 0x04, 0x0a}},
		pid: 4,
	}
)

// cfgmgrAvailable reports whether the optional cfgmgr32 entry points can
// be resolved on this system.
func cfgmgrAvailable() bool {
	return procCM_Locate_DevNodeW.Find() == nil &&
		procCM_Get_Parent.Find() == nil &&
		procCM_Get_DevNode_PropertyW.Find() == nil &&
		procCM_Get_Device_Interface_PropertyW.Find() == nil
}

func cmLocateDevNode(deviceID *uint16) (uint32, bool) {
	var devNode uint32
	cr, _, _ := syscall.SyscallN(
		procCM_Locate_DevNodeW.Addr(),
		uintptr(unsafe.Pointer(&devNode)),
		uintptr(unsafe.Pointer(deviceID)),
		uintptr(cmLocateDevnodeNormal),
	)
	return devNode, cr == crSuccess
}

func cmGetParent(devNode uint32) (uint32, bool) {
	var parent uint32
	cr, _, _ := syscall.SyscallN(
		procCM_Get_Parent.Addr(),
		uintptr(unsafe.Pointer(&parent)),
		uintptr(devNode),
		0,
	)
	return parent, cr == crSuccess
}

// cmGetDevNodeProperty reads a string-typed device node property using
// the query-size-then-fetch pattern. List properties come back as
// NUL-separated UTF-16 with a double NUL terminator.
func cmGetDevNodeProperty(devNode uint32, key *devpropkey, wantType uint32) ([]uint16, bool) {
	var propType, size uint32
	cr, _, _ := syscall.SyscallN(
		procCM_Get_DevNode_PropertyW.Addr(),
		uintptr(devNode),
		uintptr(unsafe.Pointer(key)),
		uintptr(unsafe.Pointer(&propType)),
		0,
		uintptr(unsafe.Pointer(&size)),
		0,
	)
	if cr != crBufferSmall || propType != wantType || size == 0 {
		return nil, false
	}

	buf := make([]uint16, (size+1)/2)
	cr, _, _ = syscall.SyscallN(
		procCM_Get_DevNode_PropertyW.Addr(),
		uintptr(devNode),
		uintptr(unsafe.Pointer(key)),
		uintptr(unsafe.Pointer(&propType)),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&size)),
		0,
	)
	if cr != crSuccess {
		return nil, false
	}
	return buf, true
}

func cmGetDeviceInterfaceProperty(interfacePath *uint16, key *devpropkey, wantType uint32) ([]uint16, bool) {
	var propType, size uint32
	cr, _, _ := syscall.SyscallN(
		procCM_Get_Device_Interface_PropertyW.Addr(),
		uintptr(unsafe.Pointer(interfacePath)),
		uintptr(unsafe.Pointer(key)),
		uintptr(unsafe.Pointer(&propType)),
		0,
		uintptr(unsafe.Pointer(&size)),
		0,
	)
	if cr != crBufferSmall || propType != wantType || size == 0 {
		return nil, false
	}

	buf := make([]uint16, (size+1)/2)
	cr, _, _ = syscall.SyscallN(
		procCM_Get_Device_Interface_PropertyW.Addr(),
		uintptr(unsafe.Pointer(interfacePath)),
		uintptr(unsafe.Pointer(key)),
		uintptr(unsafe.Pointer(&propType)),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&size)),
		0,
	)
	if cr != crSuccess {
		return nil, false
	}
	return buf, true
}
