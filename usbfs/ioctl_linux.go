//go:build linux

package usbfs

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux asm-generic ioctl encoding: nr 8 bits, type 8 bits, size 14 bits,
// direction 2 bits.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	usbfsType = 'U'
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<iocDirShift | size<<iocSizeShift | usbfsType<<iocTypeShift | nr<<iocNRShift
}

// struct usbdevfs_bulktransfer
type bulkTransfer struct {
	Endpoint uint32
	Length   uint32
	Timeout  uint32 // milliseconds
	Data     unsafe.Pointer
}

// struct usbdevfs_urb without the trailing iso descriptors
type urb struct {
	Type            uint8
	Endpoint        uint8
	Status          int32
	Flags           uint32
	Buffer          unsafe.Pointer
	BufferLength    int32
	ActualLength    int32
	StartFrame      int32
	NumberOfPackets int32
	ErrorCount      int32
	Signr           uint32
	UserContext     uintptr
}

// struct usbdevfs_ioctl
type usbIoctl struct {
	Ifno int32
	Code int32
	Data unsafe.Pointer
}

const urbTypeBulk = 3

var (
	ioctlBulk             = ioc(iocRead|iocWrite, 2, unsafe.Sizeof(bulkTransfer{}))
	ioctlSubmitURB        = ioc(iocRead, 10, unsafe.Sizeof(urb{}))
	ioctlDiscardURB       = ioc(iocNone, 11, 0)
	ioctlReapURBNDelay    = ioc(iocWrite, 13, unsafe.Sizeof(uintptr(0)))
	ioctlClaimInterface   = ioc(iocRead, 15, unsafe.Sizeof(uint32(0)))
	ioctlReleaseInterface = ioc(iocRead, 16, unsafe.Sizeof(uint32(0)))
	ioctlIoctl            = ioc(iocRead|iocWrite, 18, unsafe.Sizeof(usbIoctl{}))
	ioctlDisconnect       = ioc(iocNone, 22, 0)
)

func ioctl(fd int, req uintptr, arg unsafe.Pointer) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return int(r), errno
	}
	return int(r), nil
}
