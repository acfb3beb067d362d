//go:build linux

package mq

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mqAttr mirrors struct mq_attr from include/uapi/linux/mqueue.h. The kernel
// declares the fields as long, which matches Go's int on Linux.
type mqAttr struct {
	flags   int
	maxmsg  int
	msgsize int
	curmsgs int
	_       [4]int
}

type kernelAdapter struct{}

func newKernelAdapter() Adapter {
	return kernelAdapter{}
}

// kernelName converts a queue name to the form the syscalls expect: the C
// library strips the leading slash before calling into the kernel.
func kernelName(name string) (*byte, error) {
	if len(name) > 0 && name[0] == nameSeparator {
		name = name[1:]
	}
	return unix.BytePtrFromString(name)
}

func (kernelAdapter) Open(name string, flags int) (Descriptor, error) {
	return kernelAdapter{}.OpenCreate(name, flags, 0, nil)
}

func (kernelAdapter) OpenCreate(name string, flags int, mode os.FileMode, attr *Attributes) (Descriptor, error) {
	p, err := kernelName(name)
	if err != nil {
		return -1, err
	}

	var ka *mqAttr
	if attr != nil {
		ka = &mqAttr{
			maxmsg:  int(attr.MaxPending),
			msgsize: int(attr.MaxMessageSize),
		}
	}

	fd, _, errno := unix.Syscall6(
		unix.SYS_MQ_OPEN,
		uintptr(unsafe.Pointer(p)),
		uintptr(flags|unix.O_CLOEXEC),
		uintptr(mode.Perm()),
		uintptr(unsafe.Pointer(ka)),
		0, 0,
	)
	if errno != 0 {
		return -1, errno
	}
	return Descriptor(fd), nil
}

func (kernelAdapter) Close(d Descriptor) error {
	return unix.Close(int(d))
}

func (kernelAdapter) Unlink(name string) error {
	p, err := kernelName(name)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_MQ_UNLINK, uintptr(unsafe.Pointer(p)), 0, 0)
	if errno != 0 {
		return unlinkErrno(errno)
	}
	return nil
}

// unlinkErrno reports EPERM as EACCES, as the C library's mq_unlink does.
// The kernel returns EPERM when a sticky /dev/mqueue protects a queue owned
// by another user.
func unlinkErrno(errno unix.Errno) unix.Errno {
	if errno == unix.EPERM {
		return unix.EACCES
	}
	return errno
}

func (kernelAdapter) Send(d Descriptor, payload []byte, priority uint) error {
	var p unsafe.Pointer
	if len(payload) > 0 {
		p = unsafe.Pointer(&payload[0])
	}
	// A nil timeout blocks until there is room in the queue.
	_, _, errno := unix.Syscall6(
		unix.SYS_MQ_TIMEDSEND,
		uintptr(d),
		uintptr(p),
		uintptr(len(payload)),
		uintptr(priority),
		0, 0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

func (kernelAdapter) Receive(d Descriptor, buf []byte) (int, uint, error) {
	var p unsafe.Pointer
	if len(buf) > 0 {
		p = unsafe.Pointer(&buf[0])
	}
	var priority uint32
	n, _, errno := unix.Syscall6(
		unix.SYS_MQ_TIMEDRECEIVE,
		uintptr(d),
		uintptr(p),
		uintptr(len(buf)),
		uintptr(unsafe.Pointer(&priority)),
		0, 0,
	)
	if errno != 0 {
		return 0, 0, errno
	}
	return int(n), uint(priority), nil
}

func (kernelAdapter) GetAttributes(d Descriptor) (Attributes, error) {
	var ka mqAttr
	_, _, errno := unix.Syscall(unix.SYS_MQ_GETSETATTR, uintptr(d), 0, uintptr(unsafe.Pointer(&ka)))
	if errno != 0 {
		return Attributes{}, errno
	}
	return Attributes{
		MaxPending:     int64(ka.maxmsg),
		MaxMessageSize: int64(ka.msgsize),
		CurrentCount:   int64(ka.curmsgs),
	}, nil
}
