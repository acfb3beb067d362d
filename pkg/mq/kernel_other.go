//go:build !linux

package mq

import (
	"os"

	"golang.org/x/sys/unix"
)

// unsupportedAdapter is used where no kernel adapter exists. Every call
// fails with ENOSYS, which surfaces as UnknownForeignError.
type unsupportedAdapter struct{}

func newKernelAdapter() Adapter {
	return unsupportedAdapter{}
}

func (unsupportedAdapter) Open(string, int) (Descriptor, error) {
	return -1, unix.ENOSYS
}

func (unsupportedAdapter) OpenCreate(string, int, os.FileMode, *Attributes) (Descriptor, error) {
	return -1, unix.ENOSYS
}

func (unsupportedAdapter) Close(Descriptor) error {
	return unix.ENOSYS
}

func (unsupportedAdapter) Unlink(string) error {
	return unix.ENOSYS
}

func (unsupportedAdapter) Send(Descriptor, []byte, uint) error {
	return unix.ENOSYS
}

func (unsupportedAdapter) Receive(Descriptor, []byte) (int, uint, error) {
	return 0, 0, unix.ENOSYS
}

func (unsupportedAdapter) GetAttributes(Descriptor) (Attributes, error) {
	return Attributes{}, unix.ENOSYS
}
