//go:build unix

package jit

import "golang.org/x/sys/unix"

// regions at least this large are mapped directly from the OS
const mmapThreshold = 64 << 10

func allocBytes(size int, lock bool) ([]byte, func()) {
	if size < mmapThreshold {
		return make([]byte, size), nil
	}

	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return make([]byte, size), nil
	}
	locked := lock && unix.Mlock(buf) == nil

	return buf, func() {
		if locked {
			_ = unix.Munlock(buf)
		}
		_ = unix.Munmap(buf)
	}
}
