//go:build !unix

package jit

func allocBytes(size int, lock bool) ([]byte, func()) {
	return make([]byte, size), nil
}
