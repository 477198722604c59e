//go:build windows

package pgsql

import (
	"syscall"
)

// loadLibrary loads libpq on Windows
func loadLibrary(libPath string) (uintptr, error) {
	handle, err := syscall.LoadLibrary(libPath)
	if err != nil {
		return 0, err
	}
	return uintptr(handle), nil
}
