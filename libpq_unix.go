//go:build !windows

package pgsql

import (
	"github.com/ebitengine/purego"
)

// loadLibrary loads libpq on Unix-like systems
func loadLibrary(libPath string) (uintptr, error) {
	return purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}
