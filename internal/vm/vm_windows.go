//go:build windows

package vm

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func queryPageSize() uintptr {
	var info windows.SystemInfo

	windows.GetSystemInfo(&info)

	return uintptr(info.PageSize)
}

func reserve(size uintptr) (uintptr, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return 0, fmt.Errorf("%w: reserve %d bytes: %v", ErrOSMemory, size, err)
	}

	return addr, nil
}

func reserveCommit(size uintptr) (uintptr, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return 0, fmt.Errorf("%w: reserve-commit %d bytes: %v", ErrOSMemory, size, err)
	}

	return addr, nil
}

func commit(base, size uintptr) error {
	if _, err := windows.VirtualAlloc(base, size, windows.MEM_COMMIT, windows.PAGE_READWRITE); err != nil {
		return fmt.Errorf("%w: commit %d bytes at %#x: %v", ErrOSMemory, size, base, err)
	}

	return nil
}

// decommit on Windows always drops the entire committed range back to
// reserved-only; the kernel zero-fills on the next commit.
func decommit(base, size uintptr) error {
	if err := windows.VirtualFree(base, size, windows.MEM_DECOMMIT); err != nil {
		return fmt.Errorf("%w: decommit %d bytes at %#x: %v", ErrOSMemory, size, base, err)
	}

	return nil
}

// release frees the whole reservation; Windows requires size == 0 with
// MEM_RELEASE, so the caller-supplied size is only used for error reporting.
func release(base, size uintptr) error {
	if err := windows.VirtualFree(base, 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("%w: release %d bytes at %#x: %v", ErrOSMemory, size, base, err)
	}

	return nil
}

func protect(base, size uintptr, prot Protection) error {
	var p uint32

	switch prot {
	case ProtectNone:
		p = windows.PAGE_NOACCESS
	case ProtectReadOnly:
		p = windows.PAGE_READONLY
	case ProtectReadWrite:
		p = windows.PAGE_READWRITE
	default:
		return fmt.Errorf("%w: protect: unknown protection %d", ErrOSMemory, prot)
	}

	var old uint32

	if err := windows.VirtualProtect(base, size, p, &old); err != nil {
		return fmt.Errorf("%w: protect %d bytes at %#x: %v", ErrOSMemory, size, base, err)
	}

	return nil
}
