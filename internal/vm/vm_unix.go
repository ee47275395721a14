//go:build unix

package vm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

func queryPageSize() uintptr {
	return uintptr(unix.Getpagesize())
}

func reserve(size uintptr) (uintptr, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, fmt.Errorf("%w: reserve %d bytes: %v", ErrOSMemory, size, err)
	}

	return uintptr(unsafe.Pointer(&data[0])), nil
}

func reserveCommit(size uintptr) (uintptr, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, fmt.Errorf("%w: reserve-commit %d bytes: %v", ErrOSMemory, size, err)
	}

	return uintptr(unsafe.Pointer(&data[0])), nil
}

func commit(base, size uintptr) error {
	if err := unix.Mprotect(sliceAt(base, size), unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("%w: commit %d bytes at %#x: %v", ErrOSMemory, size, base, err)
	}

	return nil
}

// decommit advises the kernel to drop the physical backing of the range and
// then removes access so a stray touch faults instead of silently resident.
// A later Commit re-establishes access.
func decommit(base, size uintptr) error {
	b := sliceAt(base, size)
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("%w: decommit advise %d bytes at %#x: %v", ErrOSMemory, size, base, err)
	}

	if err := unix.Mprotect(b, unix.PROT_NONE); err != nil {
		return fmt.Errorf("%w: decommit protect %d bytes at %#x: %v", ErrOSMemory, size, base, err)
	}

	return nil
}

func release(base, size uintptr) error {
	if err := unix.Munmap(sliceAt(base, size)); err != nil {
		return fmt.Errorf("%w: release %d bytes at %#x: %v", ErrOSMemory, size, base, err)
	}

	return nil
}

func protect(base, size uintptr, prot Protection) error {
	var p int

	switch prot {
	case ProtectNone:
		p = unix.PROT_NONE
	case ProtectReadOnly:
		p = unix.PROT_READ
	case ProtectReadWrite:
		p = unix.PROT_READ | unix.PROT_WRITE
	default:
		return fmt.Errorf("%w: protect: unknown protection %d", ErrOSMemory, prot)
	}

	if err := unix.Mprotect(sliceAt(base, size), p); err != nil {
		return fmt.Errorf("%w: protect %d bytes at %#x: %v", ErrOSMemory, size, base, err)
	}

	return nil
}

// sliceAt reconstructs the []byte view the unix syscalls require from a raw
// base address. The memory is OS-owned (mmap'd), not Go-heap allocated, so
// this is not subject to the usual uintptr-across-GC hazard.
func sliceAt(base, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), int(size))
}
