// Package vm provides a uniform adapter over operating-system virtual-memory
// primitives: reserve, commit, decommit, release and protect. Arenas are
// built on top of this package and never touch platform syscalls directly.
package vm

import (
	"errors"
	"sync"
)

// ErrOSMemory is returned when a reserve, commit, decommit, release or
// protect operation fails at the operating-system level.
var ErrOSMemory = errors.New("vm: operating system memory operation failed")

// Protection describes the access permissions applied to a committed range.
type Protection int

const (
	ProtectNone Protection = iota
	ProtectReadOnly
	ProtectReadWrite
)

var (
	pageSizeOnce sync.Once
	pageSize     uintptr
)

// PageSize returns the platform page granularity. The value is queried once
// and memoized for the lifetime of the process.
func PageSize() uintptr {
	pageSizeOnce.Do(func() {
		pageSize = queryPageSize()
	})

	return pageSize
}

// AlignUp rounds n up to the nearest multiple of a, where a must be a power
// of two. a == 0 is treated as 1 (no rounding).
func AlignUp(n, a uintptr) uintptr {
	if a == 0 {
		return n
	}

	return (n + a - 1) &^ (a - 1)
}

// Reserve claims size bytes (rounded up to a page multiple) of address space
// with no physical backing. The returned base is page-aligned.
func Reserve(size uintptr) (uintptr, error) {
	return reserve(AlignUp(size, PageSize()))
}

// ReserveCommit reserves and immediately commits size bytes, rounded up to a
// page multiple. Used by fixed-size arenas and by large-block mappings where
// lazy commit offers no benefit.
func ReserveCommit(size uintptr) (uintptr, error) {
	return reserveCommit(AlignUp(size, PageSize()))
}

// Commit makes [base, base+size) readable and writable. base and size must
// already be page-aligned.
func Commit(base, size uintptr) error {
	if size == 0 {
		return nil
	}

	return commit(base, size)
}

// Decommit releases the physical backing of [base, base+size) while
// retaining the reservation. A later Commit of the same range may observe
// zeroed memory.
func Decommit(base, size uintptr) error {
	if size == 0 {
		return nil
	}

	return decommit(base, size)
}

// Release frees the entire reservation [base, base+size).
func Release(base, size uintptr) error {
	if size == 0 {
		return nil
	}

	return release(base, size)
}

// Protect changes the page protection of [base, base+size).
func Protect(base, size uintptr, prot Protection) error {
	if size == 0 {
		return nil
	}

	return protect(base, size, prot)
}
