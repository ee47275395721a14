package arena

import (
	"errors"
	"log"
	"unsafe"

	"github.com/orizon-lang/vmarena/internal/vm"
)

var errReservationExhausted = errors.New("virtual arena: reservation exhausted and remap disabled")

// Virtual is a single large reservation with lazy, on-demand commit. Only
// as much of the reservation as is actually in use is ever backed by
// physical memory.
type Virtual struct {
	base        uintptr
	reservation uintptr
	committed   uintptr
	position    uintptr
	alignment   uintptr
	autoAlignOn bool
	allowRemap  bool
	oversize    *largeBlock
}

// NewVirtual reserves size bytes and commits the first page only.
func NewVirtual(size uintptr, opts ...Option) (*Virtual, error) {
	cfg := applyOptions(size, opts)
	if cfg.err != nil {
		return nil, cfg.err
	}

	if size < vm.PageSize() {
		return nil, invalidParams("virtual.init")
	}

	reservation := vm.AlignUp(size, vm.PageSize())

	base, err := vm.Reserve(reservation)
	if err != nil {
		return nil, osMemory("virtual.init", err)
	}

	page := vm.PageSize()
	if err := vm.Commit(base, page); err != nil {
		_ = vm.Release(base, reservation)

		return nil, osMemory("virtual.init", err)
	}

	return &Virtual{
		base:        base,
		reservation: reservation,
		committed:   page,
		alignment:   cfg.autoAlign,
		autoAlignOn: true,
		allowRemap:  cfg.allowRemap,
	}, nil
}

func (v *Virtual) SetAutoAlign(alignment uintptr, on bool) error {
	if on {
		if !validAlignment(alignment) {
			return invalidParams("virtual.setAutoAlign")
		}

		v.alignment = alignment
	}

	v.autoAlignOn = on

	return nil
}

func (v *Virtual) Pos() uintptr { return v.position }

func (v *Virtual) PushAligner(alignment uintptr) error {
	if !validAlignment(alignment) {
		return invalidParams("virtual.pushAligner")
	}

	v.position = vm.AlignUp(v.position, alignment)

	return nil
}

func (v *Virtual) PushAlignerCacheline() error { return v.PushAligner(vm.CacheLineSize) }
func (v *Virtual) PushAlignerPagesize() error  { return v.PushAligner(vm.PageSize()) }

// ExtendCommit grows committed space up to newCommitted, remapping to a
// larger reservation (if enabled) when the target exceeds it.
func (v *Virtual) ExtendCommit(newCommitted uintptr) error {
	newCommitted = vm.AlignUp(newCommitted, vm.PageSize())
	if newCommitted <= v.committed {
		return nil
	}

	if newCommitted > v.reservation {
		if v.allowRemap {
			return v.remap(newCommitted)
		}

		return osMemory("virtual.extendCommit", errReservationExhausted)
	}

	return v.commitTo(newCommitted)
}

func (v *Virtual) commitTo(target uintptr) error {
	if err := vm.Commit(v.base, target); err != nil {
		return osMemory("virtual.extendCommit", err)
	}

	v.committed = target

	return nil
}

// ReduceCommit decommits the tail of the committed range down to
// newCommitted.
func (v *Virtual) ReduceCommit(newCommitted uintptr) error {
	newCommitted = vm.AlignUp(newCommitted, vm.PageSize())
	if newCommitted >= v.committed {
		return nil
	}

	if err := vm.Decommit(v.base+newCommitted, v.committed-newCommitted); err != nil {
		return osMemory("virtual.reduceCommit", err)
	}

	v.committed = newCommitted

	return nil
}

// Remap moves the arena's contents to a fresh, larger reservation.
// newTotal must be at least the current committed size.
func (v *Virtual) Remap(newTotal uintptr) error {
	if newTotal < v.committed {
		return invalidParams("virtual.remap")
	}

	return v.remap(newTotal)
}

func (v *Virtual) remap(newTotal uintptr) error {
	newTotal = vm.AlignUp(newTotal, vm.PageSize())

	newBase, err := vm.ReserveCommit(newTotal)
	if err != nil {
		return osMemory("virtual.remap", err)
	}

	src := unsafe.Slice((*byte)(unsafe.Pointer(v.base)), int(v.position))
	dst := unsafe.Slice((*byte)(unsafe.Pointer(newBase)), int(v.position))
	copy(dst, src)

	oldBase, oldReservation := v.base, v.reservation
	v.base = newBase
	v.reservation = newTotal
	v.committed = newTotal

	if err := vm.Release(oldBase, oldReservation); err != nil {
		return osMemory("virtual.remap", err)
	}

	return nil
}

// ensureHeadroom grows committed space (remapping if necessary and
// allowed) until need bytes are available from base. ok is false, with a
// nil error, when the reservation is full and remap is disabled: the
// caller should fall back to the oversize path rather than treat this as
// a failure.
func (v *Virtual) ensureHeadroom(need uintptr) (bool, error) {
	for need > v.committed {
		target := vm.AlignUp(maxUintptr(extendPolicy(v.committed), need), vm.PageSize())

		if target > v.reservation && need <= v.reservation {
			target = v.reservation
		}

		if target > v.reservation {
			if !v.allowRemap {
				return false, nil
			}

			if err := v.remap(target); err != nil {
				return false, err
			}

			continue
		}

		if err := v.commitTo(target); err != nil {
			return false, err
		}
	}

	return true, nil
}

func (v *Virtual) Push(size uintptr) (unsafe.Pointer, error) { return v.push(size, true) }

func (v *Virtual) PushNoZero(size uintptr) (unsafe.Pointer, error) { return v.push(size, false) }

func (v *Virtual) push(size uintptr, zero bool) (unsafe.Pointer, error) {
	ptr, _, _, err := v.pushNoZeroRaw(size)
	if err != nil {
		return nil, err
	}

	if ptr != nil && zero {
		zeroBytes(ptr, size)
	}

	return ptr, nil
}

func (v *Virtual) pushNoZeroRaw(size uintptr) (unsafe.Pointer, uintptr, *largeBlock, error) {
	if size == 0 {
		return nil, 0, nil, invalidParams("virtual.push")
	}

	pos := v.position
	if v.autoAlignOn {
		pos = vm.AlignUp(pos, v.alignment)
	}

	small := size <= v.reservation/2
	if small || v.allowRemap {
		ok, err := v.ensureHeadroom(pos + size)
		if err != nil {
			return nil, 0, nil, nil
		}

		if ok {
			v.position = pos + size

			return unsafe.Pointer(v.base + pos), pos, nil, nil
		}
	}

	blk, err := createLargeBlock(size, v.oversize)
	if err != nil {
		return nil, 0, nil, nil
	}

	v.oversize = blk

	return blk.payload(), 0, blk, nil
}

func (v *Virtual) shrinkIfNeeded() {
	page := vm.PageSize()

	for v.committed > page && shouldReduce(v.committed, v.position) {
		target := vm.AlignUp(maxUintptr(reducePolicy(v.committed), page), page)
		if target >= v.committed {
			break
		}

		if err := vm.Decommit(v.base+target, v.committed-target); err != nil {
			log.Printf("vmarena: virtual arena shrink skipped: %v", err)

			break
		}

		v.committed = target
	}
}

func (v *Virtual) Pop(n uintptr) error {
	v.position = subClamp(v.position, n)
	v.shrinkIfNeeded()

	return nil
}

func (v *Virtual) PopTo(pos uintptr) error {
	if pos < v.position {
		v.position = pos
	}

	v.shrinkIfNeeded()

	return nil
}

func (v *Virtual) PopToAddress(p uintptr) error {
	if p < v.base || p >= v.base+v.position {
		return invalidParams("virtual.popToAddress")
	}

	v.position = p - v.base
	v.shrinkIfNeeded()

	return nil
}

func (v *Virtual) PopLargeBlock() error {
	next, err := destroyOne(v.oversize)
	v.oversize = next

	return err
}

func (v *Virtual) Clear() error {
	oversizeErr := destroyAll(v.oversize)
	v.oversize = nil
	v.position = 0

	page := vm.PageSize()
	if v.committed > page {
		if err := vm.Decommit(v.base+page, v.committed-page); err != nil {
			log.Printf("vmarena: virtual arena clear-shrink skipped: %v", err)
		} else {
			v.committed = page
		}
	}

	return oversizeErr
}

func (v *Virtual) Destroy() error {
	oversizeErr := destroyAll(v.oversize)
	v.oversize = nil

	releaseErr := vm.Release(v.base, v.reservation)
	v.base, v.reservation, v.committed, v.position = 0, 0, 0, 0

	if releaseErr != nil {
		return osMemory("virtual.destroy", releaseErr)
	}

	return oversizeErr
}

// host interface (scratch.go) implementation.

func (v *Virtual) primaryBase() uintptr     { return v.base }
func (v *Virtual) primaryPosition() uintptr { return v.position }

func (v *Virtual) setPrimaryPosition(pos uintptr) error {
	v.position = pos
	v.shrinkIfNeeded()

	return nil
}

func (v *Virtual) oversizeHead() *largeBlock        { return v.oversize }
func (v *Virtual) setOversizeHead(head *largeBlock) { v.oversize = head }
