package arena

import (
	"unsafe"

	"github.com/orizon-lang/vmarena/internal/vm"
)

// host is implemented by every arena variant that can grow a scratch
// subarena from its top (Static, Virtual, Chain). It exposes just enough
// of the arena's bump state for Scratch to carve a span, rewind it, or
// fold it back in, without Scratch needing to know which variant it's
// attached to.
type host interface {
	primaryBase() uintptr
	primaryPosition() uintptr
	setPrimaryPosition(pos uintptr) error
	oversizeHead() *largeBlock
	setOversizeHead(head *largeBlock)
	pushNoZeroRaw(size uintptr) (ptr unsafe.Pointer, offset uintptr, block *largeBlock, err error)
}

// Scratch is a temporary child region carved from a parent arena's top.
// It behaves like a small Static arena of its own: its own bump position,
// its own independent oversize chain for allocations that overflow its
// capacity.
type Scratch struct {
	parent   host
	base     uintptr
	capacity uintptr
	position uintptr

	// offsetInParent and ownBlock describe where the scratch's backing
	// span came from: either an offset into the parent's primary mapping,
	// or a single oversize block owned by the parent's chain.
	offsetInParent uintptr
	ownBlock       *largeBlock

	alignment   uintptr
	autoAlignOn bool
	oversize    *largeBlock
}

// InitScratch carves size bytes from parent's top without zeroing them and
// wraps the span in its own bump-allocator handle. It returns a nil
// Scratch (no error) if the parent has no room, mirroring push's
// exhaustion-is-not-an-error contract.
func InitScratch(parent host, size uintptr, opts ...Option) (*Scratch, error) {
	cfg := applyOptions(size, opts)
	if cfg.err != nil {
		return nil, cfg.err
	}

	ptr, offset, block, err := parent.pushNoZeroRaw(size)
	if err != nil {
		return nil, err
	}

	if ptr == nil {
		return nil, nil
	}

	s := &Scratch{
		parent:         parent,
		capacity:       size,
		offsetInParent: offset,
		ownBlock:       block,
		alignment:      cfg.autoAlign,
		autoAlignOn:    true,
	}

	if block != nil {
		s.base = uintptr(block.payload())
	} else {
		s.base = parent.primaryBase() + offset
	}

	return s, nil
}

// Pos reports the scratch's own bump offset.
func (s *Scratch) Pos() uintptr { return s.position }

// Push carves size zeroed bytes from the scratch, overflowing to the
// scratch's own oversize chain (independent of the parent's) once its
// capacity is exhausted.
func (s *Scratch) Push(size uintptr) (unsafe.Pointer, error) { return s.push(size, true) }

// PushNoZero is Push without zeroing.
func (s *Scratch) PushNoZero(size uintptr) (unsafe.Pointer, error) { return s.push(size, false) }

func (s *Scratch) push(size uintptr, zero bool) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, invalidParams("scratch.push")
	}

	pos := s.position
	if s.autoAlignOn {
		pos = vm.AlignUp(pos, s.alignment)
	}

	if pos+size <= s.capacity {
		s.position = pos + size
		ptr := unsafe.Pointer(s.base + pos)

		if zero {
			zeroBytes(ptr, size)
		}

		return ptr, nil
	}

	blk, err := createLargeBlock(size, s.oversize)
	if err != nil {
		return nil, nil
	}

	s.oversize = blk

	ptr := blk.payload()
	if zero {
		zeroBytes(ptr, size)
	}

	return ptr, nil
}

// DestroyScratch rewinds the parent and releases the scratch's own
// oversize chain. If the scratch is backed inside the parent's primary
// mapping, its span must be exactly at the parent's top — any allocation
// from the parent since the scratch was created (other than through the
// scratch itself) is rejected as invalid-params, since it breaks the
// LIFO-nesting invariant. If the scratch is itself a single oversize
// block, that block is spliced out of the parent's chain instead.
func DestroyScratch(s *Scratch) error {
	if s.ownBlock != nil {
		newHead, err := deleteByPayload(s.parent.oversizeHead(), s.base)
		if err != nil {
			return err
		}

		s.parent.setOversizeHead(newHead)
	} else {
		top := s.parent.primaryBase() + s.offsetInParent + s.capacity
		if top != s.parent.primaryBase()+s.parent.primaryPosition() {
			return invalidParams("scratch.destroy")
		}

		if err := s.parent.setPrimaryPosition(s.offsetInParent); err != nil {
			return err
		}
	}

	err := destroyAll(s.oversize)
	*s = Scratch{}

	return err
}

// MergeScratch folds the scratch's used bytes, and its oversize chain,
// into the parent. It's only valid for scratches backed inside the
// parent's primary mapping: an oversize-backed scratch's bytes live in a
// separate mapping and can't be made contiguous with the parent's bump
// area.
func MergeScratch(s *Scratch) error {
	if s.ownBlock != nil {
		return invalidParams("scratch.merge")
	}

	kept := s.offsetInParent + s.position
	retreat := subClamp(s.parent.primaryPosition(), subClamp(s.capacity, s.position))
	newPos := maxUintptr(kept, retreat)

	if err := s.parent.setPrimaryPosition(newPos); err != nil {
		return err
	}

	s.parent.setOversizeHead(mergeChains(s.oversize, s.parent.oversizeHead()))

	*s = Scratch{}

	return nil
}
