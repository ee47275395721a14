package arena

import (
	"unsafe"

	"github.com/orizon-lang/vmarena/internal/vm"
)

// Static is a single fixed-size virtual mapping, reserved and committed in
// full at construction. Suitable when the caller knows the capacity up
// front and wants to pay the commit cost once.
type Static struct {
	base        uintptr
	capacity    uintptr
	position    uintptr
	alignment   uintptr
	autoAlignOn bool
	oversize    *largeBlock
}

// NewStatic reserves and commits size bytes. size must be at least one
// page; anything smaller is rejected rather than silently rounded up,
// since a caller asking for less than a page almost certainly meant a
// scratch allocation instead.
func NewStatic(size uintptr, opts ...Option) (*Static, error) {
	cfg := applyOptions(size, opts)
	if cfg.err != nil {
		return nil, cfg.err
	}

	if size < vm.PageSize() {
		return nil, invalidParams("static.init")
	}

	base, err := vm.ReserveCommit(size)
	if err != nil {
		return nil, osMemory("static.init", err)
	}

	return &Static{
		base:        base,
		capacity:    vm.AlignUp(size, vm.PageSize()),
		alignment:   cfg.autoAlign,
		autoAlignOn: true,
	}, nil
}

// SetAutoAlign changes the alignment policy. Disabling auto-align (on ==
// false) leaves the stored alignment untouched so re-enabling later
// restores it.
func (s *Static) SetAutoAlign(alignment uintptr, on bool) error {
	if on {
		if !validAlignment(alignment) {
			return invalidParams("static.setAutoAlign")
		}

		s.alignment = alignment
	}

	s.autoAlignOn = on

	return nil
}

// Pos reports the current bump offset into the primary mapping.
func (s *Static) Pos() uintptr { return s.position }

// PushAligner rounds the bump position up to alignment without allocating.
func (s *Static) PushAligner(alignment uintptr) error {
	if !validAlignment(alignment) {
		return invalidParams("static.pushAligner")
	}

	s.position = vm.AlignUp(s.position, alignment)

	return nil
}

// PushAlignerCacheline rounds up to the platform cache-line size.
func (s *Static) PushAlignerCacheline() error { return s.PushAligner(vm.CacheLineSize) }

// PushAlignerPagesize rounds up to the page size.
func (s *Static) PushAlignerPagesize() error { return s.PushAligner(vm.PageSize()) }

// Push carves size zeroed bytes from the arena, falling back to an
// oversize block if the primary mapping is full. It returns a nil
// pointer (not an error) when neither path has room: exhaustion is not a
// failure condition, it's a signal for the caller to pop, clear, or
// destroy.
func (s *Static) Push(size uintptr) (unsafe.Pointer, error) { return s.push(size, true) }

// PushNoZero is Push without zeroing the returned bytes.
func (s *Static) PushNoZero(size uintptr) (unsafe.Pointer, error) { return s.push(size, false) }

func (s *Static) push(size uintptr, zero bool) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, invalidParams("static.push")
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

// Pop retreats the bump position by n bytes, clamped at zero.
func (s *Static) Pop(n uintptr) error {
	s.position = subClamp(s.position, n)

	return nil
}

// PopTo sets the bump position to pos. It only ever shrinks: a pos at or
// past the current position is silently ignored.
func (s *Static) PopTo(pos uintptr) error {
	if pos < s.position {
		s.position = pos
	}

	return nil
}

// PopToAddress converts p to an offset and retreats to it. p must lie in
// [base, base+position); anything else is rejected and the position is
// left unchanged, per the strict reading adopted over the source's
// ambiguous bounds check.
func (s *Static) PopToAddress(p uintptr) error {
	if p < s.base || p >= s.base+s.position {
		return invalidParams("static.popToAddress")
	}

	s.position = p - s.base

	return nil
}

// PopLargeBlock releases the most recently allocated oversize block.
func (s *Static) PopLargeBlock() error {
	next, err := destroyOne(s.oversize)
	s.oversize = next

	return err
}

// Clear resets the bump position to zero and destroys every oversize
// block.
func (s *Static) Clear() error {
	err := destroyAll(s.oversize)
	s.oversize = nil
	s.position = 0

	return err
}

// Destroy releases the oversize chain and then the primary mapping.
func (s *Static) Destroy() error {
	oversizeErr := destroyAll(s.oversize)
	s.oversize = nil

	releaseErr := vm.Release(s.base, s.capacity)
	s.base, s.capacity, s.position = 0, 0, 0

	if releaseErr != nil {
		return osMemory("static.destroy", releaseErr)
	}

	return oversizeErr
}

// host interface (scratch.go) implementation.

func (s *Static) primaryBase() uintptr     { return s.base }
func (s *Static) primaryPosition() uintptr { return s.position }

func (s *Static) setPrimaryPosition(pos uintptr) error {
	s.position = pos

	return nil
}

func (s *Static) oversizeHead() *largeBlock        { return s.oversize }
func (s *Static) setOversizeHead(head *largeBlock) { s.oversize = head }

func (s *Static) pushNoZeroRaw(size uintptr) (unsafe.Pointer, uintptr, *largeBlock, error) {
	if size == 0 {
		return nil, 0, nil, invalidParams("static.push")
	}

	pos := s.position
	if s.autoAlignOn {
		pos = vm.AlignUp(pos, s.alignment)
	}

	if pos+size <= s.capacity {
		s.position = pos + size

		return unsafe.Pointer(s.base + pos), pos, nil, nil
	}

	blk, err := createLargeBlock(size, s.oversize)
	if err != nil {
		return nil, 0, nil, nil
	}

	s.oversize = blk

	return blk.payload(), 0, blk, nil
}

func zeroBytes(p unsafe.Pointer, n uintptr) {
	clear(unsafe.Slice((*byte)(p), int(n)))
}

func subClamp(a, b uintptr) uintptr {
	if b > a {
		return 0
	}

	return a - b
}

func maxUintptr(a, b uintptr) uintptr {
	if a > b {
		return a
	}

	return b
}
