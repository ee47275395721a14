package arena

import (
	"unsafe"

	"github.com/orizon-lang/vmarena/internal/vm"
)

// largeBlock is one node of the oversize side-chain: a request too big for
// the owning arena's bump region gets its own OS mapping instead.
//
// The C original keeps each block's header in the first page of the same
// mapping as its payload and toggles that page between read-only and
// read-write around mutation, so a stray write into payload can't corrupt
// the chain. A Go struct can't be given that treatment without also putting
// live Go pointers inside raw OS memory the garbage collector never scans,
// which is a use-after-free waiting to happen the moment a GC runs between
// the mapping's creation and its release. Keeping the header as an
// ordinary heap-allocated Go value and letting the OS mapping hold nothing
// but payload bytes is the side-allocation alternative the design notes
// call out explicitly; it gives up the OS-enforced tamper barrier on
// metadata (never a security boundary to begin with) in exchange for not
// fighting the collector.
type largeBlock struct {
	base     uintptr
	capacity uintptr // mapped size, page-rounded
	size     uintptr // bytes actually requested by the caller
	next     *largeBlock
}

func (b *largeBlock) payload() unsafe.Pointer {
	return unsafe.Pointer(b.base)
}

func createLargeBlock(size uintptr, next *largeBlock) (*largeBlock, error) {
	if size == 0 {
		return nil, invalidParams("largeblock.create")
	}

	base, err := vm.ReserveCommit(size)
	if err != nil {
		return nil, osMemory("largeblock.create", err)
	}

	return &largeBlock{
		base:     base,
		capacity: vm.AlignUp(size, vm.PageSize()),
		size:     size,
		next:     next,
	}, nil
}

func (b *largeBlock) release() error {
	if b.base == 0 {
		return nil
	}

	if err := vm.Release(b.base, b.capacity); err != nil {
		return osMemory("largeblock.destroy", err)
	}

	b.base, b.capacity, b.size, b.next = 0, 0, 0, nil

	return nil
}

// destroyOne releases head's mapping and returns what was head.next, the
// pattern every caller that walks the chain while tearing it down uses.
func destroyOne(head *largeBlock) (*largeBlock, error) {
	if head == nil {
		return nil, nil
	}

	next := head.next

	if err := head.release(); err != nil {
		return next, err
	}

	return next, nil
}

// destroyAll releases every block in the chain headed by head, in head-to-
// tail order, and reports the first error encountered while still
// attempting every remaining release.
func destroyAll(head *largeBlock) error {
	var firstErr error

	for head != nil {
		next, err := destroyOne(head)
		if err != nil && firstErr == nil {
			firstErr = err
		}

		head = next
	}

	return firstErr
}

// deleteByPayload removes and releases the block whose payload begins at
// addr, returning the (possibly new) head. It reports invalidParams if no
// such block is a member of the chain.
func deleteByPayload(head *largeBlock, addr uintptr) (*largeBlock, error) {
	if head == nil {
		return nil, invalidParams("largeblock.delete")
	}

	if head.base == addr {
		next, err := destroyOne(head)
		return next, err
	}

	prev := head
	for curr := head.next; curr != nil; curr = curr.next {
		if curr.base == addr {
			prev.next = curr.next
			curr.next = nil

			return head, curr.release()
		}

		prev = curr
	}

	return head, invalidParams("largeblock.delete")
}

// mergeChains appends b onto the tail of a and returns the new head. Either
// side may be nil.
func mergeChains(a, b *largeBlock) *largeBlock {
	if a == nil {
		return b
	}

	if b == nil {
		return a
	}

	tail := a
	for tail.next != nil {
		tail = tail.next
	}

	tail.next = b

	return a
}
