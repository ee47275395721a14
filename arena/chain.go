package arena

import (
	"log"
	"unsafe"

	"github.com/orizon-lang/vmarena/internal/vm"
)

// chainBlock is one reservation in a Chain's linked list. Only the head
// block is ever pushed into; older blocks are frozen, kept alive purely
// so Destroy can release them.
//
// The C original snapshots its header bytes into the freshly-created
// block so the whole chain can be walked from a single raw base pointer.
// That trick exists to keep bookkeeping inside OS-owned memory; a Go
// struct has no such constraint; linking blocks is an ordinary Go
// pointer chain. What the snapshot dance is actually for — transferring
// the oversize chain's ownership to the new head and leaving the old
// head's reference nulled so teardown doesn't double-release — is
// preserved explicitly in newBlock/PopBlock below.
//
// pad reserves a guard page ahead of the usable region when the arena's
// new_block_pagealign option is on: the source spends a page on its
// embedded header before the usable region starts, and this is the
// side-allocation design's equivalent cost (an unused page, since there
// is no header to place there), kept so the option remains an observable
// alignment/space trade-off rather than a no-op.
type chainBlock struct {
	base       uintptr
	pad        uintptr
	usableBase uintptr
	capacity   uintptr // usable region size, page-rounded
	committed  uintptr // bytes committed from base, includes pad
	position   uintptr // bump offset from usableBase
	oversize   *largeBlock
	next       *chainBlock
}

func newChainBlock(usable uintptr, pageAlign bool) (*chainBlock, error) {
	page := vm.PageSize()
	capacity := vm.AlignUp(usable, page)

	var pad uintptr
	if pageAlign {
		pad = page
	}

	reservation := pad + capacity

	base, err := vm.Reserve(reservation)
	if err != nil {
		return nil, osMemory("chain.newBlock", err)
	}

	committed := pad + page
	if err := vm.Commit(base, committed); err != nil {
		_ = vm.Release(base, reservation)

		return nil, osMemory("chain.newBlock", err)
	}

	return &chainBlock{
		base:       base,
		pad:        pad,
		usableBase: base + pad,
		capacity:   capacity,
		committed:  committed,
	}, nil
}

func (b *chainBlock) reservation() uintptr { return b.pad + b.capacity }

func (b *chainBlock) release() error {
	if b.base == 0 {
		return nil
	}

	if err := vm.Release(b.base, b.reservation()); err != nil {
		return osMemory("chain.block.destroy", err)
	}

	b.base, b.pad, b.usableBase, b.capacity, b.committed, b.position = 0, 0, 0, 0, 0, 0

	return nil
}

// ensureHeadroom grows this block's commit until need bytes (measured
// from usableBase) are backed, reporting ok=false (not an error) if need
// exceeds the block's whole usable capacity even fully committed: the
// caller should start a new block.
func (b *chainBlock) ensureHeadroom(need uintptr) (bool, error) {
	neededFromBase := b.pad + need

	for neededFromBase > b.committed {
		target := vm.AlignUp(maxUintptr(extendPolicy(b.committed), neededFromBase), vm.PageSize())
		if target > b.reservation() {
			if neededFromBase > b.reservation() {
				return false, nil
			}

			target = b.reservation()
		}

		if err := vm.Commit(b.base, target); err != nil {
			return false, osMemory("chain.extendCommit", err)
		}

		b.committed = target
	}

	return true, nil
}

func (b *chainBlock) shrinkIfNeeded() {
	page := vm.PageSize()
	floor := b.pad + page

	for b.committed > floor && shouldReduce(b.committed-b.pad, b.position) {
		target := b.pad + vm.AlignUp(maxUintptr(reducePolicy(b.committed-b.pad), page), page)
		if target >= b.committed {
			break
		}

		if err := vm.Decommit(b.base+target, b.committed-target); err != nil {
			log.Printf("vmarena: chain arena shrink skipped: %v", err)

			break
		}

		b.committed = target
	}
}

// Chain is a linked list of reservation blocks. When the current (head)
// block can't satisfy a push even after maxing out its commit, a fresh
// block is prepended and becomes the new head.
type Chain struct {
	head         *chainBlock
	blockSize    uintptr
	alignment    uintptr
	autoAlignOn  bool
	pageAlignNew bool
}

// NewChain reserves the first block of the chain. Every later block this
// arena creates uses the same usable size.
func NewChain(blockSize uintptr, opts ...Option) (*Chain, error) {
	cfg := applyOptions(blockSize, opts)
	if cfg.err != nil {
		return nil, cfg.err
	}

	if blockSize < vm.PageSize() {
		return nil, invalidParams("chain.init")
	}

	head, err := newChainBlock(blockSize, cfg.pageAlignNew)
	if err != nil {
		return nil, err
	}

	return &Chain{
		head:         head,
		blockSize:    blockSize,
		alignment:    cfg.autoAlign,
		autoAlignOn:  true,
		pageAlignNew: cfg.pageAlignNew,
	}, nil
}

func (c *Chain) SetAutoAlign(alignment uintptr, on bool) error {
	if on {
		if !validAlignment(alignment) {
			return invalidParams("chain.setAutoAlign")
		}

		c.alignment = alignment
	}

	c.autoAlignOn = on

	return nil
}

// Pos reports the bump offset within the current (head) block.
func (c *Chain) Pos() uintptr { return c.head.position }

func (c *Chain) PushAligner(alignment uintptr) error {
	if !validAlignment(alignment) {
		return invalidParams("chain.pushAligner")
	}

	c.head.position = vm.AlignUp(c.head.position, alignment)

	return nil
}

func (c *Chain) PushAlignerCacheline() error { return c.PushAligner(vm.CacheLineSize) }
func (c *Chain) PushAlignerPagesize() error  { return c.PushAligner(vm.PageSize()) }

// newBlock prepends a fresh block and transfers the outgoing head's
// oversize chain to it, the only state that actually needs to move.
func (c *Chain) newBlock() error {
	blk, err := newChainBlock(c.blockSize, c.pageAlignNew)
	if err != nil {
		return err
	}

	blk.next = c.head
	blk.oversize = c.head.oversize
	c.head.oversize = nil
	c.head = blk

	return nil
}

// PopBlock is the inverse of an automatic newBlock: it discards the
// current head and reinstates the previous block as current, handing
// back the oversize chain the head was holding.
func (c *Chain) PopBlock() error {
	if c.head.next == nil {
		return invalidParams("chain.popBlock")
	}

	old := c.head
	c.head = old.next
	c.head.oversize = old.oversize
	old.next = nil
	old.oversize = nil

	return old.release()
}

func (c *Chain) Push(size uintptr) (unsafe.Pointer, error) { return c.push(size, true) }

func (c *Chain) PushNoZero(size uintptr) (unsafe.Pointer, error) { return c.push(size, false) }

func (c *Chain) push(size uintptr, zero bool) (unsafe.Pointer, error) {
	ptr, _, _, err := c.pushNoZeroRaw(size)
	if err != nil {
		return nil, err
	}

	if ptr != nil && zero {
		zeroBytes(ptr, size)
	}

	return ptr, nil
}

func (c *Chain) pushNoZeroRaw(size uintptr) (unsafe.Pointer, uintptr, *largeBlock, error) {
	if size == 0 {
		return nil, 0, nil, invalidParams("chain.push")
	}

	// size == blockSize/2 exactly still takes the small path.
	small := size <= c.blockSize/2
	if small {
		pos := c.head.position
		if c.autoAlignOn {
			pos = vm.AlignUp(pos, c.alignment)
		}

		ok, err := c.head.ensureHeadroom(pos + size)
		if err != nil {
			return nil, 0, nil, nil
		}

		if !ok {
			if err := c.newBlock(); err != nil {
				return nil, 0, nil, nil
			}

			pos = 0
			if c.autoAlignOn {
				pos = vm.AlignUp(pos, c.alignment)
			}

			ok, err = c.head.ensureHeadroom(pos + size)
			if err != nil || !ok {
				return nil, 0, nil, nil
			}
		}

		c.head.position = pos + size

		return unsafe.Pointer(c.head.usableBase + pos), pos, nil, nil
	}

	blk, err := createLargeBlock(size, c.head.oversize)
	if err != nil {
		return nil, 0, nil, nil
	}

	c.head.oversize = blk

	return blk.payload(), 0, blk, nil
}

func (c *Chain) Pop(n uintptr) error {
	c.head.position = subClamp(c.head.position, n)
	c.head.shrinkIfNeeded()

	return nil
}

func (c *Chain) PopTo(pos uintptr) error {
	if pos < c.head.position {
		c.head.position = pos
	}

	c.head.shrinkIfNeeded()

	return nil
}

func (c *Chain) PopToAddress(p uintptr) error {
	if p < c.head.usableBase || p >= c.head.usableBase+c.head.position {
		return invalidParams("chain.popToAddress")
	}

	c.head.position = p - c.head.usableBase
	c.head.shrinkIfNeeded()

	return nil
}

// PopLargeBlock pops the head block's oversize chain; older blocks' own
// residual oversize references (always nil, after newBlock) are never
// touched here.
func (c *Chain) PopLargeBlock() error {
	next, err := destroyOne(c.head.oversize)
	c.head.oversize = next

	return err
}

// ClearCurrentBlock resets only the head block's bump state; older
// blocks and the oversize chain are left exactly as they were.
func (c *Chain) ClearCurrentBlock() error {
	c.head.position = 0

	page := vm.PageSize()
	floor := c.head.pad + page

	if c.head.committed > floor {
		if err := vm.Decommit(c.head.base+floor, c.head.committed-floor); err != nil {
			log.Printf("vmarena: chain arena clear-block shrink skipped: %v", err)
		} else {
			c.head.committed = floor
		}
	}

	return nil
}

// ClearAll tears down every block but the head (LIFO, newest-of-the-rest
// first), destroys the oversize chain, and resets the head's bump state.
func (c *Chain) ClearAll() error {
	var firstErr error

	for c.head.next != nil {
		old := c.head.next
		c.head.next = old.next
		old.next = nil

		if err := old.release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := destroyAll(c.head.oversize); err != nil && firstErr == nil {
		firstErr = err
	}

	c.head.oversize = nil

	if err := c.ClearCurrentBlock(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// Destroy releases the head's oversize chain, then every block in the
// chain, newest (head) to oldest — the LIFO order the source's buggy
// variant only sometimes achieved.
func (c *Chain) Destroy() error {
	oversizeErr := destroyAll(c.head.oversize)

	var chainErr error

	for b := c.head; b != nil; {
		next := b.next

		if err := b.release(); err != nil && chainErr == nil {
			chainErr = err
		}

		b = next
	}

	c.head = nil

	if chainErr != nil {
		return chainErr
	}

	return oversizeErr
}

// host interface (scratch.go) implementation, scoped to the current head
// block — the only block a scratch can ever be carved from.

func (c *Chain) primaryBase() uintptr     { return c.head.usableBase }
func (c *Chain) primaryPosition() uintptr { return c.head.position }

func (c *Chain) setPrimaryPosition(pos uintptr) error {
	c.head.position = pos
	c.head.shrinkIfNeeded()

	return nil
}

func (c *Chain) oversizeHead() *largeBlock        { return c.head.oversize }
func (c *Chain) setOversizeHead(head *largeBlock) { c.head.oversize = head }
