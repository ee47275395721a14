// Exercises the three arena flavors end to end against real OS virtual
// memory; useful as a smoke test on a platform before trusting the test
// suite's mmap/VirtualAlloc paths there.
package main

import (
	"fmt"
	"time"

	"github.com/orizon-lang/vmarena/arena"
)

func main() {
	fmt.Println("=== vmarena smoke test ===")

	fmt.Println("\n1. Static arena bump allocation...")

	static, err := arena.NewStatic(1 << 20, arena.WithAutoAlign(16))
	if err != nil {
		panic(fmt.Sprintf("NewStatic: %v", err))
	}

	start := time.Now()

	for i := 0; i < 1000; i++ {
		if _, err := static.PushNoZero(64); err != nil {
			panic(fmt.Sprintf("Push %d: %v", i, err))
		}
	}

	fmt.Printf("✓ 1000 pushes completed in %v (pos=%d)\n", time.Since(start), static.Pos())

	if err := static.Destroy(); err != nil {
		panic(fmt.Sprintf("Destroy: %v", err))
	}

	fmt.Println("\n2. Virtual arena lazy growth...")

	virtual, err := arena.NewVirtual(arena.ArenaSizeMedium)
	if err != nil {
		panic(fmt.Sprintf("NewVirtual: %v", err))
	}

	start = time.Now()

	for i := 0; i < 4096; i++ {
		if _, err := virtual.PushNoZero(1024); err != nil {
			panic(fmt.Sprintf("Push %d: %v", i, err))
		}
	}

	fmt.Printf("✓ 4096 pushes completed in %v (pos=%d)\n", time.Since(start), virtual.Pos())

	if err := virtual.Destroy(); err != nil {
		panic(fmt.Sprintf("Destroy: %v", err))
	}

	fmt.Println("\n3. Linked-chain arena with a scratch subarena...")

	chain, err := arena.NewChain(arena.ArenaSizeSmall, arena.WithPageAlignedBlocks(true))
	if err != nil {
		panic(fmt.Sprintf("NewChain: %v", err))
	}

	scratch, err := arena.InitScratch(chain, arena.ScratchSizeSmall)
	if err != nil {
		panic(fmt.Sprintf("InitScratch: %v", err))
	}

	if scratch == nil {
		panic("InitScratch returned no scratch on a fresh chain")
	}

	if _, err := scratch.PushNoZero(256); err != nil {
		panic(fmt.Sprintf("scratch.Push: %v", err))
	}

	if err := arena.MergeScratch(scratch); err != nil {
		panic(fmt.Sprintf("MergeScratch: %v", err))
	}

	fmt.Printf("✓ scratch merged, chain position now %d\n", chain.Pos())

	if err := chain.Destroy(); err != nil {
		panic(fmt.Sprintf("Destroy: %v", err))
	}

	fmt.Println("\n=== all arenas torn down cleanly ===")
}
