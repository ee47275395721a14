package arena

import (
	"testing"
	"unsafe"

	"github.com/orizon-lang/vmarena/internal/vm"
)

func TestCreateLargeBlockWritable(t *testing.T) {
	b, err := createLargeBlock(vm.PageSize(), nil)
	if err != nil {
		t.Fatalf("createLargeBlock: %v", err)
	}

	defer destroyAll(b)

	buf := unsafe.Slice((*byte)(b.payload()), int(b.size))
	buf[0] = 0xAB

	if buf[0] != 0xAB {
		t.Fatal("payload not writable")
	}
}

func TestLargeBlockChainOrder(t *testing.T) {
	var head *largeBlock

	for i := 0; i < 3; i++ {
		blk, err := createLargeBlock(vm.PageSize(), head)
		if err != nil {
			t.Fatalf("createLargeBlock: %v", err)
		}

		head = blk
	}

	count := 0
	for b := head; b != nil; b = b.next {
		count++
	}

	if count != 3 {
		t.Fatalf("chain length = %d, want 3", count)
	}

	if err := destroyAll(head); err != nil {
		t.Fatalf("destroyAll: %v", err)
	}
}

func TestDeleteByPayload(t *testing.T) {
	b1, _ := createLargeBlock(vm.PageSize(), nil)
	b2, _ := createLargeBlock(vm.PageSize(), b1)
	b3, _ := createLargeBlock(vm.PageSize(), b2)

	head, err := deleteByPayload(b3, b2.base)
	if err != nil {
		t.Fatalf("deleteByPayload: %v", err)
	}

	count := 0
	for b := head; b != nil; b = b.next {
		if b.base == b2.base {
			t.Fatal("deleted block still present")
		}

		count++
	}

	if count != 2 {
		t.Fatalf("chain length after delete = %d, want 2", count)
	}

	if err := destroyAll(head); err != nil {
		t.Fatalf("destroyAll: %v", err)
	}
}

func TestDeleteByPayloadNotFound(t *testing.T) {
	b1, _ := createLargeBlock(vm.PageSize(), nil)
	defer destroyAll(b1)

	if _, err := deleteByPayload(b1, 0xdeadbeef); err == nil {
		t.Fatal("expected invalid-params error for missing payload")
	}
}

func TestMergeChains(t *testing.T) {
	a1, _ := createLargeBlock(vm.PageSize(), nil)
	b1, _ := createLargeBlock(vm.PageSize(), nil)

	merged := mergeChains(a1, b1)

	count := 0
	for b := merged; b != nil; b = b.next {
		count++
	}

	if count != 2 {
		t.Fatalf("merged chain length = %d, want 2", count)
	}

	destroyAll(merged)
}
