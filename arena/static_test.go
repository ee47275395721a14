package arena

import (
	"testing"
	"unsafe"

	"github.com/orizon-lang/vmarena/internal/vm"
)

func TestStaticInitRejectsUndersize(t *testing.T) {
	if _, err := NewStatic(1); err == nil {
		t.Fatal("expected invalid-params for sub-page size")
	}
}

func TestStaticInitRejectsBadAlignment(t *testing.T) {
	if _, err := NewStatic(1<<20, WithAutoAlign(3)); err == nil {
		t.Fatal("expected invalid-params for non-power-of-two alignment")
	}
}

// TestStaticFillAndPop mirrors the fill-and-pop end-to-end scenario: fill
// the primary mapping, overflow once into an oversize block, then unwind.
func TestStaticFillAndPop(t *testing.T) {
	const size = 1 << 20

	s, err := NewStatic(size, WithAutoAlign(16))
	if err != nil {
		t.Fatalf("NewStatic: %v", err)
	}

	defer s.Destroy()

	p, err := s.Push(100)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	if uintptr(p)%16 != 0 {
		t.Error("first push is not 16-aligned")
	}

	buf := unsafe.Slice((*byte)(p), 100)
	for _, b := range buf {
		if b != 0 {
			t.Fatal("Push did not zero its bytes")
		}
	}

	// The fill starts at the 16-aligned offset after the first push, so it
	// covers exactly what is left of the primary mapping.
	if _, err := s.Push(size - vm.AlignUp(s.Pos(), 16)); err != nil {
		t.Fatalf("Push filling the rest: %v", err)
	}

	overflow, err := s.Push(1)
	if err != nil {
		t.Fatalf("Push overflow: %v", err)
	}

	if overflow == nil {
		t.Fatal("overflow push should land in an oversize block, not return nil")
	}

	if s.oversize == nil || s.oversize.next != nil {
		t.Fatal("expected exactly one oversize block")
	}

	if err := s.PopLargeBlock(); err != nil {
		t.Fatalf("PopLargeBlock: %v", err)
	}

	if s.oversize != nil {
		t.Fatal("oversize chain should be empty after PopLargeBlock")
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if s.Pos() != 0 {
		t.Fatalf("Pos() after Clear = %d, want 0", s.Pos())
	}
}

func TestStaticPopToRestoresPointer(t *testing.T) {
	s, err := NewStatic(1 << 16)
	if err != nil {
		t.Fatalf("NewStatic: %v", err)
	}

	defer s.Destroy()

	mark := s.Pos()

	p1, _ := s.PushNoZero(64)

	if err := s.PopTo(mark); err != nil {
		t.Fatalf("PopTo: %v", err)
	}

	p2, _ := s.PushNoZero(64)

	if p1 != p2 {
		t.Fatalf("PopTo then push returned %p, want %p", p2, p1)
	}
}

func TestStaticPopToAddressStrictBounds(t *testing.T) {
	s, err := NewStatic(1 << 16)
	if err != nil {
		t.Fatalf("NewStatic: %v", err)
	}

	defer s.Destroy()

	s.PushNoZero(100)
	pos := s.Pos()

	// Past the live region: rejected, position unchanged.
	if err := s.PopToAddress(s.base + pos + 1); err == nil {
		t.Fatal("expected invalid-params for address past position")
	}

	if s.Pos() != pos {
		t.Fatal("position changed despite rejected PopToAddress")
	}

	// Before base: rejected.
	if err := s.PopToAddress(s.base - 1); err == nil {
		t.Fatal("expected invalid-params for address before base")
	}

	// Exactly at base: accepted (base is the lower inclusive bound).
	if err := s.PopToAddress(s.base); err != nil {
		t.Fatalf("PopToAddress(base): %v", err)
	}

	if s.Pos() != 0 {
		t.Fatalf("Pos() after PopToAddress(base) = %d, want 0", s.Pos())
	}
}

func TestStaticPushAlignerCacheline(t *testing.T) {
	s, err := NewStatic(1 << 16)
	if err != nil {
		t.Fatalf("NewStatic: %v", err)
	}

	defer s.Destroy()

	s.PushNoZero(1)

	if err := s.PushAlignerCacheline(); err != nil {
		t.Fatalf("PushAlignerCacheline: %v", err)
	}

	if s.Pos()%vm.CacheLineSize != 0 {
		t.Fatalf("Pos() = %d, not cache-line aligned", s.Pos())
	}
}
