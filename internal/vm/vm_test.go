package vm

import "testing"

func TestPageSizeIsPowerOfTwo(t *testing.T) {
	p := PageSize()
	if p == 0 {
		t.Fatal("PageSize returned 0")
	}

	if p&(p-1) != 0 {
		t.Fatalf("PageSize %d is not a power of two", p)
	}
}

func TestAlignUp(t *testing.T) {
	cases := []struct {
		n, a, want uintptr
	}{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{4095, 4096, 4096},
		{4096, 4096, 4096},
	}

	for _, c := range cases {
		if got := AlignUp(c.n, c.a); got != c.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", c.n, c.a, got, c.want)
		}
	}
}

func TestReserveCommitReleaseRoundTrip(t *testing.T) {
	size := PageSize() * 4

	base, err := ReserveCommit(size)
	if err != nil {
		t.Fatalf("ReserveCommit: %v", err)
	}

	if base == 0 {
		t.Fatal("ReserveCommit returned a zero address")
	}

	if err := Protect(base, size, ProtectReadOnly); err != nil {
		t.Fatalf("Protect(ro): %v", err)
	}

	if err := Protect(base, size, ProtectReadWrite); err != nil {
		t.Fatalf("Protect(rw): %v", err)
	}

	if err := Decommit(base, size); err != nil {
		t.Fatalf("Decommit: %v", err)
	}

	if err := Release(base, size); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestReserveThenCommit(t *testing.T) {
	size := PageSize() * 8

	base, err := Reserve(size)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	defer func() {
		if err := Release(base, size); err != nil {
			t.Errorf("Release: %v", err)
		}
	}()

	if err := Commit(base, PageSize()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}
