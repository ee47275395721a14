package arena

import "testing"

func BenchmarkStaticPush(b *testing.B) {
	s, err := NewStatic(ArenaSizeLarge)
	if err != nil {
		b.Fatalf("NewStatic: %v", err)
	}

	defer s.Destroy()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if i%1024 == 0 {
			s.Clear()
		}

		if _, err := s.PushNoZero(64); err != nil {
			b.Fatalf("Push: %v", err)
		}
	}
}

func BenchmarkVirtualPush(b *testing.B) {
	v, err := NewVirtual(ArenaSizeLarge)
	if err != nil {
		b.Fatalf("NewVirtual: %v", err)
	}

	defer v.Destroy()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if i%1024 == 0 {
			v.Clear()
		}

		if _, err := v.PushNoZero(64); err != nil {
			b.Fatalf("Push: %v", err)
		}
	}
}

func BenchmarkChainPush(b *testing.B) {
	c, err := NewChain(ArenaSizeSmall)
	if err != nil {
		b.Fatalf("NewChain: %v", err)
	}

	defer c.Destroy()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if i%1024 == 0 {
			c.ClearCurrentBlock()
		}

		if _, err := c.PushNoZero(64); err != nil {
			b.Fatalf("Push: %v", err)
		}
	}
}

func BenchmarkScratchRoundTrip(b *testing.B) {
	s, err := NewStatic(ArenaSizeLarge)
	if err != nil {
		b.Fatalf("NewStatic: %v", err)
	}

	defer s.Destroy()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		scratch, err := InitScratch(s, ScratchSizeSmall)
		if err != nil {
			b.Fatalf("InitScratch: %v", err)
		}

		if scratch == nil {
			s.Clear()

			continue
		}

		scratch.PushNoZero(128)

		if err := DestroyScratch(scratch); err != nil {
			b.Fatalf("DestroyScratch: %v", err)
		}
	}
}
