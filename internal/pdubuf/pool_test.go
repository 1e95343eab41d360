package pdubuf

import "testing"

func TestGetSizeBuckets(t *testing.T) {
	tests := []struct {
		name        string
		requestSize int
		expectCap   int
	}{
		{"256B bucket - exact", 256, 256},
		{"256B bucket - smaller", 100, 256},
		{"1KB bucket - exact", 1024, 1024},
		{"1KB bucket - smaller", 800, 1024},
		{"4KB bucket - exact", 4096, 4096},
		{"4KB bucket - smaller", 3000, 4096},
		{"8KB bucket - exact", 8192, 8192},
		{"8KB bucket - smaller", 6000, 8192},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := Get(tt.requestSize)
			if len(buf) != tt.requestSize {
				t.Errorf("Get(%d) returned len=%d, want %d", tt.requestSize, len(buf), tt.requestSize)
			}
			if cap(buf) != tt.expectCap {
				t.Errorf("Get(%d) returned cap=%d, want %d", tt.requestSize, cap(buf), tt.expectCap)
			}
			Put(buf)
		})
	}
}

func TestGetOversizeFallsBackToFreshAlloc(t *testing.T) {
	buf := Get(20000)
	if len(buf) != 20000 {
		t.Fatalf("expected oversize request honored, got len=%d", len(buf))
	}
	Put(buf) // must not panic even though it won't be pooled
}

func TestPutNonStandardCapDoesNotPanic(t *testing.T) {
	buf := make([]byte, 600)
	Put(buf)
}

func BenchmarkGet256B(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := Get(256)
		Put(buf)
	}
}

func BenchmarkGet4KB(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := Get(4096)
		Put(buf)
	}
}

func BenchmarkMakeBuffer4KB(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = make([]byte, 4096)
	}
}
