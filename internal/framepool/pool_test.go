package framepool

import (
	"sync"
	"testing"
)

func TestObtainAfterRecycleReturnsSameBuffer(t *testing.T) {
	p := New(3)
	b := p.Obtain(64, 64, FormatRGBA8888)
	p.Recycle(b)

	got := p.Obtain(64, 64, FormatRGBA8888)
	if got != b {
		t.Fatalf("expected recycled buffer to be reused")
	}
	if s := p.Stats(); s.Reused != 1 || s.Allocated != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestObtainPrefersMostRecentMatch(t *testing.T) {
	p := New(4)
	a := p.Obtain(8, 8, FormatRGBA8888)
	b := p.Obtain(8, 8, FormatRGBA8888)
	p.Recycle(a)
	p.Recycle(b)

	if got := p.Obtain(8, 8, FormatRGBA8888); got != b {
		t.Fatalf("expected last recycled buffer first")
	}
	if got := p.Obtain(8, 8, FormatRGBA8888); got != a {
		t.Fatalf("expected remaining buffer second")
	}
}

func TestRecycleBeyondCapacityDiscards(t *testing.T) {
	const capacity = 3
	p := New(capacity)
	bufs := make([]*Buffer, 0, capacity+1)
	for i := 0; i < capacity+1; i++ {
		bufs = append(bufs, p.Obtain(16, 16, FormatRGBA8888))
	}
	for _, b := range bufs {
		p.Recycle(b)
	}

	s := p.Stats()
	if s.Idle != capacity {
		t.Fatalf("expected %d idle buffers, got %d", capacity, s.Idle)
	}
	if s.Discarded != 1 {
		t.Fatalf("expected 1 discarded buffer, got %d", s.Discarded)
	}
}

func TestMismatchDropsOldestAndAllocates(t *testing.T) {
	p := New(3)
	small := p.Obtain(4, 4, FormatRGBA8888)
	p.Recycle(small)

	big := p.Obtain(32, 32, FormatRGBA8888)
	if big == small {
		t.Fatalf("mismatched geometry must not be reused")
	}
	if big.Stride != 32*BytesPerPixel || len(big.Pix) != 32*32*BytesPerPixel {
		t.Fatalf("unexpected geometry stride=%d len=%d", big.Stride, len(big.Pix))
	}
	s := p.Stats()
	if s.Idle != 0 || s.Discarded != 1 {
		t.Fatalf("expected front buffer discarded, got %+v", s)
	}
}

func TestObtainStrideKeepsPadding(t *testing.T) {
	p := New(2)
	b := p.ObtainStride(10, 2, FormatRGBA8888, 48)
	if b.Stride != 48 || len(b.Pix) != 96 {
		t.Fatalf("stride=%d len=%d", b.Stride, len(b.Pix))
	}
	p.Recycle(b)
	if got := p.Obtain(10, 2, FormatRGBA8888); got == b {
		t.Fatalf("padded buffer must not satisfy a packed request")
	}
}

func TestRecycleTwiceIsIgnored(t *testing.T) {
	p := New(3)
	b := p.Obtain(8, 8, FormatRGBA8888)
	p.Recycle(b)
	p.Recycle(b)
	p.Recycle(nil)
	if s := p.Stats(); s.Idle != 1 {
		t.Fatalf("expected one idle buffer, got %d", s.Idle)
	}
}

func TestClear(t *testing.T) {
	p := New(3)
	p.Recycle(p.Obtain(8, 8, FormatRGBA8888))
	p.Recycle(p.Obtain(9, 9, FormatRGBA8888))
	p.Clear()
	if s := p.Stats(); s.Idle != 0 || s.Discarded != 2 {
		t.Fatalf("unexpected stats after clear: %+v", s)
	}
}

func TestConcurrentObtainRecycle(t *testing.T) {
	p := New(5)
	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b := p.Obtain(16, 16, FormatRGBA8888)
				b.Pix[0] = byte(i)
				p.Recycle(b)
			}
		}()
	}
	wg.Wait()
	if s := p.Stats(); s.Idle > p.Capacity() {
		t.Fatalf("pool exceeded capacity: %+v", s)
	}
}

func TestImageViewSharesPixels(t *testing.T) {
	b := New(1).ObtainStride(2, 2, FormatRGBA8888, 12)
	img := b.Image()
	img.Pix[img.PixOffset(1, 1)] = 200
	if r, _, _ := b.RGB(1, 1); r != 200 {
		t.Fatalf("expected shared pixel data, got r=%d", r)
	}
}
