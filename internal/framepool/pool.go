package framepool

import (
	"image"
	"sync"
)

// Format identifies the pixel layout of a Buffer.
type Format int

const (
	FormatUnknown Format = iota
	// FormatRGBA8888 stores 4 bytes per pixel in R, G, B, A order.
	FormatRGBA8888
)

// BytesPerPixel is fixed for every supported format.
const BytesPerPixel = 4

const defaultCapacity = 3

func (f Format) String() string {
	switch f {
	case FormatRGBA8888:
		return "rgba8888"
	default:
		return "unknown"
	}
}

// Buffer is a pixel buffer tagged with its geometry. Capture frames may carry
// row padding (Stride > Width*4); board crops are always tightly packed.
//
// A Buffer is owned by exactly one party at a time: the Pool or the operation
// that obtained it. After Recycle the previous owner must not touch it again.
type Buffer struct {
	Width  int
	Height int
	Format Format
	Stride int
	Pix    []byte
}

func newBuffer(w, h int, f Format, stride int) *Buffer {
	return &Buffer{
		Width:  w,
		Height: h,
		Format: f,
		Stride: stride,
		Pix:    make([]byte, stride*h),
	}
}

func (b *Buffer) matches(w, h int, f Format, stride int) bool {
	return b.Width == w && b.Height == h && b.Format == f && b.Stride == stride
}

// PixOffset returns the index of the first byte of pixel (x, y).
func (b *Buffer) PixOffset(x, y int) int {
	return y*b.Stride + x*BytesPerPixel
}

// RGB returns the colour channels of pixel (x, y). Callers check bounds.
func (b *Buffer) RGB(x, y int) (r, g, bl uint8) {
	i := b.PixOffset(x, y)
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// Image returns an *image.RGBA view sharing Pix. The view is only valid while
// the caller owns the buffer.
func (b *Buffer) Image() *image.RGBA {
	return &image.RGBA{Pix: b.Pix, Stride: b.Stride, Rect: image.Rect(0, 0, b.Width, b.Height)}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Allocated int
	Reused    int
	Discarded int
	Idle      int
}

// Pool keeps a small set of reusable buffers so the polling loop does not
// allocate a full frame every tick.
type Pool struct {
	capacity int

	mu    sync.Mutex
	idle  []*Buffer
	stats Stats
}

// New creates a pool holding at most capacity idle buffers.
func New(capacity int) *Pool {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Pool{capacity: capacity, idle: make([]*Buffer, 0, capacity)}
}

// Capacity returns the maximum number of idle buffers kept.
func (p *Pool) Capacity() int { return p.capacity }

// Obtain returns a tightly packed buffer of the requested geometry.
func (p *Pool) Obtain(w, h int, f Format) *Buffer {
	return p.ObtainStride(w, h, f, w*BytesPerPixel)
}

// ObtainStride returns a buffer with an explicit row stride. A pooled buffer
// with identical geometry is handed out when present (most recently recycled
// first); otherwise the oldest pooled buffer is dropped and a new one is
// allocated.
func (p *Pool) ObtainStride(w, h int, f Format, stride int) *Buffer {
	if stride < w*BytesPerPixel {
		stride = w * BytesPerPixel
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.idle) - 1; i >= 0; i-- {
		b := p.idle[i]
		if b.matches(w, h, f, stride) {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			p.stats.Reused++
			return b
		}
	}

	if len(p.idle) > 0 {
		p.idle[0] = nil
		p.idle = p.idle[1:]
		p.stats.Discarded++
	}
	p.stats.Allocated++
	return newBuffer(w, h, f, stride)
}

// Recycle hands ownership of b back to the pool. Buffers beyond capacity are
// dropped for the garbage collector.
func (p *Pool) Recycle(b *Buffer) {
	if b == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, held := range p.idle {
		if held == b {
			return
		}
	}
	if len(p.idle) >= p.capacity {
		p.stats.Discarded++
		return
	}
	p.idle = append(p.idle, b)
}

// Clear drops every pooled buffer.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Discarded += len(p.idle)
	for i := range p.idle {
		p.idle[i] = nil
	}
	p.idle = p.idle[:0]
}

// Stats returns the current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Idle = len(p.idle)
	return s
}
