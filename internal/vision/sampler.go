package vision

import (
	"github.com/park285/Cheese-BoardWatch/internal/board"
	"github.com/park285/Cheese-BoardWatch/internal/framepool"
	"go.uber.org/zap"
)

// Sampler cuts the board region out of full-screen frames.
type Sampler struct {
	pool   *framepool.Pool
	logger *zap.Logger
}

func NewSampler(pool *framepool.Pool, logger *zap.Logger) *Sampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sampler{pool: pool, logger: logger}
}

// Crop copies region out of frame into a pooled Size x Size buffer, dropping
// row padding. The frame is recycled in every case.
//
// When the region does not fit inside the frame the result is a pooled copy of
// the whole frame and ok is false. Callers keep going with that buffer; the
// next tick will simply not line up with it.
func (s *Sampler) Crop(frame *framepool.Buffer, region board.Region) (out *framepool.Buffer, ok bool) {
	if frame == nil {
		return nil, false
	}
	defer s.pool.Recycle(frame)

	if !fits(frame, region) {
		s.logger.Warn("crop_fallback",
			zap.String("region", region.String()),
			zap.Int("frame_w", frame.Width),
			zap.Int("frame_h", frame.Height),
		)
		dup := s.pool.ObtainStride(frame.Width, frame.Height, frame.Format, frame.Stride)
		copy(dup.Pix, frame.Pix)
		return dup, false
	}

	size := region.Size
	dst := s.pool.Obtain(size, size, frame.Format)
	rowBytes := size * framepool.BytesPerPixel
	for row := 0; row < size; row++ {
		src := frame.PixOffset(region.X, region.Y+row)
		off := row * dst.Stride
		copy(dst.Pix[off:off+rowBytes], frame.Pix[src:src+rowBytes])
	}
	return dst, true
}

func fits(frame *framepool.Buffer, r board.Region) bool {
	if !r.Valid() || r.X < 0 || r.Y < 0 {
		return false
	}
	if r.X+r.Size > frame.Width || r.Y+r.Size > frame.Height {
		return false
	}
	// a short Pix slice is treated like an undersized frame
	last := frame.PixOffset(r.X+r.Size-1, r.Y+r.Size-1) + framepool.BytesPerPixel
	return last <= len(frame.Pix)
}
