package vision

import (
	"github.com/park285/Cheese-BoardWatch/internal/board"
	"github.com/park285/Cheese-BoardWatch/internal/framepool"
)

const (
	DefaultStride         = 4
	DefaultPixelThreshold = 25
	DefaultRatioThreshold = 0.12
)

// Config tunes the square comparison.
type Config struct {
	// Stride is the spacing of the sample grid inside a square.
	Stride int
	// PixelThreshold is the |dR|+|dG|+|dB| above which a sample differs.
	PixelThreshold int
	// RatioThreshold is the fraction of differing samples above which a
	// square counts as changed.
	RatioThreshold float64
}

func DefaultConfig() Config {
	return Config{
		Stride:         DefaultStride,
		PixelThreshold: DefaultPixelThreshold,
		RatioThreshold: DefaultRatioThreshold,
	}
}

// Detector compares two board crops square by square. It samples a sparse
// grid so a full comparison stays cheap enough for every polling tick; the
// price is that small changes inside a square can be missed.
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Stride <= 0 {
		cfg.Stride = def.Stride
	}
	if cfg.PixelThreshold <= 0 {
		cfg.PixelThreshold = def.PixelThreshold
	}
	if cfg.RatioThreshold <= 0 {
		cfg.RatioThreshold = def.RatioThreshold
	}
	return &Detector{cfg: cfg}
}

func (d *Detector) Config() Config { return d.cfg }

// SquareSize is the square side used for a board crop of the given width.
func SquareSize(boardWidth int) int { return boardWidth / 8 }

// Changes returns the cells whose content differs between prev and next.
// Cells are listed from the bottom rendered row upward, left to right within
// a row. Pixels past 8*squareSize on either axis are never sampled.
func (d *Detector) Changes(prev, next *framepool.Buffer) []board.Cell {
	if prev == nil || next == nil {
		return nil
	}
	size := SquareSize(prev.Width)
	if size == 0 {
		return nil
	}

	var changed []board.Cell
	for row := 7; row >= 0; row-- {
		for col := 0; col < 8; col++ {
			if d.squareChanged(prev, next, col*size, row*size, size) {
				changed = append(changed, board.Cell{Row: row, Col: col})
			}
		}
	}
	return changed
}

func (d *Detector) squareChanged(prev, next *framepool.Buffer, x0, y0, size int) bool {
	taken, differing := 0, 0
	for dy := 0; dy < size; dy += d.cfg.Stride {
		y := y0 + dy
		for dx := 0; dx < size; dx += d.cfg.Stride {
			x := x0 + dx
			if !inside(prev, x, y) || !inside(next, x, y) {
				continue
			}
			taken++
			if colorDistance(prev, next, x, y) > d.cfg.PixelThreshold {
				differing++
			}
		}
	}
	if taken == 0 {
		return false
	}
	return float64(differing)/float64(taken) > d.cfg.RatioThreshold
}

// Uniformity returns the luminance variance of the samples inside cell. An
// empty square on a flat theme is close to zero.
func (d *Detector) Uniformity(buf *framepool.Buffer, cell board.Cell, squareSize int) float64 {
	if buf == nil || squareSize <= 0 {
		return 0
	}
	x0, y0 := cell.Col*squareSize, cell.Row*squareSize
	var n, sum, sumSq float64
	for dy := 0; dy < squareSize; dy += d.cfg.Stride {
		for dx := 0; dx < squareSize; dx += d.cfg.Stride {
			x, y := x0+dx, y0+dy
			if !inside(buf, x, y) {
				continue
			}
			r, g, b := buf.RGB(x, y)
			l := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
			n++
			sum += l
			sumSq += l * l
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / n
	return sumSq/n - mean*mean
}

func inside(b *framepool.Buffer, x, y int) bool {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return false
	}
	return b.PixOffset(x, y)+framepool.BytesPerPixel <= len(b.Pix)
}

func colorDistance(a, b *framepool.Buffer, x, y int) int {
	r1, g1, b1 := a.RGB(x, y)
	r2, g2, b2 := b.RGB(x, y)
	return absDiff(r1, r2) + absDiff(g1, g2) + absDiff(b1, b2)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
