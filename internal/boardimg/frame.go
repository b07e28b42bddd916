package boardimg

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-BoardWatch/internal/board"
	"github.com/park285/Cheese-BoardWatch/internal/framepool"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FrameOptions describes a synthetic full-screen capture.
type FrameOptions struct {
	Width       int
	Height      int
	RowPadding  int
	Region      board.Region
	Orientation board.Orientation
	Caption     string
	Theme       Theme
}

// Frame renders b as a phone screen into a pooled buffer whose rows carry
// RowPadding extra bytes, like a real capture surface.
func Frame(pool *framepool.Pool, b *nchess.Board, opts FrameOptions) (*framepool.Buffer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height)
	}
	theme := opts.Theme
	if theme == (Theme{}) {
		theme = DefaultTheme
	}
	stride := opts.Width*framepool.BytesPerPixel + max(opts.RowPadding, 0)
	buf := pool.ObtainStride(opts.Width, opts.Height, framepool.FormatRGBA8888, stride)
	img := buf.Image()

	xdraw.Draw(img, img.Bounds(), image.NewUniform(theme.Background), image.Point{}, xdraw.Src)
	origin := image.Point{X: opts.Region.X, Y: opts.Region.Y}
	if err := DrawBoard(img, origin, opts.Region.Size, b, opts.Orientation, theme); err != nil {
		pool.Recycle(buf)
		return nil, err
	}
	if opts.Caption != "" {
		drawCaption(img, opts.Caption, image.Point{X: 16, Y: 32})
	}
	return buf, nil
}

func drawCaption(dst *image.RGBA, text string, at image.Point) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(at.X, at.Y),
	}
	d.DrawString(text)
}

// Snapshot copies a board crop and outlines the changed cells.
func Snapshot(crop *framepool.Buffer, changed []board.Cell, theme Theme) *image.RGBA {
	src := crop.Image()
	out := image.NewRGBA(src.Bounds())
	xdraw.Copy(out, image.Point{}, src, src.Bounds(), xdraw.Src, nil)

	s := crop.Width / 8
	if s <= 0 {
		return out
	}
	edge := image.NewUniform(theme.Outline)
	w := max(s/24, 2)
	for _, c := range changed {
		r := cellRect(c, s, image.Point{})
		xdraw.Draw(out, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w), edge, image.Point{}, xdraw.Src)
		xdraw.Draw(out, image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y), edge, image.Point{}, xdraw.Src)
		xdraw.Draw(out, image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Max.Y), edge, image.Point{}, xdraw.Src)
		xdraw.Draw(out, image.Rect(r.Max.X-w, r.Min.Y, r.Max.X, r.Max.Y), edge, image.Point{}, xdraw.Src)
	}
	return out
}

// WritePNG stores img as dir/name, creating dir when needed.
func WritePNG(dir, name string, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("encode png: %w", err)
	}
	return path, f.Close()
}
