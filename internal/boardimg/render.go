// Package boardimg draws chess positions the way a phone app shows them.
// The simulator uses it to produce capture frames and the watcher uses it to
// write debug snapshots of what the detector saw.
package boardimg

import (
	"fmt"
	"image"
	"image/color"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-BoardWatch/internal/board"
	xdraw "golang.org/x/image/draw"
)

// Theme is the board palette.
type Theme struct {
	Light      color.RGBA
	Dark       color.RGBA
	Background color.RGBA
	Outline    color.RGBA
}

var DefaultTheme = Theme{
	Light:      color.RGBA{R: 240, G: 217, B: 181, A: 255},
	Dark:       color.RGBA{R: 181, G: 136, B: 99, A: 255},
	Background: color.RGBA{R: 38, G: 36, B: 33, A: 255},
	Outline:    color.RGBA{R: 230, G: 40, B: 40, A: 255},
}

func (t Theme) squareColor(sq board.Square) color.RGBA {
	// a1 is dark
	if (sq.File+sq.Rank)%2 == 0 {
		return t.Dark
	}
	return t.Light
}

// DrawBoard paints b into the square of side size at origin on dst, with the
// given side at the bottom. Any remainder of size beyond 8 squares is left
// untouched.
func DrawBoard(dst xdraw.Image, origin image.Point, size int, b *nchess.Board, o board.Orientation, theme Theme) error {
	if b == nil {
		return fmt.Errorf("board is nil")
	}
	s := size / 8
	if s <= 0 {
		return fmt.Errorf("board size %d too small", size)
	}
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			cell := board.Cell{Row: row, Col: col}
			sq := o.SquareAt(cell)
			rect := cellRect(cell, s, origin)
			xdraw.Draw(dst, rect, image.NewUniform(theme.squareColor(sq)), image.Point{}, xdraw.Src)

			piece := b.Piece(sq.Chess())
			if piece == nchess.NoPiece {
				continue
			}
			img, err := renderPiece(piece, s)
			if err != nil {
				return err
			}
			xdraw.Draw(dst, rect, img, image.Point{}, xdraw.Over)
		}
	}
	return nil
}

// RenderBoard returns a size x size image of b.
func RenderBoard(b *nchess.Board, size int, o board.Orientation, theme Theme) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.Draw(img, img.Bounds(), image.NewUniform(theme.Background), image.Point{}, xdraw.Src)
	if err := DrawBoard(img, image.Point{}, size, b, o, theme); err != nil {
		return nil, err
	}
	return img, nil
}

func cellRect(c board.Cell, squareSize int, origin image.Point) image.Rectangle {
	x := origin.X + c.Col*squareSize
	y := origin.Y + c.Row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}
