// Package board holds the square, orientation and move model shared by the
// detector, the gesture executor and the engine client, plus the mapping from
// squares to screen pixels.
package board

import (
	"errors"
	"fmt"
	"image"
	"regexp"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	ErrInvalidSquare = errors.New("invalid square")
	ErrInvalidMove   = errors.New("invalid move")
)

var movePattern = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// Square is an algebraic square: File 0 is the a-file, Rank 0 is rank 1.
type Square struct {
	File int
	Rank int
}

func (s Square) Valid() bool {
	return s.File >= 0 && s.File < 8 && s.Rank >= 0 && s.Rank < 8
}

// Chess converts to the chess library square.
func (s Square) Chess() nchess.Square {
	return nchess.NewSquare(nchess.File(s.File), nchess.Rank(s.Rank))
}

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return s.Chess().String()
}

// SquareFromChess converts a chess library square.
func SquareFromChess(sq nchess.Square) Square {
	return Square{File: int(sq.File()), Rank: int(sq.Rank())}
}

// ParseSquare parses a two character label such as "e4".
func ParseSquare(text string) (Square, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	if len(t) != 2 || t[0] < 'a' || t[0] > 'h' || t[1] < '1' || t[1] > '8' {
		return Square{}, fmt.Errorf("%w: %q", ErrInvalidSquare, text)
	}
	return Square{File: int(t[0] - 'a'), Rank: int(t[1] - '1')}, nil
}

// Cell is a position in the rendered 8x8 grid: Row 0 is the top row as drawn,
// Col 0 the leftmost column. Cells do not depend on orientation.
type Cell struct {
	Row int
	Col int
}

func (c Cell) String() string { return fmt.Sprintf("(%d,%d)", c.Row, c.Col) }

// Orientation tells which side of the board is drawn at the bottom.
type Orientation uint8

const (
	WhiteBottom Orientation = iota
	BlackBottom
)

// OrientationOf returns BlackBottom when flipped is true.
func OrientationOf(flipped bool) Orientation {
	if flipped {
		return BlackBottom
	}
	return WhiteBottom
}

func (o Orientation) Flipped() bool { return o == BlackBottom }

// Toggle returns the opposite orientation.
func (o Orientation) Toggle() Orientation {
	if o.Flipped() {
		return WhiteBottom
	}
	return BlackBottom
}

func (o Orientation) String() string {
	if o.Flipped() {
		return "black_bottom"
	}
	return "white_bottom"
}

// SquareAt maps a rendered cell to the algebraic square it shows.
func (o Orientation) SquareAt(c Cell) Square {
	if o.Flipped() {
		return Square{File: 7 - c.Col, Rank: c.Row}
	}
	return Square{File: c.Col, Rank: 7 - c.Row}
}

// CellOf maps an algebraic square to the rendered cell that shows it.
func (o Orientation) CellOf(s Square) Cell {
	if o.Flipped() {
		return Cell{Row: s.Rank, Col: 7 - s.File}
	}
	return Cell{Row: 7 - s.Rank, Col: s.File}
}

// Region is the on-screen pixel square covering the whole board.
type Region struct {
	X    int
	Y    int
	Size int
}

// Valid reports whether the region can hold an 8x8 grid.
func (r Region) Valid() bool { return r.Size >= 8 }

// SquareSize is the side of one square in pixels; any remainder is unused.
func (r Region) SquareSize() int { return r.Size / 8 }

func (r Region) String() string { return fmt.Sprintf("%d,%d+%d", r.X, r.Y, r.Size) }

// SquareToPixel returns the screen pixel at the centre of sq.
func SquareToPixel(sq Square, r Region, o Orientation) image.Point {
	s := r.SquareSize()
	c := o.CellOf(sq)
	return image.Point{
		X: r.X + c.Col*s + s/2,
		Y: r.Y + c.Row*s + s/2,
	}
}

// Move is a from/to pair. Promotion is a lowercase piece letter or zero; the
// detector never sets it.
type Move struct {
	From      Square
	To        Square
	Promotion byte
}

// UCI renders the move in long algebraic form, e.g. "e2e4" or "e7e8q".
func (m Move) UCI() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != 0 {
		s += string(m.Promotion)
	}
	return s
}

func (m Move) String() string { return m.UCI() }

// ParseMove parses a UCI move string matching [a-h][1-8][a-h][1-8][qrbn]?.
func ParseMove(text string) (Move, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	if !movePattern.MatchString(t) {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, text)
	}
	from, _ := ParseSquare(t[0:2])
	to, _ := ParseSquare(t[2:4])
	mv := Move{From: from, To: to}
	if len(t) == 5 {
		mv.Promotion = t[4]
	}
	return mv, nil
}
