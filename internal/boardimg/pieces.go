package boardimg

import (
	"fmt"
	"image"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Piece outlines on a 45x45 canvas. Shapes are deliberately blocky so a piece
// covers a large share of its square at any render size.
var pieceShapes = map[nchess.PieceType]string{
	nchess.Pawn: `<circle cx="22.5" cy="13" r="6.5"/>
<polygon points="15,33 18,19 27,19 30,33"/>
<rect x="9" y="33" width="27" height="6"/>`,
	nchess.Rook: `<polygon points="11,8 15,8 15,11 20,11 20,8 25,8 25,11 30,11 30,8 34,8 34,15 11,15"/>
<rect x="14" y="15" width="17" height="17"/>
<rect x="9" y="32" width="27" height="7"/>`,
	nchess.Knight: `<polygon points="12,33 15,22 11,18 14,12 20,7 26,7 32,12 34,20 32,33"/>
<circle cx="19" cy="13" r="1.8" fill="#888888"/>
<rect x="9" y="33" width="27" height="6"/>`,
	nchess.Bishop: `<circle cx="22.5" cy="7" r="3"/>
<ellipse cx="22.5" cy="19" rx="8" ry="10"/>
<polygon points="16,33 19,27 26,27 29,33"/>
<rect x="9" y="33" width="27" height="6"/>`,
	nchess.Queen: `<polygon points="9,14 14,26 17,11 22.5,24 28,11 31,26 36,14 33,33 12,33"/>
<circle cx="9" cy="12" r="2.5"/><circle cx="17" cy="9" r="2.5"/><circle cx="28" cy="9" r="2.5"/><circle cx="36" cy="12" r="2.5"/>
<rect x="9" y="33" width="27" height="6"/>`,
	nchess.King: `<rect x="21" y="3" width="3" height="10"/>
<rect x="17.5" y="6" width="10" height="3"/>
<path d="M 10 33 C 6 24 12 15 22.5 17 C 33 15 39 24 35 33 Z"/>
<rect x="9" y="33" width="27" height="6"/>`,
}

func pieceSVG(piece nchess.Piece) (string, error) {
	body, ok := pieceShapes[piece.Type()]
	if !ok {
		return "", fmt.Errorf("no shape for piece %v", piece)
	}
	fill, stroke := "#f8f8f8", "#101010"
	if piece.Color() == nchess.Black {
		fill, stroke = "#1c1c1c", "#000000"
	}
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">`)
	fmt.Fprintf(&b, `<g fill="%s" stroke="%s" stroke-width="1.2" stroke-linejoin="round">`, fill, stroke)
	b.WriteString(body)
	b.WriteString(`</g></svg>`)
	return b.String(), nil
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]*image.RGBA{}
	pieceCacheMu sync.RWMutex
)

// renderPiece rasterizes piece into a transparent size x size image.
func renderPiece(piece nchess.Piece, size int) (*image.RGBA, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	src, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}
