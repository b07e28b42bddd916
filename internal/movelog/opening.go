package movelog

import (
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

var ecoBook = sync.OnceValue(opening.NewBookECO)

// Opening names the ECO opening reached by a sequence of UCI moves played
// from the initial position. ok is false when a move is illegal or no book
// line matches.
func Opening(moves []string) (code, title string, ok bool) {
	if len(moves) == 0 {
		return "", "", false
	}
	game := nchess.NewGame()
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return "", "", false
		}
	}
	eco := ecoBook().Find(game.Moves())
	if eco == nil {
		return "", "", false
	}
	return eco.Code(), eco.Title(), true
}

// DetectedMoves returns the detected moves among entries in play order.
// entries are expected newest first, as Recent returns them.
func DetectedMoves(entries []Entry) []string {
	var out []string
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == KindDetected {
			out = append(out, entries[i].Move)
		}
	}
	return out
}
