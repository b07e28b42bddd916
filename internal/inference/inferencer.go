// Package inference turns a stream of board crops into moves.
package inference

import (
	"sync"

	"github.com/park285/Cheese-BoardWatch/internal/board"
	"github.com/park285/Cheese-BoardWatch/internal/framepool"
	"github.com/park285/Cheese-BoardWatch/internal/vision"
)

// Result describes one observation.
type Result struct {
	Changes []board.Cell
	Move    board.Move
	Found   bool
}

type Option func(*Inferencer)

// WithDirectionHeuristic orders the two changed cells by how empty they look
// in the new frame instead of by scan order.
func WithDirectionHeuristic(enabled bool) Option {
	return func(i *Inferencer) { i.resolveDirection = enabled }
}

// Inferencer holds the last board crop and diffs each new crop against it.
// It owns exactly one retained buffer at a time.
type Inferencer struct {
	pool     *framepool.Pool
	detector *vision.Detector

	resolveDirection bool

	mu   sync.Mutex
	prev *framepool.Buffer
}

func New(pool *framepool.Pool, detector *vision.Detector, opts ...Option) *Inferencer {
	if detector == nil {
		detector = vision.NewDetector(vision.DefaultConfig())
	}
	inf := &Inferencer{pool: pool, detector: detector}
	for _, opt := range opts {
		opt(inf)
	}
	return inf
}

// Observe takes ownership of frame. The first frame only becomes the
// reference. Passing the currently retained buffer again is a no-op.
func (i *Inferencer) Observe(frame *framepool.Buffer, o board.Orientation) Result {
	if frame == nil {
		return Result{}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.prev == nil {
		i.prev = frame
		return Result{}
	}
	if i.prev == frame {
		return Result{}
	}

	changes := i.detector.Changes(i.prev, frame)
	res := Result{Changes: changes}
	if len(changes) == 2 {
		from, to := changes[0], changes[1]
		if i.resolveDirection {
			from, to = i.orient(frame, from, to)
		}
		res.Move = board.Move{From: o.SquareAt(from), To: o.SquareAt(to)}
		res.Found = true
	}

	i.pool.Recycle(i.prev)
	i.prev = frame
	return res
}

// orient puts the cell that looks emptier in the new frame first.
func (i *Inferencer) orient(frame *framepool.Buffer, a, b board.Cell) (board.Cell, board.Cell) {
	size := vision.SquareSize(frame.Width)
	if i.detector.Uniformity(frame, b, size) < i.detector.Uniformity(frame, a, size) {
		return b, a
	}
	return a, b
}

// Reset drops the reference frame so the next observation starts fresh.
func (i *Inferencer) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.prev != nil {
		i.pool.Recycle(i.prev)
		i.prev = nil
	}
}

// Retained reports whether a reference frame is held.
func (i *Inferencer) Retained() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.prev != nil
}
