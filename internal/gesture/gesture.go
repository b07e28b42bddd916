// Package gesture turns moves into screen drags on the device running the
// chess app.
package gesture

import (
	"context"

	"github.com/park285/Cheese-BoardWatch/internal/board"
	"go.uber.org/zap"
)

const DefaultDragDurationMs = 300

// Dragger performs a single drag between two screen points. It returns false
// when the gesture could not be dispatched.
type Dragger interface {
	Drag(ctx context.Context, fromX, fromY, toX, toY int, durationMs int64) bool
}

// Executor maps moves to pixel drags. A nil Dragger makes it unavailable.
type Executor struct {
	dragger    Dragger
	durationMs int64
	logger     *zap.Logger
}

func NewExecutor(d Dragger, durationMs int64, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if durationMs <= 0 {
		durationMs = DefaultDragDurationMs
	}
	return &Executor{dragger: d, durationMs: durationMs, logger: logger}
}

// Available reports whether a gesture capability was supplied.
func (e *Executor) Available() bool { return e != nil && e.dragger != nil }

// Play drags the piece on mv.From to mv.To.
func (e *Executor) Play(ctx context.Context, mv board.Move, r board.Region, o board.Orientation) bool {
	if !e.Available() {
		e.logger.Warn("gesture_unavailable", zap.String("move", mv.UCI()))
		return false
	}
	from := board.SquareToPixel(mv.From, r, o)
	to := board.SquareToPixel(mv.To, r, o)
	ok := e.dragger.Drag(ctx, from.X, from.Y, to.X, to.Y, e.durationMs)
	if !ok {
		e.logger.Warn("gesture_failed",
			zap.String("move", mv.UCI()),
			zap.Int("from_x", from.X), zap.Int("from_y", from.Y),
			zap.Int("to_x", to.X), zap.Int("to_y", to.Y),
		)
		return false
	}
	e.logger.Debug("gesture_dispatched", zap.String("move", mv.UCI()))
	return true
}

// DryRun only logs the drags it is asked for.
type DryRun struct {
	Logger *zap.Logger
}

func (d DryRun) Drag(_ context.Context, fromX, fromY, toX, toY int, durationMs int64) bool {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("gesture_dryrun",
		zap.Int("from_x", fromX), zap.Int("from_y", fromY),
		zap.Int("to_x", toX), zap.Int("to_y", toY),
		zap.Int64("duration_ms", durationMs),
	)
	return true
}
