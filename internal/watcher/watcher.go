// Package watcher runs the polling loop: grab the latest frame, crop the
// board, infer a move, ask the engine for a reply and optionally play it.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/Cheese-BoardWatch/internal/board"
	"github.com/park285/Cheese-BoardWatch/internal/boardimg"
	"github.com/park285/Cheese-BoardWatch/internal/capture"
	"github.com/park285/Cheese-BoardWatch/internal/engine"
	"github.com/park285/Cheese-BoardWatch/internal/gesture"
	"github.com/park285/Cheese-BoardWatch/internal/inference"
	"github.com/park285/Cheese-BoardWatch/internal/movelog"
	"github.com/park285/Cheese-BoardWatch/internal/msgcat"
	"github.com/park285/Cheese-BoardWatch/internal/profile"
	"github.com/park285/Cheese-BoardWatch/internal/settings"
	"github.com/park285/Cheese-BoardWatch/internal/vision"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("watcher stopped")

const inboxSize = 32

// Evaluator is the part of the engine client the loop needs.
type Evaluator interface {
	Configured() bool
	Position(ctx context.Context, uci string) (board.Move, error)
}

// SettingsSaver persists region and orientation changes.
type SettingsSaver interface {
	Save(ctx context.Context, s settings.Settings) error
}

// Deps are the collaborators of a Watcher. Source, Sampler and Inferencer
// are required.
type Deps struct {
	Source     capture.Source
	Sampler    *vision.Sampler
	Inferencer *inference.Inferencer

	Engine   Evaluator
	Gesture  *gesture.Executor
	Moves    movelog.Recorder
	Settings SettingsSaver
	Messages *msgcat.Catalog
	Logger   *zap.Logger

	// BaseURL is written back with every settings save.
	BaseURL     string
	SnapshotDir string

	// OnStatus is called from the loop goroutine.
	OnStatus func(Status)
	// Dispatch runs blocking work off the loop. Defaults to a new goroutine.
	Dispatch func(func())
}

// Options is the initial session.
type Options struct {
	Region      board.Region
	Orientation board.Orientation
	AutoPlay    bool
	Profile     profile.Profile
}

type Watcher struct {
	d      Deps
	logger *zap.Logger

	inbox chan message
	done  chan struct{}
	wg    sync.WaitGroup

	// loop-owned
	state SessionState
	epoch uint64
	moves int
	timer *time.Timer
	timeC <-chan time.Time
	ctx   context.Context
}

func New(d Deps, opts Options) (*Watcher, error) {
	if d.Source == nil || d.Sampler == nil || d.Inferencer == nil {
		return nil, fmt.Errorf("watcher: source, sampler and inferencer are required")
	}
	if !opts.Region.Valid() {
		return nil, fmt.Errorf("watcher: invalid board region %s", opts.Region)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Dispatch == nil {
		d.Dispatch = func(f func()) { go f() }
	}
	if d.Gesture == nil {
		d.Gesture = gesture.NewExecutor(nil, 0, d.Logger)
	}
	p := opts.Profile
	if p.FrameRateLimit <= 0 {
		p.FrameRateLimit = profile.DefaultFrameRateLimit
	}
	w := &Watcher{
		d:      d,
		logger: d.Logger,
		inbox:  make(chan message, inboxSize),
		done:   make(chan struct{}),
		state: SessionState{
			SessionID:    uuid.NewString(),
			Region:       opts.Region,
			Orientation:  opts.Orientation,
			AutoPlay:     opts.AutoPlay && d.Gesture.Available(),
			Profile:      p.Name,
			Interval:     p.FrameRateLimit,
			CaptureDelay: p.CaptureDelay,
		},
	}
	return w, nil
}

// Run owns the session until ctx is cancelled. It returns ctx.Err().
func (w *Watcher) Run(ctx context.Context) error {
	w.ctx = ctx
	defer func() {
		w.disarm()
		close(w.done)
		w.wg.Wait()
		w.d.Inferencer.Reset()
	}()

	w.status("status.ready", nil)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher_exit", zap.String("session", w.state.SessionID))
			return ctx.Err()
		case msg := <-w.inbox:
			w.handle(msg)
		case <-w.timeC:
			w.timeC = nil
			w.tick()
			if w.state.Detecting {
				w.arm(w.state.Interval)
			}
		}
	}
}

func (w *Watcher) Start(ctx context.Context) error { return w.post(ctx, startMsg{}) }
func (w *Watcher) Stop(ctx context.Context) error  { return w.post(ctx, stopMsg{}) }
func (w *Watcher) Flip(ctx context.Context) error  { return w.post(ctx, flipMsg{}) }

func (w *Watcher) SetRegion(ctx context.Context, r board.Region) error {
	if !r.Valid() {
		return fmt.Errorf("invalid board region %s", r)
	}
	return w.post(ctx, regionMsg{region: r})
}

func (w *Watcher) SetAutoPlay(ctx context.Context, enabled bool) error {
	return w.post(ctx, autoPlayMsg{enabled: enabled})
}

func (w *Watcher) SetProfile(ctx context.Context, p profile.Profile) error {
	return w.post(ctx, profileMsg{p: p})
}

// State returns a copy of the session once every earlier message has been
// applied.
func (w *Watcher) State(ctx context.Context) (SessionState, error) {
	reply := make(chan SessionState, 1)
	if err := w.post(ctx, stateMsg{reply: reply}); err != nil {
		return SessionState{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return SessionState{}, ctx.Err()
	case <-w.done:
		return SessionState{}, ErrClosed
	}
}

func (w *Watcher) post(ctx context.Context, m message) error {
	select {
	case w.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return ErrClosed
	}
}

func (w *Watcher) handle(m message) {
	switch msg := m.(type) {
	case startMsg:
		w.start()
	case stopMsg:
		w.stop()
	case flipMsg:
		w.state.Orientation = w.state.Orientation.Toggle()
		w.d.Inferencer.Reset()
		w.persist()
		w.status("status.orientation."+w.state.Orientation.String(), nil)
	case regionMsg:
		w.state.Region = msg.region
		w.d.Inferencer.Reset()
		w.persist()
		w.status("status.region", map[string]any{"Region": msg.region.String()})
	case autoPlayMsg:
		w.setAutoPlay(msg.enabled)
	case profileMsg:
		w.applyProfile(msg.p)
	case stateMsg:
		msg.reply <- w.state
	case engineResultMsg:
		w.onEngineResult(msg)
	case gestureResultMsg:
		w.onGestureResult(msg)
	}
}

func (w *Watcher) start() {
	if w.state.Detecting {
		return
	}
	w.state.Detecting = true
	w.d.Inferencer.Reset()
	w.arm(w.state.CaptureDelay)
	w.logger.Info("detection_started",
		zap.String("session", w.state.SessionID),
		zap.String("region", w.state.Region.String()),
		zap.String("orientation", w.state.Orientation.String()),
		zap.Duration("interval", w.state.Interval),
	)
	w.status("status.detecting", nil)
}

func (w *Watcher) stop() {
	if !w.state.Detecting {
		return
	}
	w.state.Detecting = false
	w.disarm()
	w.d.Inferencer.Reset()
	w.epoch++
	w.logger.Info("detection_stopped", zap.String("session", w.state.SessionID))
	w.status("status.stopped", nil)
}

func (w *Watcher) setAutoPlay(enabled bool) {
	if enabled && !w.d.Gesture.Available() {
		w.state.AutoPlay = false
		w.status("status.autoplay_unavailable", nil)
		return
	}
	w.state.AutoPlay = enabled
	if enabled {
		w.status("status.autoplay_on", nil)
	} else {
		w.status("status.watching", nil)
	}
}

func (w *Watcher) applyProfile(p profile.Profile) {
	if p.FrameRateLimit <= 0 {
		p.FrameRateLimit = profile.DefaultFrameRateLimit
	}
	w.state.Profile = p.Name
	w.state.Interval = p.FrameRateLimit
	w.state.CaptureDelay = p.CaptureDelay
	w.logger.Info("profile_applied",
		zap.String("profile", p.Name),
		zap.Duration("interval", p.FrameRateLimit),
		zap.Duration("capture_delay", p.CaptureDelay),
	)
}

func (w *Watcher) tick() {
	frame, ok := w.d.Source.Latest()
	if !ok {
		w.logger.Debug("no_frame")
		return
	}
	crop, _ := w.d.Sampler.Crop(frame, w.state.Region)
	res := w.d.Inferencer.Observe(crop, w.state.Orientation)
	if len(res.Changes) > 0 {
		w.logger.Debug("squares_changed", zap.Int("count", len(res.Changes)))
	}
	if !res.Found {
		return
	}

	uci := res.Move.UCI()
	w.logger.Info("move_detected",
		zap.String("move", uci),
		zap.String("orientation", w.state.Orientation.String()),
	)
	w.status("status.move", map[string]any{"Move": uci})
	w.record(movelog.KindDetected, uci)
	w.moves++
	if w.d.SnapshotDir != "" {
		// crop is held by the inferencer until the next tick; copy it now
		w.snapshot(boardimg.Snapshot(crop, res.Changes, boardimg.DefaultTheme), uci)
	}

	if w.d.Engine == nil || !w.d.Engine.Configured() {
		return
	}
	epoch, ctx, detected := w.epoch, w.ctx, res.Move
	w.dispatch(func() {
		best, err := w.d.Engine.Position(ctx, uci)
		_ = w.post(ctx, engineResultMsg{epoch: epoch, detected: detected, best: best, err: err})
	})
}

func (w *Watcher) onEngineResult(msg engineResultMsg) {
	if !w.state.Detecting || msg.epoch != w.epoch {
		w.logger.Info("engine_result_stale",
			zap.String("move", msg.detected.UCI()),
			zap.Uint64("epoch", msg.epoch),
			zap.Uint64("current_epoch", w.epoch),
		)
		return
	}
	if msg.err != nil {
		var se *engine.StatusError
		switch {
		case errors.As(msg.err, &se):
			w.logger.Warn("engine_error", zap.Int("status", se.Status), zap.String("body", se.Body))
			w.status("status.engine_error", nil)
		case errors.Is(msg.err, engine.ErrNoBestMove):
			w.logger.Warn("engine_no_best_move", zap.String("move", msg.detected.UCI()))
			w.status("status.no_best_move", nil)
		default:
			w.logger.Warn("engine_request_failed", zap.Error(msg.err))
			w.status("status.connection_failed", nil)
		}
		return
	}

	best := msg.best.UCI()
	w.logger.Info("engine_best_move", zap.String("detected", msg.detected.UCI()), zap.String("best", best))
	w.record(movelog.KindEngine, best)
	if !w.state.AutoPlay {
		w.status("status.best", map[string]any{"Move": best})
		return
	}

	w.status("status.playing", map[string]any{"Move": best})
	epoch, ctx, region, o, mv := w.epoch, w.ctx, w.state.Region, w.state.Orientation, msg.best
	w.dispatch(func() {
		ok := w.d.Gesture.Play(ctx, mv, region, o)
		_ = w.post(ctx, gestureResultMsg{epoch: epoch, move: mv, ok: ok})
	})
}

func (w *Watcher) onGestureResult(msg gestureResultMsg) {
	if msg.epoch != w.epoch {
		return
	}
	if !msg.ok {
		w.status("status.autoplay_unavailable", nil)
		return
	}
	w.record(movelog.KindPlayed, msg.move.UCI())
}

func (w *Watcher) record(kind movelog.Kind, uci string) {
	if w.d.Moves == nil {
		return
	}
	e := movelog.NewEntry(w.state.SessionID, kind, uci, w.state.Orientation.String())
	ctx := w.ctx
	w.dispatch(func() {
		if err := w.d.Moves.Record(ctx, e); err != nil {
			w.logger.Warn("movelog_write_failed", zap.String("move", uci), zap.Error(err))
		}
	})
}

func (w *Watcher) persist() {
	if w.d.Settings == nil {
		return
	}
	s := settings.Settings{BaseURL: w.d.BaseURL, Region: w.state.Region, Orientation: w.state.Orientation}
	ctx := w.ctx
	w.dispatch(func() {
		if err := w.d.Settings.Save(ctx, s); err != nil {
			w.logger.Warn("settings_save_failed", zap.Error(err))
		}
	})
}

func (w *Watcher) snapshot(img *image.RGBA, uci string) {
	dir := w.d.SnapshotDir
	name := fmt.Sprintf("%s-%03d-%s.png", w.state.SessionID[:8], w.moves, uci)
	w.dispatch(func() {
		if _, err := boardimg.WritePNG(dir, name, img); err != nil {
			w.logger.Warn("snapshot_write_failed", zap.String("name", name), zap.Error(err))
		}
	})
}

func (w *Watcher) dispatch(f func()) {
	w.wg.Add(1)
	w.d.Dispatch(func() {
		defer w.wg.Done()
		f()
	})
}

func (w *Watcher) status(key string, data any) {
	text := w.d.Messages.Text(key, data)
	w.logger.Debug("status", zap.String("key", key), zap.String("text", text))
	if w.d.OnStatus != nil {
		w.d.OnStatus(Status{Key: key, Text: text})
	}
}

func (w *Watcher) arm(d time.Duration) {
	w.disarm()
	if d < 0 {
		d = 0
	}
	w.timer = time.NewTimer(d)
	w.timeC = w.timer.C
}

func (w *Watcher) disarm() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.timeC = nil
}
