package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/Cheese-BoardWatch/internal/board"
	"github.com/park285/Cheese-BoardWatch/internal/boardimg"
	"github.com/park285/Cheese-BoardWatch/internal/capture"
	"github.com/park285/Cheese-BoardWatch/internal/engine"
	"github.com/park285/Cheese-BoardWatch/internal/framepool"
	"github.com/park285/Cheese-BoardWatch/internal/gesture"
	"github.com/park285/Cheese-BoardWatch/internal/inference"
	"github.com/park285/Cheese-BoardWatch/internal/movelog"
	"github.com/park285/Cheese-BoardWatch/internal/msgcat"
	"github.com/park285/Cheese-BoardWatch/internal/profile"
	"github.com/park285/Cheese-BoardWatch/internal/settings"
	"github.com/park285/Cheese-BoardWatch/internal/vision"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testRegion = board.Region{X: 0, Y: 60, Size: 640}

type fakeEngine struct {
	mu    sync.Mutex
	calls []string
	best  string
	err   error
}

func (f *fakeEngine) Configured() bool { return true }

func (f *fakeEngine) Position(_ context.Context, uci string) (board.Move, error) {
	f.mu.Lock()
	f.calls = append(f.calls, uci)
	f.mu.Unlock()
	if f.err != nil {
		return board.Move{}, f.err
	}
	return board.ParseMove(f.best)
}

type fakeDragger struct {
	mu    sync.Mutex
	drags int
	fail  bool
}

func (d *fakeDragger) Drag(context.Context, int, int, int, int, int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drags++
	return !d.fail
}

// gappySource reports no frame for its first skip calls.
type gappySource struct {
	src   capture.Source
	skip  int32
	calls atomic.Int32
}

func (g *gappySource) Latest() (*framepool.Buffer, bool) {
	if g.calls.Add(1) <= g.skip {
		return nil, false
	}
	return g.src.Latest()
}

type fakeSaver struct {
	mu    sync.Mutex
	saved []settings.Settings
}

func (s *fakeSaver) Save(_ context.Context, st settings.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, st)
	return nil
}

// harness runs a Watcher whose background jobs are queued for the test to
// run by hand.
type harness struct {
	t      *testing.T
	w      *Watcher
	jobs   chan func()
	logs   *observer.ObservedLogs
	moves  *movelog.Memory
	saver  *fakeSaver
	cancel context.CancelFunc
	exited chan struct{}

	mu       sync.Mutex
	statuses []Status
}

func newHarness(t *testing.T, eng Evaluator, dragger gesture.Dragger, script ...string) *harness {
	t.Helper()
	return newHarnessWith(t, eng, dragger, nil, script...)
}

// newHarnessWith lets wrap stand between the simulated screen and the watcher.
func newHarnessWith(t *testing.T, eng Evaluator, dragger gesture.Dragger, wrap func(capture.Source) capture.Source, script ...string) *harness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	pool := framepool.New(3)
	sim, err := capture.NewSimSource(pool, boardimg.FrameOptions{
		Width: 640, Height: 760, RowPadding: 32, Region: testRegion,
	}, script, 1, logger)
	if err != nil {
		t.Fatalf("NewSimSource: %v", err)
	}
	var src capture.Source = sim
	if wrap != nil {
		src = wrap(sim)
	}
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}

	h := &harness{
		t:      t,
		jobs:   make(chan func(), 64),
		logs:   logs,
		moves:  movelog.NewMemory(16),
		saver:  &fakeSaver{},
		exited: make(chan struct{}),
	}
	var gest *gesture.Executor
	if dragger != nil {
		gest = gesture.NewExecutor(dragger, 300, logger)
	}
	w, err := New(Deps{
		Source:     src,
		Sampler:    vision.NewSampler(pool, logger),
		Inferencer: inference.New(pool, nil, inference.WithDirectionHeuristic(true)),
		Engine:     eng,
		Gesture:    gest,
		Moves:      h.moves,
		Settings:   h.saver,
		Messages:   cat,
		Logger:     logger,
		OnStatus: func(s Status) {
			h.mu.Lock()
			h.statuses = append(h.statuses, s)
			h.mu.Unlock()
		},
		Dispatch: func(f func()) { h.jobs <- f },
	}, Options{
		Region:  testRegion,
		Profile: profile.Profile{Name: "test", FrameRateLimit: 2 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.w = w

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		_ = w.Run(ctx)
		close(h.exited)
	}()
	t.Cleanup(h.shutdown)
	return h
}

func (h *harness) shutdown() {
	h.cancel()
	for {
		select {
		case <-h.exited:
			return
		case job := <-h.jobs:
			job()
		case <-time.After(5 * time.Second):
			h.t.Errorf("watcher did not exit")
			return
		}
	}
}

// sync returns once every message posted so far has been handled.
func (h *harness) sync() SessionState {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := h.w.State(ctx)
	if err != nil {
		h.t.Fatalf("State: %v", err)
	}
	return st
}

// job waits for the next background job.
func (h *harness) job() func() {
	h.t.Helper()
	select {
	case j := <-h.jobs:
		return j
	case <-time.After(5 * time.Second):
		h.t.Fatalf("no background job queued")
		return nil
	}
}

func (h *harness) hasStatus(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.statuses {
		if s.Key == key {
			return true
		}
	}
	return false
}

func (h *harness) statusText(key string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.statuses {
		if s.Key == key {
			return s.Text
		}
	}
	return ""
}

func (h *harness) start() {
	h.t.Helper()
	if err := h.w.Start(context.Background()); err != nil {
		h.t.Fatalf("Start: %v", err)
	}
}

// detectAndQueue starts detection and returns the engine job for the first
// detected move. The move-log job queued before it is run in place.
func (h *harness) detectAndQueue() func() {
	h.t.Helper()
	h.start()
	h.job()() // movelog write for the detected move
	return h.job()
}

func TestDetectedMoveReachesEngine(t *testing.T) {
	eng := &fakeEngine{best: "e7e5"}
	h := newHarness(t, eng, nil, "e2e4")

	engineJob := h.detectAndQueue()
	engineJob()
	h.sync()

	if len(eng.calls) != 1 || eng.calls[0] != "e2e4" {
		t.Fatalf("engine saw %v", eng.calls)
	}
	if got := h.statusText("status.move"); got != "Move: e2e4" {
		t.Fatalf("move status %q", got)
	}
	if got := h.statusText("status.best"); got != "Best: e7e5" {
		t.Fatalf("best status %q", got)
	}
	h.job()() // movelog write for the engine reply
	entries, _ := h.moves.Recent(context.Background(), "", 0)
	if len(entries) != 2 || entries[0].Kind != movelog.KindEngine || entries[1].Move != "e2e4" {
		t.Fatalf("unexpected move log %+v", entries)
	}
}

func TestNoFrameTickKeepsPolling(t *testing.T) {
	eng := &fakeEngine{best: "e7e5"}
	var gap *gappySource
	h := newHarnessWith(t, eng, nil, func(src capture.Source) capture.Source {
		gap = &gappySource{src: src, skip: 5}
		return gap
	}, "e2e4")

	h.detectAndQueue()()
	st := h.sync()

	if n := gap.calls.Load(); n <= gap.skip {
		t.Fatalf("polling stopped after %d calls", n)
	}
	if n := h.logs.FilterMessage("no_frame").Len(); n < int(gap.skip) {
		t.Fatalf("expected %d no_frame logs, got %d", gap.skip, n)
	}
	if !st.Detecting {
		t.Fatalf("missing frames must not end detection")
	}
	if got := h.statusText("status.move"); got != "Move: e2e4" {
		t.Fatalf("move status %q", got)
	}
	if len(eng.calls) != 1 || eng.calls[0] != "e2e4" {
		t.Fatalf("engine saw %v", eng.calls)
	}
}

func TestStopDropsInFlightEngineResult(t *testing.T) {
	eng := &fakeEngine{best: "e7e5"}
	h := newHarness(t, eng, nil, "e2e4")

	engineJob := h.detectAndQueue()
	if err := h.w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st := h.sync(); st.Detecting {
		t.Fatalf("still detecting after stop")
	}

	engineJob()
	h.sync()

	if h.hasStatus("status.best") || h.hasStatus("status.playing") {
		t.Fatalf("late engine result must be dropped")
	}
	if h.logs.FilterMessage("engine_result_stale").Len() != 1 {
		t.Fatalf("expected one engine_result_stale log")
	}
	if !h.hasStatus("status.stopped") {
		t.Fatalf("expected stopped status")
	}
}

func TestRestartDoesNotRevivePreviousResult(t *testing.T) {
	eng := &fakeEngine{best: "e7e5"}
	h := newHarness(t, eng, nil, "e2e4")

	engineJob := h.detectAndQueue()
	_ = h.w.Stop(context.Background())
	h.start()
	h.sync()

	engineJob()
	h.sync()
	if h.hasStatus("status.best") {
		t.Fatalf("result from the previous run must be dropped")
	}
}

func TestAutoPlayDragsBestMove(t *testing.T) {
	eng := &fakeEngine{best: "e7e5"}
	drag := &fakeDragger{}
	h := newHarness(t, eng, drag, "e2e4")
	if err := h.w.SetAutoPlay(context.Background(), true); err != nil {
		t.Fatalf("SetAutoPlay: %v", err)
	}
	if st := h.sync(); !st.AutoPlay {
		t.Fatalf("auto-play not enabled")
	}

	h.detectAndQueue()()
	h.sync()
	if got := h.statusText("status.playing"); got != "Playing: e7e5" {
		t.Fatalf("playing status %q", got)
	}
	h.job()() // movelog write for the engine reply
	h.job()() // gesture
	h.sync()
	if drag.drags != 1 {
		t.Fatalf("expected one drag, got %d", drag.drags)
	}
	if h.hasStatus("status.autoplay_unavailable") {
		t.Fatalf("drag succeeded, no unavailable status expected")
	}
}

func TestAutoPlayDragFailureReportsUnavailable(t *testing.T) {
	eng := &fakeEngine{best: "e7e5"}
	drag := &fakeDragger{fail: true}
	h := newHarness(t, eng, drag, "e2e4")
	ctx := context.Background()
	if err := h.w.SetAutoPlay(ctx, true); err != nil {
		t.Fatalf("SetAutoPlay: %v", err)
	}
	h.sync()

	h.detectAndQueue()()
	h.sync()
	h.job()() // movelog write for the engine reply
	h.job()() // gesture
	h.sync()

	if drag.drags != 1 {
		t.Fatalf("expected one drag attempt, got %d", drag.drags)
	}
	if !h.hasStatus("status.autoplay_unavailable") {
		t.Fatalf("failed drag must report auto-play unavailable")
	}
	entries, _ := h.moves.Recent(ctx, "", 0)
	for _, e := range entries {
		if e.Kind == movelog.KindPlayed {
			t.Fatalf("failed drag must not be logged as played: %+v", entries)
		}
	}
	if st := h.sync(); !st.AutoPlay || !st.Detecting {
		t.Fatalf("a failed drag must not end the session: %+v", st)
	}
}

func TestAutoPlayUnavailableWithoutGesture(t *testing.T) {
	h := newHarness(t, &fakeEngine{best: "e7e5"}, nil, "e2e4")
	_ = h.w.SetAutoPlay(context.Background(), true)
	if st := h.sync(); st.AutoPlay {
		t.Fatalf("auto-play must stay off without a gesture capability")
	}
	if !h.hasStatus("status.autoplay_unavailable") {
		t.Fatalf("expected unavailable status")
	}
}

func TestEngineErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&engine.StatusError{Path: "/position", Status: 500}, "status.engine_error"},
		{engine.ErrNoBestMove, "status.no_best_move"},
		{errors.New("dial tcp: refused"), "status.connection_failed"},
	}
	for _, tc := range cases {
		h := newHarness(t, &fakeEngine{err: tc.err}, nil, "e2e4")
		h.detectAndQueue()()
		h.sync()
		if !h.hasStatus(tc.want) {
			t.Fatalf("%v: expected %s", tc.err, tc.want)
		}
	}
}

func TestFlipPersistsAndResets(t *testing.T) {
	h := newHarness(t, &fakeEngine{best: "e7e5"}, nil)
	if err := h.w.Flip(context.Background()); err != nil {
		t.Fatalf("Flip: %v", err)
	}
	st := h.sync()
	if st.Orientation != board.BlackBottom {
		t.Fatalf("orientation %s", st.Orientation)
	}
	h.job()()
	h.saver.mu.Lock()
	defer h.saver.mu.Unlock()
	if len(h.saver.saved) != 1 || !h.saver.saved[0].Orientation.Flipped() || h.saver.saved[0].Region != testRegion {
		t.Fatalf("unexpected saves %+v", h.saver.saved)
	}
	if got := h.statusText("status.orientation.black_bottom"); got != "Black bottom" {
		t.Fatalf("orientation status %q", got)
	}
}

func TestSetRegionAndProfile(t *testing.T) {
	h := newHarness(t, &fakeEngine{}, nil)
	ctx := context.Background()
	if err := h.w.SetRegion(ctx, board.Region{Size: 4}); err == nil {
		t.Fatalf("expected invalid region error")
	}
	r := board.Region{X: 10, Y: 20, Size: 240}
	if err := h.w.SetRegion(ctx, r); err != nil {
		t.Fatalf("SetRegion: %v", err)
	}
	_ = h.w.SetProfile(ctx, profile.Profile{Name: "Lichess", CaptureDelay: time.Second, FrameRateLimit: 600 * time.Millisecond})
	st := h.sync()
	if st.Region != r || st.Profile != "Lichess" || st.Interval != 600*time.Millisecond || st.CaptureDelay != time.Second {
		t.Fatalf("unexpected state %+v", st)
	}
	h.job()()
}
