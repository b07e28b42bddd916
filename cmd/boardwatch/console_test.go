package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-BoardWatch/internal/board"
	"github.com/park285/Cheese-BoardWatch/internal/engine"
	"github.com/park285/Cheese-BoardWatch/internal/movelog"
	"github.com/park285/Cheese-BoardWatch/internal/msgcat"
	"github.com/park285/Cheese-BoardWatch/internal/profile"
	"github.com/park285/Cheese-BoardWatch/internal/watcher"
	"go.uber.org/zap"
)

type fakeController struct {
	calls   []string
	region  board.Region
	auto    bool
	profile profile.Profile
	state   watcher.SessionState
}

func (f *fakeController) Start(context.Context) error { f.calls = append(f.calls, "start"); return nil }
func (f *fakeController) Stop(context.Context) error  { f.calls = append(f.calls, "stop"); return nil }
func (f *fakeController) Flip(context.Context) error  { f.calls = append(f.calls, "flip"); return nil }

func (f *fakeController) SetRegion(_ context.Context, r board.Region) error {
	f.calls = append(f.calls, "region")
	f.region = r
	return nil
}

func (f *fakeController) SetAutoPlay(_ context.Context, enabled bool) error {
	f.calls = append(f.calls, "auto")
	f.auto = enabled
	return nil
}

func (f *fakeController) SetProfile(_ context.Context, p profile.Profile) error {
	f.calls = append(f.calls, "profile")
	f.profile = p
	return nil
}

func (f *fakeController) State(context.Context) (watcher.SessionState, error) {
	return f.state, nil
}

type fakeEngineCommands struct {
	sent []string
	err  error
}

func (f *fakeEngineCommands) Start(context.Context) (string, error) {
	f.sent = append(f.sent, "start")
	return "game started\n", f.err
}

func (f *fakeEngineCommands) SendColor(_ context.Context, color string) (string, error) {
	f.sent = append(f.sent, "color "+color)
	return "you play " + color, f.err
}

func (f *fakeEngineCommands) SendMove(_ context.Context, text string) (string, error) {
	f.sent = append(f.sent, "move "+text)
	return "ok", f.err
}

func newConsole(t *testing.T) (*console, *fakeController, *fakeEngineCommands) {
	t.Helper()
	msgs, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	profiles, err := profile.Load("")
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	ctl := &fakeController{}
	eng := &fakeEngineCommands{}
	return &console{w: ctl, eng: eng, moves: movelog.NewMemory(8), profiles: profiles, msgs: msgs, logger: zap.NewNop()}, ctl, eng
}

func TestConsoleSessionCommands(t *testing.T) {
	c, ctl, _ := newConsole(t)
	ctx := context.Background()
	for _, line := range []string{"start", "flip", "auto on", "region 12 502 696", "stop"} {
		if reply, quit := c.handle(ctx, line); reply != "" || quit {
			t.Fatalf("%q: reply=%q quit=%v", line, reply, quit)
		}
	}
	if got := strings.Join(ctl.calls, ","); got != "start,flip,auto,region,stop" {
		t.Fatalf("calls %s", got)
	}
	if !ctl.auto || ctl.region != (board.Region{X: 12, Y: 502, Size: 696}) {
		t.Fatalf("unexpected controller state %+v", ctl)
	}
	if _, quit := c.handle(ctx, "quit"); !quit {
		t.Fatalf("quit must end the loop")
	}
}

func TestConsoleRejectsBadInput(t *testing.T) {
	c, ctl, _ := newConsole(t)
	ctx := context.Background()
	if reply, _ := c.handle(ctx, "region 1 2"); !strings.HasPrefix(reply, "usage") {
		t.Fatalf("region usage reply %q", reply)
	}
	if reply, _ := c.handle(ctx, "region a 2 3"); !strings.Contains(reply, "not a number") {
		t.Fatalf("region parse reply %q", reply)
	}
	if reply, _ := c.handle(ctx, "dance"); reply != "unknown command: dance" {
		t.Fatalf("unknown reply %q", reply)
	}
	if reply, _ := c.handle(ctx, "auto maybe"); !strings.Contains(reply, "commands:") {
		t.Fatalf("auto usage reply %q", reply)
	}
	if len(ctl.calls) != 0 {
		t.Fatalf("bad input must not reach the watcher: %v", ctl.calls)
	}
}

func TestConsoleHelpListsEveryCommand(t *testing.T) {
	c, _, _ := newConsole(t)
	reply, _ := c.handle(context.Background(), "help")
	for _, cmd := range []string{"start", "stop", "flip", "state", "history", "auto", "region", "profile", "engine", "quit"} {
		if !strings.Contains(reply, cmd) {
			t.Fatalf("help is missing %q:\n%s", cmd, reply)
		}
	}
}

func TestConsoleProfileCommand(t *testing.T) {
	c, ctl, _ := newConsole(t)
	ctx := context.Background()

	listing, _ := c.handle(ctx, "profile")
	if lines := strings.Split(listing, "\n"); len(lines) != 4 || !strings.HasPrefix(lines[0], "Profile Chess.com:") {
		t.Fatalf("listing %q", listing)
	}
	if len(ctl.calls) != 0 {
		t.Fatalf("listing must not change the profile: %v", ctl.calls)
	}

	if reply, _ := c.handle(ctx, "profile org.lichess.mobileapp"); reply != "Profile Lichess: capture delay 1s, interval 600ms" {
		t.Fatalf("package reply %q", reply)
	}
	if ctl.profile.Package != "org.lichess.mobileapp" {
		t.Fatalf("watcher got %+v", ctl.profile)
	}

	if reply, _ := c.handle(ctx, "profile chess free"); !strings.HasPrefix(reply, "Profile Chess Free:") {
		t.Fatalf("name reply %q", reply)
	}
	if reply, _ := c.handle(ctx, "profile generic"); !strings.HasPrefix(reply, "Profile Generic:") || ctl.profile.Package != "" {
		t.Fatalf("generic reply %q profile %+v", reply, ctl.profile)
	}

	if reply, _ := c.handle(ctx, "profile com.example.unknown"); reply != "unknown profile: com.example.unknown" {
		t.Fatalf("unknown reply %q", reply)
	}
	if got := strings.Join(ctl.calls, ","); got != "profile,profile,profile" {
		t.Fatalf("calls %s", got)
	}
}

func TestConsoleEngineRequiresStart(t *testing.T) {
	c, _, eng := newConsole(t)
	ctx := context.Background()

	if reply, _ := c.handle(ctx, "engine move e2e4"); reply != "Type 'engine start' to begin the game first." {
		t.Fatalf("gating reply %q", reply)
	}
	if reply, _ := c.handle(ctx, "engine start"); reply != "Engine: game started" {
		t.Fatalf("start reply %q", reply)
	}
	if reply, _ := c.handle(ctx, "engine color white"); reply != "Engine: you play white" {
		t.Fatalf("color reply %q", reply)
	}
	if reply, _ := c.handle(ctx, "engine move e2e4"); reply != "Engine: ok" {
		t.Fatalf("move reply %q", reply)
	}
	if got := strings.Join(eng.sent, ","); got != "start,color white,move e2e4" {
		t.Fatalf("sent %s", got)
	}
}

func TestConsoleEngineErrors(t *testing.T) {
	c, _, eng := newConsole(t)
	ctx := context.Background()

	eng.err = engine.ErrNotConfigured
	if reply, _ := c.handle(ctx, "engine start"); reply != "Error: server URL not set" {
		t.Fatalf("not configured reply %q", reply)
	}
	if c.engineStarted {
		t.Fatalf("failed start must not unlock moves")
	}

	eng.err = &engine.StatusError{Path: "/start", Status: 503, Body: "busy"}
	if reply, _ := c.handle(ctx, "engine start"); reply != "Error (503): busy" {
		t.Fatalf("status reply %q", reply)
	}
}

func TestConsoleStateAndHistory(t *testing.T) {
	c, ctl, _ := newConsole(t)
	ctx := context.Background()
	ctl.state = watcher.SessionState{
		SessionID:   "s1",
		Region:      board.Region{X: 50, Y: 300, Size: 800},
		Orientation: board.BlackBottom,
		Detecting:   true,
		Interval:    time.Second,
	}
	want := "detecting=true auto=false orientation=black_bottom region=50,300+800 interval=1s"
	if reply, _ := c.handle(ctx, "state"); reply != want {
		t.Fatalf("state reply %q", reply)
	}

	for _, mv := range []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4"} {
		_ = c.moves.Record(ctx, movelog.NewEntry("s1", movelog.KindDetected, mv, "black_bottom"))
	}
	_ = c.moves.Record(ctx, movelog.NewEntry("other", movelog.KindDetected, "d2d4", "white_bottom"))
	_ = c.moves.Record(ctx, movelog.NewEntry("s1", movelog.KindEngine, "g8f6", "black_bottom"))

	reply, _ := c.handle(ctx, "history")
	lines := strings.Split(reply, "\n")
	if len(lines) != 7 || !strings.HasSuffix(lines[0], "e2e4") || !strings.HasSuffix(lines[5], "g8f6") {
		t.Fatalf("history %q", lines)
	}
	if !strings.HasPrefix(lines[6], "opening: C") {
		t.Fatalf("expected an open game, got %q", lines[6])
	}
}

func TestConsoleRunStopsOnQuit(t *testing.T) {
	c, ctl, _ := newConsole(t)
	var out bytes.Buffer
	in := strings.NewReader("start\nbogus\nquit\nstop\n")
	if err := c.run(context.Background(), in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(ctl.calls) != 1 || out.String() != "unknown command: bogus\n" {
		t.Fatalf("calls=%v out=%q", ctl.calls, out.String())
	}
}
