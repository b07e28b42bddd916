package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/park285/Cheese-BoardWatch/internal/board"
	"github.com/park285/Cheese-BoardWatch/internal/engine"
	"github.com/park285/Cheese-BoardWatch/internal/movelog"
	"github.com/park285/Cheese-BoardWatch/internal/msgcat"
	"github.com/park285/Cheese-BoardWatch/internal/profile"
	"github.com/park285/Cheese-BoardWatch/internal/watcher"
	"go.uber.org/zap"
)

const historyLimit = 10

type controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Flip(ctx context.Context) error
	SetRegion(ctx context.Context, r board.Region) error
	SetAutoPlay(ctx context.Context, enabled bool) error
	SetProfile(ctx context.Context, p profile.Profile) error
	State(ctx context.Context) (watcher.SessionState, error)
}

type engineCommands interface {
	Start(ctx context.Context) (string, error)
	SendColor(ctx context.Context, color string) (string, error)
	SendMove(ctx context.Context, text string) (string, error)
}

// console is the stdin command surface. The engine game must be started
// before colours or moves are sent.
type console struct {
	w        controller
	eng      engineCommands
	moves    movelog.Recorder
	profiles *profile.Catalog
	msgs     *msgcat.Catalog
	logger   *zap.Logger

	engineStarted bool
}

// run reads commands until quit, EOF or ctx is done.
func (c *console) run(ctx context.Context, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		reply, quit := c.handle(ctx, sc.Text())
		if reply != "" {
			fmt.Fprintln(out, reply)
		}
		if quit || ctx.Err() != nil {
			return nil
		}
	}
	return sc.Err()
}

func (c *console) handle(ctx context.Context, line string) (string, bool) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return "", false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		return strings.TrimRight(c.msgs.Text("cli.help", nil), "\n"), false
	case "quit", "exit":
		return "", true
	case "start":
		err = c.w.Start(ctx)
	case "stop":
		err = c.w.Stop(ctx)
	case "flip":
		err = c.w.Flip(ctx)
	case "auto":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return c.msgs.Text("cli.help", nil), false
		}
		err = c.w.SetAutoPlay(ctx, args[0] == "on")
	case "region":
		r, perr := parseRegion(args)
		if perr != nil {
			return perr.Error(), false
		}
		err = c.w.SetRegion(ctx, r)
	case "state":
		return c.state(ctx), false
	case "history":
		return c.history(ctx), false
	case "profile":
		return c.profile(ctx, strings.Join(args, " ")), false
	case "engine":
		return c.engine(ctx, args), false
	default:
		return c.msgs.Text("cli.unknown", map[string]any{"Command": cmd}), false
	}
	if err != nil {
		c.logger.Warn("command_failed", zap.String("command", cmd), zap.Error(err))
		return err.Error(), false
	}
	return "", false
}

func (c *console) state(ctx context.Context) string {
	st, err := c.w.State(ctx)
	if err != nil {
		return err.Error()
	}
	return c.msgs.Text("cli.state", map[string]any{
		"Detecting":   st.Detecting,
		"AutoPlay":    st.AutoPlay,
		"Orientation": st.Orientation.String(),
		"Region":      st.Region.String(),
		"Interval":    st.Interval.String(),
	})
}

func (c *console) history(ctx context.Context) string {
	if c.moves == nil {
		return ""
	}
	st, err := c.w.State(ctx)
	if err != nil {
		return err.Error()
	}
	entries, err := c.moves.Recent(ctx, st.SessionID, 0)
	if err != nil {
		return err.Error()
	}
	shown := entries[:min(len(entries), historyLimit)]
	lines := make([]string, 0, len(shown)+1)
	for i := len(shown) - 1; i >= 0; i-- {
		e := shown[i]
		lines = append(lines, fmt.Sprintf("%s %-8s %s", e.CreatedAt.Format("15:04:05"), e.Kind, e.Move))
	}
	if code, title, ok := movelog.Opening(movelog.DetectedMoves(entries)); ok {
		lines = append(lines, fmt.Sprintf("opening: %s %s", code, title))
	}
	return strings.Join(lines, "\n")
}

// profile lists the known profiles or applies the one matching a name or
// package. "generic" selects the fallback.
func (c *console) profile(ctx context.Context, query string) string {
	if c.profiles == nil {
		return ""
	}
	if query == "" {
		all := c.profiles.All()
		lines := make([]string, 0, len(all))
		for _, p := range all {
			lines = append(lines, c.describeProfile(p))
		}
		return strings.Join(lines, "\n")
	}

	p := c.profiles.Lookup(query)
	ok := p.Package == query
	if strings.EqualFold(query, "generic") {
		p, ok = c.profiles.Generic(), true
	}
	for _, cand := range c.profiles.All() {
		if !ok && strings.EqualFold(cand.Name, query) {
			p, ok = cand, true
		}
	}
	if !ok {
		return c.msgs.Text("cli.profile_unknown", map[string]any{"Name": query})
	}
	if err := c.w.SetProfile(ctx, p); err != nil {
		return err.Error()
	}
	return c.describeProfile(p)
}

func (c *console) describeProfile(p profile.Profile) string {
	return c.msgs.Text("cli.profile", map[string]any{
		"Name":     p.Name,
		"Delay":    p.CaptureDelay.String(),
		"Interval": p.FrameRateLimit.String(),
	})
}

func (c *console) engine(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return c.msgs.Text("cli.help", nil)
	}
	var (
		reply string
		err   error
	)
	switch strings.ToLower(args[0]) {
	case "start":
		reply, err = c.eng.Start(ctx)
		if err == nil {
			c.engineStarted = true
		}
	case "color", "colour":
		if !c.engineStarted {
			return c.msgs.Text("engine.start_first", nil)
		}
		if len(args) < 2 {
			return c.msgs.Text("cli.help", nil)
		}
		reply, err = c.eng.SendColor(ctx, args[1])
	case "move":
		if !c.engineStarted {
			return c.msgs.Text("engine.start_first", nil)
		}
		if len(args) < 2 {
			return c.msgs.Text("cli.help", nil)
		}
		reply, err = c.eng.SendMove(ctx, strings.Join(args[1:], " "))
	default:
		return c.msgs.Text("cli.unknown", map[string]any{"Command": "engine " + args[0]})
	}
	if err != nil {
		return c.engineError(err)
	}
	return c.msgs.Text("engine.reply", map[string]any{"Reply": strings.TrimSpace(reply)})
}

func (c *console) engineError(err error) string {
	var se *engine.StatusError
	switch {
	case errors.As(err, &se):
		return c.msgs.Text("engine.status_error", map[string]any{"Status": se.Status, "Body": se.Body})
	case errors.Is(err, engine.ErrNotConfigured):
		return c.msgs.Text("engine.not_configured", nil)
	default:
		c.logger.Warn("engine_command_failed", zap.Error(err))
		return c.msgs.Text("engine.error", map[string]any{"Error": err.Error()})
	}
}

func parseRegion(args []string) (board.Region, error) {
	if len(args) != 3 {
		return board.Region{}, errors.New("usage: region <x> <y> <size>")
	}
	var v [3]int
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return board.Region{}, fmt.Errorf("region: %q is not a number", a)
		}
		v[i] = n
	}
	return board.Region{X: v[0], Y: v[1], Size: v[2]}, nil
}
