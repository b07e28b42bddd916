package capture

import (
	"fmt"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-BoardWatch/internal/boardimg"
	"github.com/park285/Cheese-BoardWatch/internal/framepool"
	"go.uber.org/zap"
)

// SimSource renders a scripted game as phone screenshots. Every
// FramesPerMove frames the next scripted move is played, so the watcher sees
// a few identical frames between moves like it would on a real device.
type SimSource struct {
	pool   *framepool.Pool
	opts   boardimg.FrameOptions
	logger *zap.Logger

	framesPerMove int

	mu     sync.Mutex
	game   *nchess.Game
	script []string
	next   int
	frames int
}

// ParseScript splits a comma or space separated list of UCI moves.
func ParseScript(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\n' || r == '\t' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.ToLower(strings.TrimSpace(f)))
	}
	return out
}

// NewSimSource validates script against the rules before any frame is drawn.
func NewSimSource(pool *framepool.Pool, opts boardimg.FrameOptions, script []string, framesPerMove int, logger *zap.Logger) (*SimSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if framesPerMove <= 0 {
		framesPerMove = 2
	}
	check := nchess.NewGame()
	for i, mv := range script {
		if err := check.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("script move %d %q: %w", i+1, mv, err)
		}
	}
	return &SimSource{
		pool:          pool,
		opts:          opts,
		logger:        logger,
		framesPerMove: framesPerMove,
		game:          nchess.NewGame(),
		script:        script,
	}, nil
}

func (s *SimSource) Latest() (*framepool.Buffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frames > 0 && s.frames%s.framesPerMove == 0 && s.next < len(s.script) {
		mv := s.script[s.next]
		if err := s.game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			s.logger.Warn("sim_move_failed", zap.String("move", mv), zap.Error(err))
		} else {
			s.logger.Debug("sim_move", zap.String("move", mv), zap.Int("ply", s.next+1))
		}
		s.next++
	}
	s.frames++

	opts := s.opts
	opts.Caption = fmt.Sprintf("ply %d/%d", s.next, len(s.script))
	buf, err := boardimg.Frame(s.pool, s.game.Position().Board(), opts)
	if err != nil {
		s.logger.Warn("sim_render_failed", zap.Error(err))
		return nil, false
	}
	return buf, true
}

// Done reports whether every scripted move has been shown.
func (s *SimSource) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next >= len(s.script)
}

// Played returns the moves shown so far.
func (s *SimSource) Played() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.script[:s.next]...)
}
