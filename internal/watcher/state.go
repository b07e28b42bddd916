package watcher

import (
	"time"

	"github.com/park285/Cheese-BoardWatch/internal/board"
	"github.com/park285/Cheese-BoardWatch/internal/profile"
)

// SessionState is the user-controlled part of a watch session. It is owned
// by the loop goroutine; callers only ever see copies.
type SessionState struct {
	SessionID    string
	Region       board.Region
	Orientation  board.Orientation
	AutoPlay     bool
	Detecting    bool
	Profile      string
	Interval     time.Duration
	CaptureDelay time.Duration
}

// Status is a user-facing status line.
type Status struct {
	Key  string
	Text string
}

type message interface{ isMessage() }

type startMsg struct{}
type stopMsg struct{}
type flipMsg struct{}
type regionMsg struct{ region board.Region }
type autoPlayMsg struct{ enabled bool }
type profileMsg struct{ p profile.Profile }
type stateMsg struct{ reply chan SessionState }

type engineResultMsg struct {
	epoch    uint64
	detected board.Move
	best     board.Move
	err      error
}

type gestureResultMsg struct {
	epoch uint64
	move  board.Move
	ok    bool
}

func (startMsg) isMessage()         {}
func (stopMsg) isMessage()          {}
func (flipMsg) isMessage()          {}
func (regionMsg) isMessage()        {}
func (autoPlayMsg) isMessage()      {}
func (profileMsg) isMessage()       {}
func (stateMsg) isMessage()         {}
func (engineResultMsg) isMessage()  {}
func (gestureResultMsg) isMessage() {}
