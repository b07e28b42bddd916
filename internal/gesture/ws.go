package gesture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// DragCommand is the frame sent to the on-device agent.
type DragCommand struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	FromX      int    `json:"from_x"`
	FromY      int    `json:"from_y"`
	ToX        int    `json:"to_x"`
	ToY        int    `json:"to_y"`
	DurationMs int64  `json:"duration_ms"`
}

// DragAck is the agent's reply to a DragCommand.
type DragAck struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// WSBridge forwards drags to an agent that owns the device's gesture API.
// Commands are sent one at a time and each waits for its ack. A broken
// connection is dropped and redialled on the next drag.
type WSBridge struct {
	url         string
	logger      *zap.Logger
	dialTimeout time.Duration
	ackSlack    time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWSBridge(url string, logger *zap.Logger) *WSBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSBridge{url: url, logger: logger, dialTimeout: 10 * time.Second, ackSlack: 5 * time.Second}
}

// Connect dials the agent unless a connection is already open.
func (b *WSBridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectLocked(ctx)
}

func (b *WSBridge) connectLocked(ctx context.Context) error {
	if b.conn != nil {
		return nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, b.dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, b.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return fmt.Errorf("dial gesture agent: %w", err)
	}
	b.conn = conn
	b.logger.Info("gesture_agent_connected", zap.String("url", b.url))
	return nil
}

func (b *WSBridge) Drag(ctx context.Context, fromX, fromY, toX, toY int, durationMs int64) bool {
	cmd := DragCommand{
		Type: "drag", ID: uuid.NewString(),
		FromX: fromX, FromY: fromY, ToX: toX, ToY: toY,
		DurationMs: durationMs,
	}
	ack, err := b.send(ctx, cmd)
	if err != nil {
		b.logger.Warn("gesture_agent_error", zap.String("id", cmd.ID), zap.Error(err))
		return false
	}
	if !ack.OK {
		b.logger.Warn("gesture_agent_rejected", zap.String("id", cmd.ID), zap.String("reason", ack.Error))
		return false
	}
	return true
}

func (b *WSBridge) send(ctx context.Context, cmd DragCommand) (DragAck, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.connectLocked(ctx); err != nil {
		return DragAck{}, err
	}

	ioCtx, cancel := context.WithTimeout(ctx, time.Duration(cmd.DurationMs)*time.Millisecond+b.ackSlack)
	defer cancel()

	if err := wsjson.Write(ioCtx, b.conn, cmd); err != nil {
		b.dropLocked()
		return DragAck{}, fmt.Errorf("write drag: %w", err)
	}
	for {
		var ack DragAck
		if err := wsjson.Read(ioCtx, b.conn, &ack); err != nil {
			b.dropLocked()
			return DragAck{}, fmt.Errorf("read ack: %w", err)
		}
		// acks for commands that already timed out are skipped
		if ack.ID == cmd.ID {
			return ack, nil
		}
	}
}

func (b *WSBridge) dropLocked() {
	if b.conn == nil {
		return
	}
	_ = b.conn.Close(websocket.StatusGoingAway, "reconnect")
	b.conn = nil
}

func (b *WSBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close(websocket.StatusNormalClosure, "close")
	b.conn = nil
	return err
}
