// Package engine talks to the remote move evaluation service.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/park285/Cheese-BoardWatch/internal/board"
	"github.com/valyala/fasthttp"
)

var (
	ErrNotConfigured = errors.New("engine base url not set")
	ErrNoBestMove    = errors.New("no best move in engine reply")
	ErrInvalidColor  = errors.New("color must be white or black")
)

var bestMovePattern = regexp.MustCompile(`"best_move"\s*:\s*"([a-h][1-8][a-h][1-8][qrbn]?)"`)

// StatusError is returned for non-2xx replies.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("engine error: path=%s status=%d body=%s", e.Path, e.Status, e.Body)
}

type positionRequest struct {
	Move string `json:"move"`
}

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

// WithDial replaces the transport dialer, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool { return c != nil && c.baseURL != "" }

// Position reports a detected move and returns the engine's reply move.
func (c *Client) Position(ctx context.Context, uci string) (board.Move, error) {
	payload, err := json.Marshal(positionRequest{Move: uci})
	if err != nil {
		return board.Move{}, fmt.Errorf("marshal request: %w", err)
	}
	body, err := c.post(ctx, "/position", "application/json", payload)
	if err != nil {
		return board.Move{}, err
	}
	return ExtractBestMove(body)
}

// Start begins a new game on the service and returns its reply text.
func (c *Client) Start(ctx context.Context) (string, error) {
	body, err := c.post(ctx, "/start", "", nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// SendMove posts a move or colour as plain text.
func (c *Client) SendMove(ctx context.Context, text string) (string, error) {
	body, err := c.post(ctx, "/move", "text/plain; charset=utf-8", []byte(strings.TrimSpace(text)))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// SendColor tells the service which side the user plays.
func (c *Client) SendColor(ctx context.Context, color string) (string, error) {
	color = strings.ToLower(strings.TrimSpace(color))
	if color != "white" && color != "black" {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	return c.SendMove(ctx, color)
}

// ExtractBestMove pulls the best_move field out of a reply body.
func ExtractBestMove(body []byte) (board.Move, error) {
	m := bestMovePattern.FindSubmatch(body)
	if m == nil {
		return board.Move{}, ErrNoBestMove
	}
	return board.ParseMove(string(m[1]))
}

func (c *Client) post(ctx context.Context, path, contentType string, payload []byte) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.baseURL + path)
	if contentType != "" {
		req.Header.SetContentType(contentType)
	}
	req.SetBody(payload)

	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return nil, &StatusError{Path: path, Status: status, Body: truncate(string(resp.Body()), 512)}
	}
	// resp is released on return
	return append([]byte(nil), resp.Body()...), nil
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
