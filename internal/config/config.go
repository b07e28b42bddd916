package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

const (
	CaptureDir = "dir"
	CaptureSim = "sim"

	GestureNone   = "none"
	GestureDryRun = "dryrun"
	GestureWS     = "ws"
)

type AppConfig struct {
	EngineBaseURL    string
	EngineTimeoutSec int

	BoardX       int
	BoardY       int
	BoardSize    int
	BoardFlipped bool

	AutoPlay       bool
	DragDurationMs int64

	ChessAppPackage string
	ProfilesFile    string
	MessagesDir     string

	FramePoolCapacity      int
	DetectSampleStride     int
	DetectPixelThreshold   int
	DetectChangeRatio      float64
	DetectResolveDirection bool

	CaptureMode     string
	CaptureDir      string
	SimMoves        []string
	SimScreenWidth  int
	SimScreenHeight int
	SimRowPadding   int

	GestureMode  string
	GestureWSURL string

	RedisURL    string
	DeviceID    string
	DatabaseURL string
	SnapshotDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EngineTimeoutSec:     10,
		BoardX:               50,
		BoardY:               300,
		BoardSize:            800,
		DragDurationMs:       300,
		FramePoolCapacity:    3,
		DetectSampleStride:   4,
		DetectPixelThreshold: 25,
		DetectChangeRatio:    0.12,
		CaptureMode:          CaptureSim,
		SimScreenWidth:       1080,
		SimScreenHeight:      1920,
		SimRowPadding:        64,
		GestureMode:          GestureNone,
		DeviceID:             "default",
	}

	cfg.EngineBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("ENGINE_BASE_URL")), "/")
	cfg.EngineTimeoutSec = envInt("ENGINE_TIMEOUT_SEC", cfg.EngineTimeoutSec, 1)

	// board position on screen; zero offsets are legal, the size is checked below
	cfg.BoardX = envInt("BOARD_X", cfg.BoardX, 0)
	cfg.BoardY = envInt("BOARD_Y", cfg.BoardY, 0)
	if v := strings.TrimSpace(os.Getenv("BOARD_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BoardSize = n
		}
	}
	cfg.BoardFlipped = envBool("BOARD_FLIPPED", false)

	cfg.AutoPlay = envBool("AUTO_PLAY", false)
	cfg.DragDurationMs = int64(envInt("DRAG_DURATION_MS", int(cfg.DragDurationMs), 1))

	cfg.ChessAppPackage = strings.TrimSpace(os.Getenv("CHESS_APP_PACKAGE"))
	cfg.ProfilesFile = strings.TrimSpace(os.Getenv("PROFILES_FILE"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	cfg.FramePoolCapacity = envInt("FRAME_POOL_CAPACITY", cfg.FramePoolCapacity, 1)
	cfg.DetectSampleStride = envInt("DETECT_SAMPLE_STRIDE", cfg.DetectSampleStride, 1)
	cfg.DetectPixelThreshold = envInt("DETECT_PIXEL_THRESHOLD", cfg.DetectPixelThreshold, 1)
	if v := strings.TrimSpace(os.Getenv("DETECT_CHANGE_RATIO")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			cfg.DetectChangeRatio = f
		}
	}
	cfg.DetectResolveDirection = envBool("DETECT_RESOLVE_DIRECTION", false)

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("CAPTURE_MODE"))); v == CaptureDir || v == CaptureSim {
		cfg.CaptureMode = v
	}
	cfg.CaptureDir = strings.TrimSpace(os.Getenv("CAPTURE_DIR"))
	cfg.SimMoves = splitList(os.Getenv("SIM_MOVES"))
	cfg.SimScreenWidth = envInt("SIM_SCREEN_WIDTH", cfg.SimScreenWidth, 1)
	cfg.SimScreenHeight = envInt("SIM_SCREEN_HEIGHT", cfg.SimScreenHeight, 1)
	cfg.SimRowPadding = envInt("SIM_ROW_PADDING", cfg.SimRowPadding, 0)

	switch v := strings.ToLower(strings.TrimSpace(os.Getenv("GESTURE_MODE"))); v {
	case GestureNone, GestureDryRun, GestureWS:
		cfg.GestureMode = v
	}
	cfg.GestureWSURL = strings.TrimSpace(os.Getenv("GESTURE_WS_URL"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if v := strings.TrimSpace(os.Getenv("DEVICE_ID")); v != "" {
		cfg.DeviceID = v
	}
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.SnapshotDir = strings.TrimSpace(os.Getenv("SNAPSHOT_DIR"))

	if cfg.BoardSize < 8 {
		return nil, errors.New("BOARD_SIZE must be >= 8")
	}
	if cfg.CaptureMode == CaptureDir && cfg.CaptureDir == "" {
		return nil, errors.New("CAPTURE_DIR is required when CAPTURE_MODE=dir")
	}
	if cfg.GestureMode == GestureWS && cfg.GestureWSURL == "" {
		return nil, errors.New("GESTURE_WS_URL is required when GESTURE_MODE=ws")
	}

	return cfg, nil
}

func envInt(key string, def, min int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}
