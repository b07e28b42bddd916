package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/Cheese-BoardWatch/internal/board"
	"github.com/park285/Cheese-BoardWatch/internal/boardimg"
	"github.com/park285/Cheese-BoardWatch/internal/capture"
	appcfg "github.com/park285/Cheese-BoardWatch/internal/config"
	"github.com/park285/Cheese-BoardWatch/internal/engine"
	"github.com/park285/Cheese-BoardWatch/internal/framepool"
	"github.com/park285/Cheese-BoardWatch/internal/gesture"
	"github.com/park285/Cheese-BoardWatch/internal/inference"
	"github.com/park285/Cheese-BoardWatch/internal/movelog"
	"github.com/park285/Cheese-BoardWatch/internal/msgcat"
	"github.com/park285/Cheese-BoardWatch/internal/obslog"
	"github.com/park285/Cheese-BoardWatch/internal/profile"
	"github.com/park285/Cheese-BoardWatch/internal/settings"
	"github.com/park285/Cheese-BoardWatch/internal/vision"
	"github.com/park285/Cheese-BoardWatch/internal/watcher"
	"go.uber.org/zap"
)

// sim moves are spaced this many pumped frames apart so the watcher sees
// each position for a few ticks
const simFramesPerMove = 6

var defaultSimMoves = []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "g8f6", "d2d3", "f8c5"}

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("messages init error: %v", err)
	}
	profiles, err := profile.Load(cfg.ProfilesFile)
	if err != nil {
		log.Fatalf("profiles init error: %v", err)
	}
	prof := profiles.Lookup(cfg.ChessAppPackage)

	// env values are the defaults; a saved device config wins
	st := settings.Settings{
		BaseURL:     cfg.EngineBaseURL,
		Region:      board.Region{X: cfg.BoardX, Y: cfg.BoardY, Size: cfg.BoardSize},
		Orientation: board.OrientationOf(cfg.BoardFlipped),
	}
	var saver watcher.SettingsSaver
	if cfg.RedisURL != "" {
		store, err := settings.Open(ctx, cfg.RedisURL, cfg.DeviceID)
		if err != nil {
			logger.Warn("settings_store_unavailable", zap.Error(err))
		} else {
			defer func() { _ = store.Close() }()
			if st, err = store.Load(ctx, st); err != nil {
				logger.Warn("settings_load_failed", zap.Error(err))
			}
			saver = store
		}
	}

	var moves movelog.Recorder = movelog.NewMemory(0)
	if cfg.DatabaseURL != "" {
		repo, err := movelog.NewRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("movelog_db_unavailable", zap.Error(err))
		} else {
			moves = repo
		}
	}
	defer func() { _ = moves.Close() }()

	eng := engine.NewClient(st.BaseURL, engine.WithTimeout(time.Duration(cfg.EngineTimeoutSec)*time.Second))
	if !eng.Configured() {
		logger.Warn("engine_not_configured")
	}

	pool := framepool.New(cfg.FramePoolCapacity)
	mailbox := capture.NewMailbox(pool)
	producer, err := newProducer(cfg, pool, st, logger)
	if err != nil {
		log.Fatalf("capture init error: %v", err)
	}

	dragger, closeGesture := newDragger(ctx, cfg, logger)
	defer closeGesture()

	detector := vision.NewDetector(vision.Config{
		Stride:         cfg.DetectSampleStride,
		PixelThreshold: cfg.DetectPixelThreshold,
		RatioThreshold: cfg.DetectChangeRatio,
	})
	var gest *gesture.Executor
	if dragger != nil {
		gest = gesture.NewExecutor(dragger, cfg.DragDurationMs, logger)
	}

	w, err := watcher.New(watcher.Deps{
		Source:      mailbox,
		Sampler:     vision.NewSampler(pool, logger),
		Inferencer:  inference.New(pool, detector, inference.WithDirectionHeuristic(cfg.DetectResolveDirection)),
		Engine:      eng,
		Gesture:     gest,
		Moves:       moves,
		Settings:    saver,
		Messages:    msgs,
		Logger:      logger,
		BaseURL:     st.BaseURL,
		SnapshotDir: cfg.SnapshotDir,
		OnStatus:    func(s watcher.Status) { fmt.Println(s.Text) },
	}, watcher.Options{
		Region:      st.Region,
		Orientation: st.Orientation,
		AutoPlay:    cfg.AutoPlay,
		Profile:     prof,
	})
	if err != nil {
		log.Fatalf("watcher init error: %v", err)
	}

	logger.Info("boardwatch_starting",
		zap.String("capture", cfg.CaptureMode),
		zap.String("gesture", cfg.GestureMode),
		zap.String("profile", prof.Name),
		zap.String("region", st.Region.String()),
		zap.String("orientation", st.Orientation.String()),
		zap.Bool("engine", eng.Configured()),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go pump(runCtx, producer, mailbox, prof.FrameRateLimit/2)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(runCtx)
	}()
	fmt.Println(msgs.Text("status.capture_ready", nil))

	con := &console{w: w, eng: eng, moves: moves, profiles: profiles, msgs: msgs, logger: logger}
	go func() {
		if err := con.run(runCtx, os.Stdin, os.Stdout); err != nil {
			logger.Warn("console_read_failed", zap.Error(err))
		}
		cancel()
	}()

	<-runCtx.Done()
	<-done
	mailbox.Drain()
	ms, ps := mailbox.Stats(), pool.Stats()
	logger.Info("boardwatch_stopped",
		zap.Uint64("frames_published", ms.Published),
		zap.Uint64("frames_dropped", ms.Dropped),
		zap.Int("pool_idle", ps.Idle),
		zap.Int("pool_allocated", ps.Allocated),
	)
	pool.Clear()
}

// newProducer returns the frame source that feeds the mailbox.
func newProducer(cfg *appcfg.AppConfig, pool *framepool.Pool, st settings.Settings, logger *zap.Logger) (capture.Source, error) {
	if cfg.CaptureMode == appcfg.CaptureDir {
		return capture.NewDirSource(cfg.CaptureDir, pool, logger), nil
	}
	script := cfg.SimMoves
	if len(script) == 0 {
		script = defaultSimMoves
	}
	return capture.NewSimSource(pool, boardimg.FrameOptions{
		Width:       cfg.SimScreenWidth,
		Height:      cfg.SimScreenHeight,
		RowPadding:  cfg.SimRowPadding,
		Region:      st.Region,
		Orientation: st.Orientation,
	}, script, simFramesPerMove, logger)
}

func newDragger(ctx context.Context, cfg *appcfg.AppConfig, logger *zap.Logger) (gesture.Dragger, func()) {
	switch cfg.GestureMode {
	case appcfg.GestureDryRun:
		return gesture.DryRun{Logger: logger}, func() {}
	case appcfg.GestureWS:
		bridge := gesture.NewWSBridge(cfg.GestureWSURL, logger)
		if err := bridge.Connect(ctx); err != nil {
			// Drag redials on demand
			logger.Warn("gesture_agent_unavailable", zap.Error(err))
		}
		return bridge, func() { _ = bridge.Close() }
	default:
		return nil, func() {}
	}
}

// pump moves frames from the producer into the mailbox at a fixed rate,
// standing in for a capture surface that renders independently of polling.
func pump(ctx context.Context, src capture.Source, mb *capture.Mailbox, every time.Duration) {
	if every <= 0 {
		every = profile.DefaultFrameRateLimit / 2
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if frame, ok := src.Latest(); ok {
				mb.Publish(frame)
			}
		}
	}
}
