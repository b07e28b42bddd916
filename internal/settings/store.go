// Package settings persists the user-adjustable watcher settings in a Redis
// hash, one hash per device.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/park285/Cheese-BoardWatch/internal/board"
	"github.com/redis/go-redis/v9"
)

const (
	fieldBaseURL  = "base_url"
	fieldBoardX   = "board_x"
	fieldBoardY   = "board_y"
	fieldSize     = "board_size"
	fieldFlipped  = "board_flipped"
	keyPrefix     = "boardwatch:settings:"
	defaultDevice = "default"
)

// Settings is what survives a restart.
type Settings struct {
	BaseURL     string
	Region      board.Region
	Orientation board.Orientation
}

type Store struct {
	rdb *redis.Client
	key string
}

// Open connects to redisURL and pings it.
func Open(ctx context.Context, redisURL, deviceID string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for settings store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, deviceID), nil
}

// New wraps an existing client.
func New(rdb *redis.Client, deviceID string) *Store {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		deviceID = defaultDevice
	}
	return &Store{rdb: rdb, key: keyPrefix + deviceID}
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Load overlays the stored fields on defaults. Absent or unparsable fields
// keep their default value.
func (s *Store) Load(ctx context.Context, defaults Settings) (Settings, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return defaults, fmt.Errorf("load settings: %w", err)
	}
	out := defaults
	if v, ok := vals[fieldBaseURL]; ok {
		out.BaseURL = strings.TrimSpace(v)
	}
	out.Region.X = intField(vals, fieldBoardX, defaults.Region.X)
	out.Region.Y = intField(vals, fieldBoardY, defaults.Region.Y)
	if size := intField(vals, fieldSize, defaults.Region.Size); size >= 8 {
		out.Region.Size = size
	}
	if v, ok := vals[fieldFlipped]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			out.Orientation = board.OrientationOf(b)
		}
	}
	return out, nil
}

// Save writes every field.
func (s *Store) Save(ctx context.Context, st Settings) error {
	err := s.rdb.HSet(ctx, s.key, map[string]any{
		fieldBaseURL: st.BaseURL,
		fieldBoardX:  st.Region.X,
		fieldBoardY:  st.Region.Y,
		fieldSize:    st.Region.Size,
		fieldFlipped: strconv.FormatBool(st.Orientation.Flipped()),
	}).Err()
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func intField(vals map[string]string, field string, def int) int {
	v, ok := vals[field]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// parseRedisURL accepts redis:// and rediss:// URLs; rediss gets a TLS config.
func parseRedisURL(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return opts, nil
}
