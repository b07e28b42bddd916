package capture

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/park285/Cheese-BoardWatch/internal/framepool"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".webp": true}

// DirSource replays screenshots dropped into a directory by an external
// capture tool (adb screencap, scrcpy recorder). Each new file is delivered
// once; the newest file wins.
type DirSource struct {
	dir    string
	pool   *framepool.Pool
	logger *zap.Logger

	mu      sync.Mutex
	lastKey string
}

func NewDirSource(dir string, pool *framepool.Pool, logger *zap.Logger) *DirSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirSource{dir: dir, pool: pool, logger: logger}
}

func (d *DirSource) Latest() (*framepool.Buffer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	path, mod, err := newestImage(d.dir)
	if err != nil {
		d.logger.Warn("capture_dir_scan_failed", zap.String("dir", d.dir), zap.Error(err))
		return nil, false
	}
	if path == "" {
		return nil, false
	}
	key := path + "@" + mod.Format(time.RFC3339Nano)
	if key == d.lastKey {
		return nil, false
	}

	buf, err := d.load(path)
	if err != nil {
		d.logger.Warn("capture_decode_failed", zap.String("path", path), zap.Error(err))
		// skip the broken file until it changes
		d.lastKey = key
		return nil, false
	}
	d.lastKey = key
	return buf, true
}

func (d *DirSource) load(path string) (*framepool.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	b := img.Bounds()
	buf := d.pool.Obtain(b.Dx(), b.Dy(), framepool.FormatRGBA8888)
	dst := buf.Image()
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return buf, nil
}

func newestImage(dir string) (string, time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, err
	}
	var (
		best    string
		bestMod time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		// ties resolve to the lexically larger name
		if best == "" || info.ModTime().After(bestMod) || (info.ModTime().Equal(bestMod) && e.Name() > filepath.Base(best)) {
			best = filepath.Join(dir, e.Name())
			bestMod = info.ModTime()
		}
	}
	return best, bestMod, nil
}
