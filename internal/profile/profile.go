// Package profile holds per-app capture timing. Each chess app redraws at its
// own pace, so the polling interval and the delay before the first capture
// are looked up by the app's package name.
package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var defaultProfiles []byte

const (
	DefaultFrameRateLimit = time.Second
	minFrameRateLimit     = 100 * time.Millisecond
)

var ErrNoGeneric = errors.New("profile list has no generic entry")

// Profile is the timing for one app.
type Profile struct {
	Name           string
	Package        string
	CaptureDelay   time.Duration
	FrameRateLimit time.Duration
}

type fileProfile struct {
	Name             string `yaml:"name"`
	Package          string `yaml:"package"`
	CaptureDelayMs   int64  `yaml:"capture_delay_ms"`
	FrameRateLimitMs int64  `yaml:"frame_rate_limit_ms"`
}

type fileFormat struct {
	Profiles []fileProfile `yaml:"profiles"`
}

// Catalog resolves package names to profiles. The entry with an empty package
// is the fallback.
type Catalog struct {
	byPackage map[string]Profile
	generic   Profile
	ordered   []Profile
}

// Load reads the embedded list, or path when set.
func Load(path string) (*Catalog, error) {
	raw := defaultProfiles
	if p := strings.TrimSpace(path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read profiles: %w", err)
		}
		raw = b
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	c := &Catalog{byPackage: make(map[string]Profile)}
	hasGeneric := false
	for _, fp := range f.Profiles {
		p := Profile{
			Name:           strings.TrimSpace(fp.Name),
			Package:        strings.TrimSpace(fp.Package),
			CaptureDelay:   time.Duration(fp.CaptureDelayMs) * time.Millisecond,
			FrameRateLimit: time.Duration(fp.FrameRateLimitMs) * time.Millisecond,
		}
		if p.CaptureDelay < 0 {
			p.CaptureDelay = 0
		}
		if p.FrameRateLimit <= 0 {
			p.FrameRateLimit = DefaultFrameRateLimit
		}
		if p.FrameRateLimit < minFrameRateLimit {
			p.FrameRateLimit = minFrameRateLimit
		}
		if p.Package == "" {
			c.generic = p
			hasGeneric = true
		} else {
			c.byPackage[p.Package] = p
		}
		c.ordered = append(c.ordered, p)
	}
	if !hasGeneric {
		return nil, ErrNoGeneric
	}
	return c, nil
}

// Lookup returns the profile for pkg, or the generic one.
func (c *Catalog) Lookup(pkg string) Profile {
	if p, ok := c.byPackage[strings.TrimSpace(pkg)]; ok {
		return p
	}
	return c.generic
}

func (c *Catalog) Generic() Profile { return c.generic }

// All returns profiles in file order.
func (c *Catalog) All() []Profile {
	return append([]Profile(nil), c.ordered...)
}
