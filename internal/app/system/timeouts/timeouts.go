// Package timeouts holds the deadlines applied to database work and to
// calls on external collaborators.
//
//   - Ping: health checks
//   - Short: single-document reads and writes
//   - Medium: list queries and multi-step reads
//   - Long: writes touching several collections (cascades, group replace)
//   - Upstream: HTTP calls to GitHub, the template generator, the sandbox
//     and object storage
package timeouts

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Defaults used until Configure is called.
const (
	DefaultPing     = 2 * time.Second
	DefaultShort    = 5 * time.Second
	DefaultMedium   = 10 * time.Second
	DefaultLong     = 30 * time.Second
	DefaultUpstream = 20 * time.Second
)

var (
	ping     atomic.Int64
	short    atomic.Int64
	medium   atomic.Int64
	long     atomic.Int64
	upstream atomic.Int64
)

func init() { Reset() }

func Ping() time.Duration     { return time.Duration(ping.Load()) }
func Short() time.Duration    { return time.Duration(short.Load()) }
func Medium() time.Duration   { return time.Duration(medium.Load()) }
func Long() time.Duration     { return time.Duration(long.Load()) }
func Upstream() time.Duration { return time.Duration(upstream.Load()) }

// Config carries overrides. Zero values keep the current setting.
type Config struct {
	Ping     time.Duration
	Short    time.Duration
	Medium   time.Duration
	Long     time.Duration
	Upstream time.Duration
}

// Configure applies cfg. Call it once during startup.
func Configure(cfg Config) {
	set := func(v *atomic.Int64, d time.Duration) {
		if d > 0 {
			v.Store(int64(d))
		}
	}
	set(&ping, cfg.Ping)
	set(&short, cfg.Short)
	set(&medium, cfg.Medium)
	set(&long, cfg.Long)
	set(&upstream, cfg.Upstream)
}

// Reset restores the defaults.
func Reset() {
	ping.Store(int64(DefaultPing))
	short.Store(int64(DefaultShort))
	medium.Store(int64(DefaultMedium))
	long.Store(int64(DefaultLong))
	upstream.Store(int64(DefaultUpstream))
}

// Current returns the active settings.
func Current() Config {
	return Config{Ping: Ping(), Short: Short(), Medium: Medium(), Long: Long(), Upstream: Upstream()}
}

// Log writes the active settings at info level.
func Log(logger *zap.Logger) {
	c := Current()
	logger.Info("timeouts configured",
		zap.Duration("ping", c.Ping),
		zap.Duration("short", c.Short),
		zap.Duration("medium", c.Medium),
		zap.Duration("long", c.Long),
		zap.Duration("upstream", c.Upstream))
}

// WithTimeout derives a context bounded by d. Its cancel func logs a
// warning naming operation when the deadline was what ended the context.
func WithTimeout(parent context.Context, d time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, d)
	return ctx, func() {
		if log != nil && ctx.Err() == context.DeadlineExceeded {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", d))
		}
		cancel()
	}
}
