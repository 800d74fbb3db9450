package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/guildctl/internal/core/domain"
	"github.com/vietddude/guildctl/internal/infra/metrics"
)

// Config defines backoff behavior for rate-limited operations.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	MaxAttempts: 5,
	BaseDelay:   2 * time.Second,
	Multiplier:  2.0,
}

// Executor re-runs remote operations that fail with a rate-limit response,
// sleeping an exponentially growing delay between attempts. Every other
// failure propagates unchanged. The executor does not make the wrapped
// operation idempotent; each attempt may have remote side effects.
type Executor struct {
	cfg   Config
	log   *slog.Logger
	sleep func(context.Context, time.Duration) error
}

// New creates an executor. Zero config fields fall back to DefaultConfig.
func New(cfg Config, log *slog.Logger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig.BaseDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = DefaultConfig.Multiplier
	}
	if log == nil {
		log = slog.Default()
	}
	return &Executor{cfg: cfg, log: log, sleep: sleepCtx}
}

// Do executes op, retrying on rate-limit responses until the attempt budget
// runs out. After the last permitted attempt it returns a
// RateLimitExhaustedError wrapping the final rate-limit error.
func (e *Executor) Do(ctx context.Context, op func(context.Context) error) error {
	delay := e.cfg.BaseDelay
	var last error

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !domain.IsRateLimited(err) {
			return err
		}
		last = err

		if attempt == e.cfg.MaxAttempts-1 {
			break
		}

		e.log.Warn("rate limited, backing off",
			"attempt", attempt+1,
			"max_attempts", e.cfg.MaxAttempts,
			"delay", delay,
		)
		metrics.RetrySleeps.Inc()
		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * e.cfg.Multiplier)
	}

	return &domain.RateLimitExhaustedError{Attempts: e.cfg.MaxAttempts, Last: last}
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := e.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
