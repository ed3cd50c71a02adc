package collector

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Collector is one polling data source.
type Collector interface {
	Name() string
	Collect(ctx context.Context) error
}

// StatusStore records run outcomes per collector.
type StatusStore interface {
	MarkSuccess(ctx context.Context, collector string, ts int64) error
	MarkFailure(ctx context.Context, collector string, ts int64, runErr error) error
}

// Archiver stores a raw upstream payload under a key. Collectors treat
// archiving as best-effort: an archive failure is logged, not fatal.
type Archiver interface {
	Put(ctx context.Context, key string, payload []byte) error
}

// Runner executes collectors and tracks their status. One collector
// failing does not stop the others.
type Runner struct {
	status StatusStore
	log    *zap.Logger
	now    func() time.Time
}

func NewRunner(status StatusStore, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{status: status, log: log, now: time.Now}
}

// RunAll runs every collector in order, recording success or failure in
// the status store. The returned error joins all collection failures;
// status bookkeeping errors are fatal immediately.
func (r *Runner) RunAll(ctx context.Context, collectors ...Collector) error {
	var failures []error
	for _, c := range collectors {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := r.now()
		err := c.Collect(ctx)
		ts := r.now().Unix()
		if err != nil {
			r.log.Error("collector failed",
				zap.String("collector", c.Name()),
				zap.Duration("elapsed", r.now().Sub(start)),
				zap.Error(err))
			failures = append(failures, err)
			if serr := r.status.MarkFailure(ctx, c.Name(), ts, err); serr != nil {
				return serr
			}
			continue
		}
		r.log.Info("collector finished",
			zap.String("collector", c.Name()),
			zap.Duration("elapsed", r.now().Sub(start)))
		if serr := r.status.MarkSuccess(ctx, c.Name(), ts); serr != nil {
			return serr
		}
	}
	return errors.Join(failures...)
}
