package janitor

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/baechuer/contacts-api/internal/metrics"
)

const DefaultSchedule = "@every 10m"

type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Janitor periodically removes consumed reset-token records whose token has
// expired. Jobs never overlap.
type Janitor struct {
	purger  Purger
	cron    *cron.Cron
	lg      zerolog.Logger
	timeout time.Duration
	now     func() time.Time
}

func New(purger Purger, schedule string, lg zerolog.Logger) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	lg = lg.With().Str("component", "janitor").Logger()

	j := &Janitor{
		purger:  purger,
		lg:      lg,
		timeout: 30 * time.Second,
		now:     time.Now,
	}
	j.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := j.cron.AddFunc(schedule, func() { _, _ = j.RunOnce(context.Background()) }); err != nil {
		return nil, err
	}
	return j, nil
}

// RunOnce purges immediately; used by the schedule and by tests.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	n, err := j.purger.PurgeExpired(ctx, j.now())
	if err != nil {
		j.lg.Error().Err(err).Msg("purge consumed tokens failed")
		return 0, err
	}
	if n > 0 {
		metrics.ConsumedTokensPurged.Add(float64(n))
		j.lg.Info().Int64("purged", n).Msg("consumed tokens purged")
	}
	return n, nil
}

func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts scheduling and waits for a running purge, bounded by ctx.
func (j *Janitor) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
