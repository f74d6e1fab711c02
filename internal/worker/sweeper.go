package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// leaderLock is the slice of pglock.Lock the sweeper needs.
type leaderLock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Sweeper runs one maintenance cycle at a time across any number of worker
// processes: whoever wins the advisory lock sweeps the paid backlog and,
// once per day, runs cleanup.
type Sweeper struct {
	Lock       leaderLock
	Jobs       domain.RenderJobRepository
	Executor   *Executor
	Reaper     *Reaper
	BatchSize  int
	StuckAfter time.Duration
	DailyHour  int
	Location   *time.Location
	Logger     zerolog.Logger
}

const dailyTaskName = "daily-maintenance"

// RunCycle attempts one maintenance cycle. A held lock means another
// worker owns this cycle; that is a normal skip, not an error. The lock is
// released unconditionally, whatever happens inside the cycle.
func (s *Sweeper) RunCycle(ctx context.Context) error {
	acquired, err := s.Lock.TryAcquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		s.Logger.Debug().Msg("sweeper: lock held elsewhere, skipping cycle")
		return nil
	}
	defer func() {
		// Release must not be skipped when the cycle's context is gone.
		if err := s.Lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.Logger.Error().Err(err).Msg("sweeper: lock release failed")
		}
	}()

	s.sweepPaid(ctx)
	s.runDailyTasks(ctx, time.Now())
	return nil
}

// sweepPaid processes a bounded batch of paid jobs strictly one at a time.
// Sequential on purpose: the render capability is the scarce resource.
func (s *Sweeper) sweepPaid(ctx context.Context) {
	jobs, err := s.Jobs.ListPaid(ctx, s.BatchSize)
	if err != nil {
		s.Logger.Error().Err(err).Msg("sweeper: list paid jobs failed")
		return
	}
	if len(jobs) == 0 {
		return
	}
	s.Logger.Info().Int("batch", len(jobs)).Msg("sweeper: processing paid jobs")
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		s.Executor.Process(ctx, job)
	}
}

// runDailyTasks runs cleanup once per day, after the configured local
// hour. The (task, day) marker row is the gate, so restarts and competing
// workers cannot double-run it.
func (s *Sweeper) runDailyTasks(ctx context.Context, now time.Time) {
	local := now.In(s.Location)
	if local.Hour() < s.DailyHour {
		return
	}
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	claimed, err := s.Jobs.ClaimDailyRun(ctx, dailyTaskName, day)
	if err != nil {
		s.Logger.Error().Err(err).Msg("sweeper: claim daily run failed")
		return
	}
	if !claimed {
		return
	}

	s.Logger.Info().Str("day", day.Format("2006-01-02")).Msg("sweeper: running daily maintenance")

	if _, err := s.Reaper.Run(ctx); err != nil {
		s.Logger.Error().Err(err).Msg("sweeper: retention purge failed")
	}

	if s.StuckAfter > 0 {
		requeued, err := s.Jobs.RequeueStuck(ctx, now.Add(-s.StuckAfter))
		if err != nil {
			s.Logger.Error().Err(err).Msg("sweeper: requeue stuck jobs failed")
		} else if requeued > 0 {
			s.Logger.Warn().Int64("requeued", requeued).Msg("sweeper: returned stuck jobs to paid")
		}
	}
}
