package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-insight-agent/internal/domain"
	"telegram-insight-agent/internal/domain/model"
	"telegram-insight-agent/internal/domain/ports/adapter"
	"telegram-insight-agent/internal/domain/ports/repository"
	"telegram-insight-agent/internal/infra/metrics"
)

// LockKey serializes sweeps across scheduler processes.
const LockKey = "scheduler:sweep"

// Enqueuer is the slice of the job use case the scheduler needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, sub *model.Subscription, manual bool) (string, error)
}

type Options struct {
	Interval     time.Duration
	ErrorBackoff time.Duration
	LockTTL      time.Duration
}

// Scheduler enqueues a job for every active subscription on a fixed cadence.
type Scheduler struct {
	subs   repository.SubscriptionRepository
	jobs   Enqueuer
	locker adapter.Locker // nil when only one scheduler runs
	opts   Options
	log    *zerolog.Logger
}

func NewScheduler(subs repository.SubscriptionRepository, jobs Enqueuer, locker adapter.Locker, opts Options, logger *zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = time.Minute
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	l := logger.With().Str("component", "Scheduler").Logger()
	return &Scheduler{subs: subs, jobs: jobs, locker: locker, opts: opts, log: &l}
}

// Run sweeps immediately and then every interval until ctx is done.
// A failed sweep is retried after the error backoff instead of the full interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.opts.Interval).Msg("Starting scheduler")
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Stopping scheduler")
			return ctx.Err()
		case <-timer.C:
			n, err := s.Sweep(ctx)
			next := s.opts.Interval
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Error().Err(err).Dur("retry_in", s.opts.ErrorBackoff).Msg("sweep failed")
				next = s.opts.ErrorBackoff
			} else if n > 0 {
				s.log.Info().Int("enqueued", n).Msg("sweep finished")
			}
			timer.Reset(next)
		}
	}
}

// Sweep enqueues one scheduled job per active subscription of every owner and returns how many it created.
// Subscriptions with a job still running are skipped.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	if s.locker != nil {
		token, err := s.locker.TryLock(ctx, LockKey, s.opts.LockTTL)
		if errors.Is(err, domain.ErrLockNotAcquired) {
			metrics.IncSchedulerSweep("locked")
			s.log.Debug().Msg("another scheduler is sweeping")
			return 0, nil
		}
		if err != nil {
			metrics.IncSchedulerSweep("error")
			return 0, fmt.Errorf("acquire sweep lock: %w", err)
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), LockKey, token); err != nil {
				s.log.Warn().Err(err).Msg("failed to release sweep lock")
			}
		}()
	}

	n, err := s.sweep(ctx)
	metrics.AddSchedulerEnqueued(n)
	if err != nil {
		metrics.IncSchedulerSweep("error")
		return n, err
	}
	metrics.IncSchedulerSweep("ok")
	return n, nil
}

func (s *Scheduler) sweep(ctx context.Context) (int, error) {
	users, err := s.subs.ListActiveUserIDs(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("list active users: %w", err)
	}

	var (
		enqueued int
		errs     []error
	)
	for _, userID := range users {
		subs, err := s.subs.ListByUser(ctx, nil, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("list subscriptions of %d: %w", userID, err))
			continue
		}
		for _, sub := range subs {
			if !sub.IsActive {
				continue
			}
			requestID, err := s.jobs.Enqueue(ctx, sub, false)
			if errors.Is(err, domain.ErrJobInProgress) {
				s.log.Debug().Int64("chat_id", sub.ChatID).Msg("previous run still active, skipping")
				continue
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("enqueue chat %d: %w", sub.ChatID, err))
				continue
			}
			enqueued++
			s.log.Debug().Str("request_id", requestID).Int64("user_id", userID).Int64("chat_id", sub.ChatID).Msg("scheduled job enqueued")
		}
	}
	return enqueued, errors.Join(errs...)
}
