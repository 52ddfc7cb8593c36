package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"brood/internal/logger"

	"github.com/robfig/cron/v3"
)

// Options selects how rounds are paced. Cron wins over Interval; Align
// snaps interval rounds to wall-clock boundaries plus Offset.
type Options struct {
	Interval time.Duration
	Cron     string
	Align    bool
	Offset   time.Duration
}

// RoundScheduler runs a task once per round until the task declines, or the
// context is cancelled. The first round starts immediately.
type RoundScheduler struct {
	Interval time.Duration
	Offset   time.Duration
	Align    bool

	schedule cron.Schedule
	nowFn    func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewRoundScheduler(opts Options) (*RoundScheduler, error) {
	if opts.Interval < 0 {
		return nil, fmt.Errorf("round interval cannot be negative: %s", opts.Interval)
	}
	if opts.Offset < 0 {
		logger.Warnf("RoundScheduler: negative offset=%s, clamp to 0", opts.Offset)
		opts.Offset = 0
	}
	s := &RoundScheduler{
		Interval: opts.Interval,
		Offset:   opts.Offset,
		Align:    opts.Align && opts.Interval > 0,
		nowFn:    time.Now,
		sleep:    sleepCtx,
	}
	if spec := strings.TrimSpace(opts.Cron); spec != "" {
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("parse round cron %q: %w", spec, err)
		}
		s.schedule = sched
	}
	return s, nil
}

// Run blocks until task returns false or ctx is done. A round in progress is
// never interrupted; cancellation only prevents the next one from starting.
func (s *RoundScheduler) Run(ctx context.Context, task func(ctx context.Context) bool) error {
	if task == nil {
		return fmt.Errorf("round task is nil")
	}
	startAt := s.nowFn().UTC()
	logger.Infof("RoundScheduler: started mode=%s interval=%s offset=%s at=%s",
		s.mode(), s.Interval, s.Offset, startAt.Format(time.RFC3339))

	for rounds := 0; ; rounds++ {
		if err := ctx.Err(); err != nil {
			logger.Infof("RoundScheduler: ctx done after %d rounds, exit", rounds)
			return err
		}
		if !task(ctx) {
			logger.Infof("RoundScheduler: task finished after %d rounds | uptime=%s",
				rounds+1, s.nowFn().UTC().Sub(startAt).Truncate(time.Second))
			return nil
		}
		wait := s.nextWait(s.nowFn().UTC())
		if wait <= 0 {
			continue
		}
		logger.Debugf("RoundScheduler: 下一轮将在 %s 后执行", wait.Truncate(time.Millisecond))
		if err := s.sleep(ctx, wait); err != nil {
			logger.Infof("RoundScheduler: ctx done after %d rounds, exit", rounds+1)
			return err
		}
	}
}

func (s *RoundScheduler) mode() string {
	switch {
	case s.schedule != nil:
		return "cron"
	case s.Align:
		return "aligned"
	case s.Interval > 0:
		return "interval"
	default:
		return "back-to-back"
	}
}

func (s *RoundScheduler) nextWait(now time.Time) time.Duration {
	switch {
	case s.schedule != nil:
		return s.schedule.Next(now).Sub(now)
	case s.Align:
		_, wakeAt := s.nextTimes(now)
		return wakeAt.Sub(now)
	default:
		return s.Interval
	}
}

func (s *RoundScheduler) nextTimes(now time.Time) (nextClose time.Time, wakeAt time.Time) {
	now = now.UTC()
	nextClose = now.Truncate(s.Interval).Add(s.Interval)
	wakeAt = nextClose.Add(s.Offset)
	return nextClose, wakeAt
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
