// Package jobs runs the periodic maintenance of the credential store.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/grp-2-projet-elective/cesieats-back/internal/metrics"
)

// TokenSweeper is the part of repository.TokenRepo the sweeper needs.
type TokenSweeper interface {
	ExpiredRefreshOwners(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	ClearExpiredRefresh(ctx context.Context, userID uint64, now time.Time) (bool, error)
}

// sweepBatch bounds the users handled per run.
const sweepBatch = 500

type Scheduler struct {
	cron     *cron.Cron
	tokens   TokenSweeper
	schedule string
	log      zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewScheduler(tokens TokenSweeper, schedule string, log zerolog.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		tokens:   tokens,
		schedule: schedule,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

func (s *Scheduler) Start() error {
	if s.tokens == nil || s.schedule == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish, at most five seconds.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("refresh token sweep still running at shutdown")
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := Sweep(ctx, s.tokens, s.now())
	s.metrics.Swept(n)
	if err != nil {
		s.log.Error().Err(err).Int("cleared", n).Msg("refresh token sweep failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("cleared", n).Msg("expired refresh tokens cleared")
	}
}

// Sweep clears the refresh tokens that expired before now, one keyed
// update per user. A token rotated between the select and the update is
// kept.
func Sweep(ctx context.Context, tokens TokenSweeper, now time.Time) (int, error) {
	ids, err := tokens.ExpiredRefreshOwners(ctx, now, sweepBatch)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, id := range ids {
		ok, err := tokens.ClearExpiredRefresh(ctx, id, now)
		if err != nil {
			return cleared, err
		}
		if ok {
			cleared++
		}
	}
	return cleared, nil
}
