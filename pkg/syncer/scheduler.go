package syncer

import (
	"context"
	"time"
)

// Run sweeps all connections every interval until ctx is done. A zero
// interval disables the scheduler.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		s.logger.Info().Msg("Periodic sync disabled")
		<-ctx.Done()
		return nil
	}

	s.logger.Info().Dur("interval", interval).Msg("Starting periodic sync")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Periodic sync stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Syncer) sweep(ctx context.Context) {
	report, err := s.SyncAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Periodic sync failed")
		return
	}
	s.logger.Info().
		Str("run_id", report.RunID).
		Int("synced", len(report.Results)).
		Int("failed", len(report.Failures)).
		Float64("elapsed", report.Elapsed).
		Msg("Periodic sync finished")
}
